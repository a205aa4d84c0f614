// Package chart renders the category-spending pie chart as a PNG on disk and
// hands back a signed URL the messaging channel can fetch it from.
package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/adit-m/paisabot/internal/ledger"
)

// URLSigner mints the access token embedded in a chart URL.
type URLSigner interface {
	Sign(file string) (string, error)
}

// PieRenderer buckets expense amounts by category and draws a pie chart.
type PieRenderer struct {
	dir     string
	baseURL string
	signer  URLSigner
	log     *logrus.Logger
}

func NewPieRenderer(dir, baseURL string, signer URLSigner, log *logrus.Logger) *PieRenderer {
	return &PieRenderer{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), signer: signer, log: log}
}

// Render writes the chart and returns its URL. ok is false when there is
// nothing to chart or any step of producing the image failed.
func (r *PieRenderer) Render(expenses []ledger.Expense, owner, title string) (string, bool) {
	values := bucketByCategory(expenses)
	if len(values) == 0 {
		return "", false
	}

	pie := gochart.PieChart{
		Title:  title,
		Width:  512,
		Height: 512,
		Values: values,
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.log.WithError(err).Error("chart dir")
		return "", false
	}
	file := fmt.Sprintf("%s_%s.png", ledger.NormalizeNumber(owner), uuid.NewString()[:8])
	f, err := os.Create(filepath.Join(r.dir, file))
	if err != nil {
		r.log.WithError(err).Error("chart file")
		return "", false
	}
	defer f.Close()

	if err := pie.Render(gochart.PNG, f); err != nil {
		r.log.WithError(err).Error("chart render")
		return "", false
	}

	token, err := r.signer.Sign(file)
	if err != nil {
		r.log.WithError(err).Error("chart token")
		return "", false
	}
	return fmt.Sprintf("%s/chart/%s?t=%s", r.baseURL, file, token), true
}

func bucketByCategory(expenses []ledger.Expense) []gochart.Value {
	totals := make(map[string]decimal.Decimal)
	grand := decimal.Zero
	for _, e := range expenses {
		cat := strings.ToLower(e.Category)
		totals[cat] = totals[cat].Add(e.Amount)
		grand = grand.Add(e.Amount)
	}
	if grand.IsZero() {
		return nil
	}

	cats := make([]string, 0, len(totals))
	for cat := range totals {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	values := make([]gochart.Value, 0, len(cats))
	for _, cat := range cats {
		amt := totals[cat]
		pct := amt.Div(grand).Mul(decimal.NewFromInt(100))
		value, _ := amt.Float64()
		values = append(values, gochart.Value{
			Value: value,
			Label: fmt.Sprintf("%s ₹%s (%s%%)", ledger.TitleCase(cat), amt.StringFixed(0), pct.StringFixed(1)),
		})
	}
	return values
}
