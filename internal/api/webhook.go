package api

import (
	"encoding/xml"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// messagingResponse is the TwiML payload the channel expects back: the reply
// text wrapped in <Response><Message>.
type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// handleWebhook runs exactly one dialog turn. Each delivery is independent:
// fetch the session, interpret the text, persist the session, reply.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID, err := a.resolver.ResolveIdentity(ctx, from)
	if err != nil {
		a.log.WithError(err).Error("identity resolution failed")
		http.Error(w, "identity resolution failed", http.StatusInternalServerError)
		return
	}

	session, err := a.sessions.Get(ctx, userID)
	if err != nil {
		a.log.WithError(err).WithField("user", userID).Error("session fetch failed")
		http.Error(w, "session fetch failed", http.StatusInternalServerError)
		return
	}

	session, reply := a.machine.Handle(ctx, userID, session, body)

	// Last-write-wins; a failed put costs the user one re-prompt, not the turn.
	if err := a.sessions.Put(ctx, userID, session); err != nil {
		a.log.WithError(err).WithField("user", userID).Error("session put failed")
	}

	a.log.WithFields(logrus.Fields{"user": userID, "state": string(session.State)}).Debug("turn handled")
	writeTwiML(w, reply)
}

func writeTwiML(w http.ResponseWriter, reply string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(messagingResponse{Message: reply})
}

// handleChart serves a rendered chart PNG. The signed token in ?t= scopes
// access to the exact file it was minted for.
func (a *API) handleChart(w http.ResponseWriter, r *http.Request) {
	file := filepath.Base(mux.Vars(r)["file"])
	if err := a.tokens.Verify(r.URL.Query().Get("t"), file); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, filepath.Join(a.config.ChartDir, file))
}
