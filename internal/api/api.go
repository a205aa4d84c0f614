// Package api is the transport glue: it receives webhook deliveries from the
// messaging channel, runs one dialog turn, and serves rendered charts.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/adit-m/paisabot/internal/config"
	"github.com/adit-m/paisabot/internal/dialog"
)

// Resolver collapses a raw channel sender token to a canonical user id.
type Resolver interface {
	ResolveIdentity(ctx context.Context, raw string) (string, error)
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(ctx context.Context, raw string) (string, error)

func (f ResolverFunc) ResolveIdentity(ctx context.Context, raw string) (string, error) {
	return f(ctx, raw)
}

type API struct {
	router   *mux.Router
	config   *config.Config
	machine  *dialog.Machine
	sessions dialog.SessionStore
	resolver Resolver
	tokens   *ChartTokens
	log      *logrus.Logger
}

func New(cfg *config.Config, machine *dialog.Machine, sessions dialog.SessionStore, resolver Resolver, tokens *ChartTokens, log *logrus.Logger) *API {
	api := &API{
		router:   mux.NewRouter(),
		config:   cfg,
		machine:  machine,
		sessions: sessions,
		resolver: resolver,
		tokens:   tokens,
		log:      log,
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.HandleFunc("/webhook", a.handleWebhook).Methods("POST")
	a.router.HandleFunc("/chart/{file}", a.handleChart).Methods("GET")
	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")
}

func (a *API) Start() error {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}

	handler := cors.New(corsOptions).Handler(a.router)

	a.log.WithField("bind", a.config.WebBind).Info("API server listening")
	return http.ListenAndServe(a.config.WebBind, handler)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
