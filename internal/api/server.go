package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/alexfall862/simBaseball-API-sub000/internal/config"
	"github.com/alexfall862/simBaseball-API-sub000/internal/metrics"
	"github.com/alexfall862/simBaseball-API-sub000/internal/transactions"
)

// NewRouter creates the chi router with the middleware stack and every
// league route. hub may be nil, which disables /api/v1/ws.
func NewRouter(h *Handler, hub *Hub, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	c := corslib.New(corslib.Options{
		AllowedOrigins: cfg.CORSAllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	})
	r.Use(c.Handler)

	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if hub != nil {
			r.Get("/ws", hub.HandleWS)
		}

		// Batch routes are outside the request timeout.
		r.Route("/books/{year}", func(r chi.Router) {
			r.Post("/year-start", h.YearStart)
			r.Post("/weeks/{week}", h.Week)
			r.Post("/year-end", h.YearEnd)
			r.Post("/season", h.Season)
		})
		r.Post("/seasons/{year}/end", h.EndSeason)
		r.Post("/game-results", h.RecordGameResult)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/financials/{year}", h.LeagueSummary)
			r.Get("/financials/{year}/orgs/{orgID}", h.OrgSummary)

			r.Route("/contracts/{id}", func(r chi.Router) {
				r.Post("/promote", h.Promote)
				r.Post("/demote", h.Demote)
				r.Post("/injured-list", h.PlaceOnIR)
				r.Post("/activate", h.ActivateFromIR)
				r.Post("/release", h.Release)
				r.Post("/buyout", h.Buyout)
				r.Post("/extend", h.Extend)
			})
			r.Post("/free-agents/sign", h.SignFreeAgent)
			r.Post("/trades", h.ExecuteTrade)

			r.Route("/trade-proposals", func(r chi.Router) {
				r.Post("/", h.Propose)
				r.Get("/", h.ListProposals)
				r.Get("/{id}", h.GetProposal)
				r.Post("/{id}/accept", h.proposalAction(transactions.ActionAccept))
				r.Post("/{id}/reject", h.proposalAction(transactions.ActionReject))
				r.Post("/{id}/cancel", h.proposalAction(transactions.ActionCancel))
				r.Post("/{id}/approve", h.proposalAction(transactions.ActionAdminApprove))
				r.Post("/{id}/admin-reject", h.proposalAction(transactions.ActionAdminReject))
			})

			r.Get("/transactions", h.ListTransactions)
			r.Get("/transactions/{id}", h.GetTransaction)
			r.Post("/transactions/{id}/rollback", h.Rollback)
		})
	})

	return r
}
