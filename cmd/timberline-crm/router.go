package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/config"
	"timberline-crm/internal/http/docs"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/http/middleware"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/ratelimit"
	"timberline-crm/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RouterDeps carries everything buildRouter needs. Handlers may be nil in
// tests; their routes are simply not mounted.
type RouterDeps struct {
	Cfg      *config.Config
	Log      *logger.Logger
	Sessions *auth.SessionManager
	Limiter  ratelimit.Limiter
	Metrics  *telemetry.Metrics
	Pool     *pgxpool.Pool // readiness check

	SessionHandler  *handler.SessionHandler
	IntakeHandler   *handler.IntakeHandler
	LeadHandler     *handler.LeadHandler
	ClientHandler   *handler.ClientHandler
	DealHandler     *handler.DealHandler
	ActivityHandler *handler.ActivityHandler
	SettingsHandler *handler.SettingsHandler
	SearchHandler   *handler.SearchHandler
	UploadHandler   *handler.UploadHandler
}

// buildRouter assembles the chi router with all middlewares and routes.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}
	r.Use(telemetry.PrometheusMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready","note":"pool is nil"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Pool.Ping(ctx); err != nil {
			deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.With(metricsAuth(deps.Cfg.MetricsToken)).Get("/metrics", telemetry.PrometheusHandler().ServeHTTP)
	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	if deps.Cfg.UploadDir != "" {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.Cfg.UploadDir)))
		r.Get("/uploads/*", fs.ServeHTTP)
	}

	r.Route("/api/auth", func(r chi.Router) {
		if deps.SessionHandler != nil {
			// Login shares the tight intake limit to slow brute-force attempts.
			login := chi.Chain()
			if deps.Limiter != nil {
				login = chi.Chain(middleware.RateLimitMiddleware(deps.Limiter, "login", deps.Cfg.IntakeRatePerMin))
			}
			r.With(login...).Post("/login", deps.SessionHandler.Login)
			r.Post("/logout", deps.SessionHandler.Logout)
			if deps.Sessions != nil {
				r.With(auth.SessionMiddleware(deps.Sessions)).Get("/me", deps.SessionHandler.Me)
			}
		}
	})

	r.Route("/api/crm", func(r chi.Router) {
		// Public website intake, rate limited per client IP.
		if deps.IntakeHandler != nil {
			intake := chi.Chain()
			if deps.Limiter != nil {
				intake = chi.Chain(middleware.RateLimitMiddleware(deps.Limiter, "intake", deps.Cfg.IntakeRatePerMin))
			}
			if deps.Metrics != nil {
				intake = append(intake, countLeadIntake(deps.Metrics))
			}
			r.With(intake...).Post("/lead", deps.IntakeHandler.SubmitLead)
		}

		// Everything below requires the admin session.
		r.Group(func(r chi.Router) {
			if deps.Sessions != nil {
				r.Use(auth.SessionMiddleware(deps.Sessions))
			}
			if deps.Limiter != nil {
				r.Use(middleware.RateLimitMiddleware(deps.Limiter, "admin", deps.Cfg.AdminRatePerMin))
			}

			if deps.LeadHandler != nil {
				r.Route("/leads", func(r chi.Router) {
					r.Get("/", deps.LeadHandler.ListLeads)
					r.Post("/", deps.LeadHandler.CreateLead)
					r.Route("/{leadId}", func(r chi.Router) {
						r.Get("/", deps.LeadHandler.GetLead)
						r.Put("/", deps.LeadHandler.UpdateLead)
						r.Patch("/", deps.LeadHandler.UpdateLead)
						r.Delete("/", deps.LeadHandler.DeleteLead)
					})
				})
			}

			if deps.ClientHandler != nil {
				r.Route("/clients", func(r chi.Router) {
					r.Get("/", deps.ClientHandler.ListClients)
					r.Post("/", deps.ClientHandler.CreateClient)
					r.Route("/{clientId}", func(r chi.Router) {
						r.Get("/", deps.ClientHandler.GetClient)
						r.Put("/", deps.ClientHandler.UpdateClient)
						r.Patch("/", deps.ClientHandler.UpdateClient)
						r.Delete("/", deps.ClientHandler.DeleteClient)
					})
				})
			}

			if deps.DealHandler != nil {
				r.Route("/deals", func(r chi.Router) {
					r.Get("/", deps.DealHandler.ListDeals)
					r.Post("/", deps.DealHandler.CreateDeal)
					r.Route("/{dealId}", func(r chi.Router) {
						r.Get("/", deps.DealHandler.GetDeal)
						r.Put("/", deps.DealHandler.UpdateDeal)
						r.Patch("/", deps.DealHandler.UpdateDeal)
						r.Delete("/", deps.DealHandler.DeleteDeal)
					})
				})
			}

			if deps.ActivityHandler != nil {
				r.Route("/activities", func(r chi.Router) {
					r.Get("/", deps.ActivityHandler.ListActivities)
					r.Post("/", deps.ActivityHandler.CreateActivity)
					r.Delete("/{activityId}", deps.ActivityHandler.DeleteActivity)
				})
			}

			if deps.SettingsHandler != nil {
				r.Get("/settings", deps.SettingsHandler.GetSettings)
				r.Put("/settings", deps.SettingsHandler.UpdateSettings)
			}

			if deps.SearchHandler != nil {
				r.Get("/search", deps.SearchHandler.Search)
			}

			if deps.UploadHandler != nil {
				r.Post("/uploads", deps.UploadHandler.Upload)
			}
		})
	})

	return r
}

// metricsAuth gates /metrics behind a shared token when one is configured.
// Accepts either X-Metrics-Token or a Bearer Authorization header.
func metricsAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := r.Header.Get("X-Metrics-Token")
			if presented == "" {
				if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
					presented = strings.TrimPrefix(bearer, "Bearer ")
				}
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// countLeadIntake bumps the intake counter for each successfully created lead.
func countLeadIntake(metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := &createdWatcher{ResponseWriter: w}
			next.ServeHTTP(ww, r)
			if ww.created {
				metrics.LeadsReceived.Add(r.Context(), 1)
			}
		})
	}
}

type createdWatcher struct {
	http.ResponseWriter
	created bool
}

func (cw *createdWatcher) WriteHeader(code int) {
	if code == http.StatusCreated {
		cw.created = true
	}
	cw.ResponseWriter.WriteHeader(code)
}
