package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/referral-desk/referral-desk/internal/admin"
	"github.com/referral-desk/referral-desk/internal/auth"
	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/consult"
	"github.com/referral-desk/referral-desk/internal/observability"
	"github.com/referral-desk/referral-desk/internal/partnerdash"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
	"github.com/referral-desk/referral-desk/jobs"
	"github.com/referral-desk/referral-desk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	AdminHandler   *admin.Handler
	PartnerHandler *partnerdash.Handler
	ConsultHandler *consult.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthz)

	// The landing page sends each signed-in role to its own dashboard.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		target := "/auth/login"
		if sess != nil && sess.User() != "" {
			switch sess.Role() {
			case backend.RoleAdmin:
				target = "/admin"
			case backend.RolePartner:
				target = "/partner"
			}
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})

	r.With(loginLimiter()).Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/admin", params.AdminHandler.MountRoutes)
	r.Route("/partner", params.PartnerHandler.MountRoutes)
	if params.ConsultHandler != nil {
		r.Route("/consult", params.ConsultHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	mountStatic(r, params.Logger)
	return r
}

// NewSetupRouter serves the configuration notice while the backend
// credentials are missing. Every page except health and static assets
// renders the notice.
func NewSetupRouter(logger *slog.Logger, templates *view.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer, chimw.Logger)
	r.Get("/healthz", healthz)
	mountStatic(r, logger)
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := templates.Render(w, "pages/setup.html", view.TemplateData{Title: "초기 설정", CurrentPath: r.URL.Path}); err != nil {
			logger.Error("render setup", slog.Any("error", err))
		}
	})
	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func mountStatic(r chi.Router, logger *slog.Logger) {
	staticFS, err := web.Static()
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
		return
	}
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	r.Handle("/static/*", staticCacheHandler(fileServer))
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets (JS, CSS) are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
