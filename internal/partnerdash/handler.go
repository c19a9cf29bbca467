// Package partnerdash serves the partner dashboard: own clients and their
// pipeline, settlements, notifications and the live event stream.
package partnerdash

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/notices"
	"github.com/referral-desk/referral-desk/internal/notifications"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/rbac"
	"github.com/referral-desk/referral-desk/internal/realtime"
	"github.com/referral-desk/referral-desk/internal/settlements"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
)

// PartnerLookup loads the signed-in partner.
type PartnerLookup interface {
	Get(ctx context.Context, id int64) (partners.Partner, error)
}

// ClientService is the partner's view of consultation records.
type ClientService interface {
	ListForPartner(ctx context.Context, partnerID int64, f clients.ListFilter) ([]clients.Client, error)
	StatsForPartner(ctx context.Context, partnerID int64) (clients.Stats, error)
	GetForPartner(ctx context.Context, partnerID, id int64) (clients.Client, error)
	Register(ctx context.Context, partnerID int64, req clients.RegisterRequest) (int64, error)
}

// SettlementService lists the partner's commissions.
type SettlementService interface {
	ListForPartner(ctx context.Context, partnerID int64, month string) ([]settlements.Settlement, error)
	CurrentMonth() string
}

// NotificationService reads and acknowledges notifications.
type NotificationService interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]notifications.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, id int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NoticeService lists published notices.
type NoticeService interface {
	ListActive(ctx context.Context, limit int) ([]notices.Notice, error)
}

// Leaderboard serves the monthly ranking.
type Leaderboard interface {
	Month(ctx context.Context, month string, limit int) ([]backend.LeaderboardEntry, error)
}

// PeerStats compares a partner with anonymized peers.
type PeerStats interface {
	PartnerStats(ctx context.Context, partnerID int64) (backend.PartnerStat, error)
}

// Bridge is the realtime subscription registry.
type Bridge interface {
	Open(sessionID string, partnerID int64, userID string) error
	Events(sessionID string) (<-chan realtime.Event, bool)
}

// Services groups the collaborators of the partner dashboard.
type Services struct {
	Partners      PartnerLookup
	Clients       ClientService
	Settlements   SettlementService
	Notifications NotificationService
	Notices       NoticeService
	Leaderboard   Leaderboard
	Peers         PeerStats
	Bridge        Bridge
}

// Handler serves /partner.
type Handler struct {
	logger    *slog.Logger
	svc       Services
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	now       func() time.Time
	heartbeat time.Duration
}

// NewHandler builds the partner handler.
func NewHandler(logger *slog.Logger, svc Services, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, svc: svc, templates: templates, csrf: csrf, rbac: guard, now: time.Now, heartbeat: 25 * time.Second}
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(backend.RolePartner))
	r.Use(h.requireApproved)

	r.Get("/", h.dashboard)
	r.Get("/events", h.events)

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.listClients)
		r.Get("/new", h.newClient)
		r.Post("/", h.registerClient)
		r.Get("/export.csv", h.exportClients)
		r.Get("/{id}", h.showClient)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Get("/", h.listSettlements)
		r.Get("/export.csv", h.exportSettlements)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.listNotifications)
		r.Post("/read-all", h.readAllNotifications)
		r.Post("/{id}/read", h.readNotification)
	})
}

type partnerKey struct{}

// requireApproved re-applies the login gate on every request so that a
// partner whose approval is withdrawn loses access immediately.
func (h *Handler) requireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		id := sess.PartnerID()
		if id <= 0 {
			h.turnAway(w, r, sess, partners.Decision{Level: partners.LevelError, Message: shared.UserSafeMessage(shared.ErrAuth)})
			return
		}
		p, err := h.svc.Partners.Get(r.Context(), id)
		if err != nil {
			h.logger.Error("load signed-in partner", slog.Int64("partner_id", id), slog.Any("error", err))
			h.turnAway(w, r, sess, partners.Decision{Level: partners.LevelError, Message: shared.UserSafeMessage(err)})
			return
		}
		if decision := partners.Gate(p); !decision.Allow {
			h.turnAway(w, r, sess, decision)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), partnerKey{}, p)))
	})
}

func (h *Handler) turnAway(w http.ResponseWriter, r *http.Request, sess *shared.Session, d partners.Decision) {
	sess.Reset()
	sess.AddFlash(shared.FlashMessage{Kind: string(d.Level), Message: d.Message})
	http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
}

func currentPartner(r *http.Request) partners.Partner {
	p, _ := r.Context().Value(partnerKey{}).(partners.Partner)
	return p
}

func (h *Handler) principal(r *http.Request) rbac.Principal {
	p, _ := rbac.PrincipalFrom(r.Context())
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data["Partner"] = currentPartner(r)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Role:        backend.RolePartner,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
