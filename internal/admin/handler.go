// Package admin serves the administrator dashboard: the merged inquiry feed,
// consultation triage, partner approval, settlements and notices.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/inquiries"
	"github.com/referral-desk/referral-desk/internal/notices"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/rbac"
	"github.com/referral-desk/referral-desk/internal/settlements"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
)

// InquiryService is the merged inquiry feed.
type InquiryService interface {
	Feed(ctx context.Context, f inquiries.Filter) ([]inquiries.Row, error)
	Detail(ctx context.Context, origin inquiries.Origin, id int64) (inquiries.Row, error)
	UpdateStatus(ctx context.Context, origin inquiries.Origin, id int64, status string) error
}

// ClientService is consultation triage.
type ClientService interface {
	List(ctx context.Context, f clients.ListFilter) ([]clients.Client, int, error)
	Count(ctx context.Context, f clients.ListFilter) (int, error)
	Get(ctx context.Context, id int64) (clients.Client, error)
	UpdateTriage(ctx context.Context, id int64, status string) error
	UpdatePipeline(ctx context.Context, id int64, stage, amountText string) error
	UpdateMemo(ctx context.Context, id int64, memo string) error
	Delete(ctx context.Context, id int64) error
}

// PartnerService is partner onboarding.
type PartnerService interface {
	List(ctx context.Context, f partners.ListFilter) ([]partners.Partner, error)
	Get(ctx context.Context, id int64) (partners.Partner, error)
	AwaitingCount(ctx context.Context) (int, error)
	Approve(ctx context.Context, id int64, approverID string) (partners.Partner, error)
	Reject(ctx context.Context, id int64, approverID, reason string) (partners.Partner, error)
	SetReviewing(ctx context.Context, id int64) (partners.Partner, error)
}

// SettlementService is commission bookkeeping.
type SettlementService interface {
	Create(ctx context.Context, req settlements.CreateRequest) (settlements.Settlement, error)
	Advance(ctx context.Context, id int64) (settlements.Settlement, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f settlements.Filter) ([]settlements.Settlement, error)
	MonthSummary(ctx context.Context, month string) (settlements.Summary, error)
	CurrentMonth() string
}

// NoticeService is announcement CRUD.
type NoticeService interface {
	List(ctx context.Context) ([]notices.Notice, error)
	Get(ctx context.Context, id int64) (notices.Notice, error)
	Create(ctx context.Context, in notices.Input) (int64, error)
	Update(ctx context.Context, id int64, in notices.Input) error
	ToggleActive(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Services groups the collaborators of the admin dashboard.
type Services struct {
	Inquiries   InquiryService
	Clients     ClientService
	Partners    PartnerService
	Settlements SettlementService
	Notices     NoticeService
}

// Handler serves /admin.
type Handler struct {
	logger      *slog.Logger
	svc         Services
	templates   *view.Engine
	csrf        *shared.CSRFManager
	rbac        rbac.Middleware
	generations *shared.Generations
	now         func() time.Time
}

// NewHandler builds the admin handler.
func NewHandler(logger *slog.Logger, svc Services, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Middleware, generations *shared.Generations) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if generations == nil {
		generations = shared.NewGenerations()
	}
	return &Handler{logger: logger, svc: svc, templates: templates, csrf: csrf, rbac: guard, generations: generations, now: time.Now}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(backend.RoleAdmin))

	r.Get("/", h.dashboard)

	r.Route("/inquiries", func(r chi.Router) {
		r.Get("/", h.listInquiries)
		r.Get("/feed", h.inquiryFeed)
		r.Get("/export.csv", h.exportInquiries)
		r.Get("/{origin}/{id}", h.showInquiry)
		r.Post("/{origin}/{id}/status", h.updateInquiryStatus)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.listClients)
		r.Get("/export.csv", h.exportClients)
		r.Get("/{id}", h.showClient)
		r.Post("/{id}/status", h.updateClientStatus)
		r.Post("/{id}/pipeline", h.updateClientPipeline)
		r.Post("/{id}/memo", h.updateClientMemo)
		r.Post("/{id}/delete", h.deleteClient)
	})

	r.Route("/partners", func(r chi.Router) {
		r.Get("/", h.listPartners)
		r.Get("/export.csv", h.exportPartners)
		r.Get("/{id}", h.showPartner)
		r.Post("/{id}/approve", h.approvePartner)
		r.Post("/{id}/reject", h.rejectPartner)
		r.Post("/{id}/reviewing", h.reviewPartner)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Get("/", h.listSettlements)
		r.Post("/", h.createSettlement)
		r.Post("/preview", h.previewSettlement)
		r.Get("/export.csv", h.exportSettlements)
		r.Post("/{id}/advance", h.advanceSettlement)
		r.Post("/{id}/delete", h.deleteSettlement)
	})

	r.Route("/notices", func(r chi.Router) {
		r.Get("/", h.listNotices)
		r.Post("/", h.createNotice)
		r.Get("/{id}", h.showNotice)
		r.Post("/{id}", h.updateNotice)
		r.Post("/{id}/toggle", h.toggleNotice)
		r.Post("/{id}/delete", h.deleteNotice)
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Role:        backend.RoleAdmin,
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

// fail logs err and sends the operator back to location with a toast.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, location, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	h.redirectWithFlash(w, r, location, "error", shared.UserSafeMessage(err))
}

func (h *Handler) principal(r *http.Request) rbac.Principal {
	p, _ := rbac.PrincipalFrom(r.Context())
	return p
}

func (h *Handler) state(r *http.Request, view string) shared.DashboardState {
	return shared.LoadState(shared.SessionFromContext(r.Context()), view)
}

func (h *Handler) saveState(r *http.Request, view string, state shared.DashboardState) {
	shared.SaveState(shared.SessionFromContext(r.Context()), view, state)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// queryOrState reads a filter from the query string when present, falling
// back to the value remembered in the session.
func queryOrState(r *http.Request, state shared.DashboardState, key string) string {
	if values, ok := r.URL.Query()[key]; ok {
		return values[0]
	}
	return state.Filter(key, "")
}
