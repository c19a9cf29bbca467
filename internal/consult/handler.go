// Package consult serves the public consultation request form.
package consult

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
)

// Intake stores a submitted consultation.
type Intake interface {
	Submit(ctx context.Context, req clients.IntakeRequest) (int64, error)
}

// SubmissionGuard claims a form token once so a resubmitted form is not
// stored twice.
type SubmissionGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const guardModule = "consult"

// Handler serves /consult.
type Handler struct {
	logger    *slog.Logger
	intake    Intake
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     SubmissionGuard
}

// NewHandler builds the consultation form handler.
func NewHandler(logger *slog.Logger, intake Intake, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, intake: intake, templates: templates, csrf: csrf}
}

// UseSubmissionGuard enables duplicate-submission protection.
func (h *Handler) UseSubmissionGuard(g SubmissionGuard) {
	h.guard = g
}

// MountRoutes registers the form routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/", h.submit)
}

type pageData struct {
	Form   clients.IntakeRequest
	Errors map[string]string
	Done   bool
	Token  string
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Form:   clients.IntakeRequest{SourcePage: r.URL.Query().Get("from")},
		Errors: map[string]string{},
		Done:   r.URL.Query().Get("done") == "1",
		Token:  uuid.NewString(),
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	req := clients.IntakeRequest{
		Name:         r.PostFormValue("name"),
		Phone:        r.PostFormValue("phone"),
		BusinessType: r.PostFormValue("business_type"),
		Revenue:      r.PostFormValue("revenue"),
		Region:       r.PostFormValue("region"),
		Product:      r.PostFormValue("product"),
		Message:      r.PostFormValue("message"),
		SourcePage:   r.PostFormValue("source_page"),
		Agree:        r.PostFormValue("agree") != "",
	}
	token := r.PostFormValue("submission")
	if h.guard != nil && token != "" {
		if err := h.guard.CheckAndInsert(r.Context(), token, guardModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				http.Redirect(w, r, "/consult?done=1", http.StatusSeeOther)
				return
			}
			h.logger.Warn("claim consult submission", slog.Any("error", err))
			token = ""
		}
	}
	if _, err := h.intake.Submit(r.Context(), req); err != nil {
		if h.guard != nil && token != "" {
			if derr := h.guard.Delete(r.Context(), token, guardModule); derr != nil {
				h.logger.Warn("release consult submission", slog.Any("error", derr))
			}
		}
		data := pageData{Form: req, Errors: map[string]string{}, Token: r.PostFormValue("submission")}
		status := http.StatusBadRequest
		var vErr *shared.ValidationError
		if errors.As(err, &vErr) {
			data.Errors[strings.ToLower(vErr.Field)] = vErr.Message
		} else {
			h.logger.Error("submit consultation", slog.Any("error", err))
			status = http.StatusBadGateway
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
		}
		h.render(w, r, status, data)
		return
	}
	http.Redirect(w, r, "/consult?done=1", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "상담 신청",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/consult.html", viewData); err != nil {
		h.logger.Error("render consult", slog.Any("error", err))
	}
}
