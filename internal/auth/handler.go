package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	onLogout       []func(sessionID string)
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// OnLogout registers fn to run with the session id when a user logs out.
func (h *Handler) OnLogout(fn func(sessionID string)) {
	h.onLogout = append(h.onLogout, fn)
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func home(role string) string {
	switch role {
	case backend.RoleAdmin:
		return "/admin"
	case backend.RolePartner:
		return "/partner"
	}
	return ""
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.User() != "" {
		if target := home(sess.Role()); target != "" {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	h.render(w, r, http.StatusOK, loginPageData{}, flash)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{Email: form.Email}, Errors: shared.FieldErrors(err)}, nil)
		return
	}

	sess.Renew()
	meta := backend.SessionMeta{
		ID:        sess.ID,
		ExpiresAt: time.Now().Add(h.sessionManager.TTL()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
	outcome, err := h.service.Login(r.Context(), form.Email, form.Password, meta)
	if err != nil {
		h.logger.Info("login failed", slog.String("email", form.Email), slog.Any("error", err))
		h.render(w, r, http.StatusBadRequest, loginPageData{
			Form:   loginForm{Email: form.Email},
			Errors: map[string]string{"general": shared.UserSafeMessage(err)},
		}, nil)
		return
	}

	if !outcome.Allowed {
		sess.Reset()
		flash := &shared.FlashMessage{Kind: string(outcome.Level), Message: outcome.Message}
		h.render(w, r, http.StatusForbidden, loginPageData{Form: loginForm{Email: form.Email}}, flash)
		return
	}

	sess.SetUser(outcome.Identity.UserID, outcome.Identity.Role)
	h.csrfManager.Rotate(sess)
	if outcome.PartnerID > 0 {
		sess.SetPartner(outcome.PartnerID)
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "로그인되었습니다."})
	http.Redirect(w, r, outcome.Redirect, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
		for _, fn := range h.onLogout {
			fn(sess.ID)
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData, flash *shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       "로그인",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
