package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/platform/httpx"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

// SessionChecker confirms that a session is still live on the backend.
type SessionChecker interface {
	CurrentSession(ctx context.Context, sessionID string) (backend.Identity, bool, error)
}

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Sessions SessionChecker
	Logger   *slog.Logger
	// OnExpired runs with the cookie session id when the backend no longer
	// knows the session, before the cookie session is reset.
	OnExpired func(sessionID string)
}

// RequireRole ensures the current session belongs to one of roles. The
// backend session is re-checked on every request so that an expired or
// revoked session is treated like a missing one.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || strings.TrimSpace(sess.User()) == "" {
				m.unauthenticated(w, r, sess, false)
				return
			}
			principal := Principal{UserID: sess.User(), Role: sess.Role(), SessionID: sess.ID}
			if m.Sessions != nil {
				identity, ok, err := m.Sessions.CurrentSession(r.Context(), sess.ID)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("rbac current session", slog.Any("error", err))
					}
					httpx.RespondError(w, err)
					return
				}
				if !ok || identity.UserID != principal.UserID {
					m.expired(sess.ID)
					m.unauthenticated(w, r, sess, true)
					return
				}
				principal.Role = identity.Role
				principal.Email = identity.Email
			}
			if !hasRole(allowed, principal.Role) {
				if wantsHTML(r) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func (m Middleware) expired(sessionID string) {
	if m.OnExpired != nil {
		m.OnExpired(sessionID)
	}
}

// StillSignedIn re-checks a long-lived request's backend session. Errors
// count as signed in so a backend hiccup does not cut a stream; an expired
// session runs OnExpired.
func (m Middleware) StillSignedIn(ctx context.Context, p Principal) bool {
	if m.Sessions == nil {
		return true
	}
	identity, ok, err := m.Sessions.CurrentSession(ctx, p.SessionID)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Warn("rbac recheck session", slog.Any("error", err))
		}
		return true
	}
	if ok && identity.UserID == p.UserID {
		return true
	}
	m.expired(p.SessionID)
	return false
}

func (m Middleware) unauthenticated(w http.ResponseWriter, r *http.Request, sess *shared.Session, expired bool) {
	if sess != nil && expired {
		sess.Reset()
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(shared.ErrAuth)})
	}
	if wantsHTML(r) {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	httpx.RespondError(w, shared.ErrAuth)
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") || strings.Contains(accept, "text/event-stream") {
		return false
	}
	return r.Method == http.MethodGet || r.Method == http.MethodHead || strings.Contains(accept, "text/html") || accept == ""
}

func normalizeRoles(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

func hasRole(allowed map[string]struct{}, role string) bool {
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[strings.ToLower(role)]
	return ok
}
