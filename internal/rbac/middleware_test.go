package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/shared"
)

type fakeSessions struct {
	identity backend.Identity
	live     bool
}

func (f fakeSessions) CurrentSession(ctx context.Context, sessionID string) (backend.Identity, bool, error) {
	return f.identity, f.live, nil
}

func newSession(t *testing.T, userID, role string) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID, role)
	}
	return sess
}

func serve(m Middleware, sess *shared.Session, method, accept string, roles ...string) (*httptest.ResponseRecorder, *Principal) {
	var seen *Principal
	h := m.RequireRole(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		seen = &p
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(method, "/admin", nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func TestRequireRoleRedirectsAnonymousBrowser(t *testing.T) {
	rr, seen := serve(Middleware{}, newSession(t, "", ""), http.MethodGet, "text/html", backend.RoleAdmin)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, LoginPath, rr.Header().Get("Location"))
	assert.Nil(t, seen)
}

func TestRequireRoleAnswersJSONWith401(t *testing.T) {
	rr, _ := serve(Middleware{}, newSession(t, "", ""), http.MethodGet, "application/json", backend.RoleAdmin)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	sess := newSession(t, "u-1", backend.RolePartner)
	m := Middleware{Sessions: fakeSessions{identity: backend.Identity{UserID: "u-1", Role: backend.RolePartner}, live: true}}
	rr, seen := serve(m, sess, http.MethodGet, "text/html", backend.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Nil(t, seen)
}

func TestRequireRoleExpiredSessionFlashesAndRedirects(t *testing.T) {
	sess := newSession(t, "u-1", backend.RoleAdmin)
	rr, seen := serve(Middleware{Sessions: fakeSessions{live: false}}, sess, http.MethodGet, "", backend.RoleAdmin)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Nil(t, seen)
	assert.Empty(t, sess.User())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
}

func TestRequireRolePassesPrincipal(t *testing.T) {
	sess := newSession(t, "u-9", backend.RoleAdmin)
	m := Middleware{Sessions: fakeSessions{identity: backend.Identity{UserID: "u-9", Email: "a@x.kr", Role: backend.RoleAdmin}, live: true}}
	rr, seen := serve(m, sess, http.MethodPost, "", " ADMIN ")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-9", seen.UserID)
	assert.Equal(t, "a@x.kr", seen.Email)
	assert.Equal(t, sess.ID, seen.SessionID)
}

func TestExpiredSessionRunsOnExpiredBeforeReset(t *testing.T) {
	sess := newSession(t, "u-1", backend.RolePartner)
	id := sess.ID
	var ended []string
	m := Middleware{
		Sessions:  fakeSessions{live: false},
		OnExpired: func(sessionID string) { ended = append(ended, sessionID) },
	}

	rr, _ := serve(m, sess, http.MethodGet, "text/event-stream", backend.RolePartner)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, []string{id}, ended)
}

func TestAnonymousRequestDoesNotRunOnExpired(t *testing.T) {
	called := false
	m := Middleware{Sessions: fakeSessions{live: false}, OnExpired: func(string) { called = true }}
	serve(m, newSession(t, "", ""), http.MethodGet, "", backend.RoleAdmin)
	assert.False(t, called)
}

func TestStillSignedIn(t *testing.T) {
	p := Principal{UserID: "u-1", SessionID: "s-1"}
	var ended []string
	onExpired := func(id string) { ended = append(ended, id) }

	live := Middleware{Sessions: fakeSessions{identity: backend.Identity{UserID: "u-1"}, live: true}, OnExpired: onExpired}
	assert.True(t, live.StillSignedIn(context.Background(), p))

	swapped := Middleware{Sessions: fakeSessions{identity: backend.Identity{UserID: "u-2"}, live: true}, OnExpired: onExpired}
	assert.False(t, swapped.StillSignedIn(context.Background(), p))

	gone := Middleware{Sessions: fakeSessions{live: false}, OnExpired: onExpired}
	assert.False(t, gone.StillSignedIn(context.Background(), p))

	assert.Equal(t, []string{"s-1", "s-1"}, ended)
	assert.True(t, Middleware{}.StillSignedIn(context.Background(), p))
}
