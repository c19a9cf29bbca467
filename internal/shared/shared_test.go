package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newSession(t *testing.T) *Session {
	t.Helper()
	sm := NewSessionManager(newRedis(t), "s", "secret", time.Hour, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	return sess
}

func TestPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 1, p.Prev())
	assert.Equal(t, 3, p.Next())

	last := NewPagination(3, 20, 45)
	assert.Zero(t, last.Next())

	empty := NewPagination(0, 0, 0)
	assert.Equal(t, 1, empty.Page)
	assert.Zero(t, empty.TotalPages)
	assert.Zero(t, empty.Prev())

	assert.Equal(t, 1, PageFromQuery("abc"))
	assert.Equal(t, 1, PageFromQuery("-2"))
	assert.Equal(t, 4, PageFromQuery("4"))
}

func TestGenerationsDropStaleRequests(t *testing.T) {
	g := NewGenerations()

	first, ok := g.Observe("s1:inquiries", 0)
	require.True(t, ok)
	second, ok := g.Observe("s1:inquiries", 0)
	require.True(t, ok)
	assert.Equal(t, first+1, second)

	assert.False(t, g.Current("s1:inquiries", first))
	assert.True(t, g.Current("s1:inquiries", second))

	_, ok = g.Observe("s1:inquiries", first)
	assert.False(t, ok)

	other, ok := g.Observe("s2:inquiries", 0)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), other)

	g.Forget("s1:inquiries")
	again, ok := g.Observe("s1:inquiries", 0)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), again)
}

func TestGenerationsNeverShareOrSkip(t *testing.T) {
	g := NewGenerations()
	first, ok := g.Observe("s1:inquiries", 0)
	require.True(t, ok)

	_, ok = g.Observe("s1:inquiries", first)
	assert.False(t, ok)

	jumped, ok := g.Observe("s1:inquiries", 1<<40)
	require.True(t, ok)
	assert.Equal(t, first+1, jumped)
	next, ok := g.Observe("s1:inquiries", 0)
	require.True(t, ok)
	assert.Equal(t, jumped+1, next)
	assert.True(t, g.Current("s1:inquiries", next))
}

func TestDashboardStateRoundTrip(t *testing.T) {
	sess := newSession(t)

	state := LoadState(sess, "clients").WithTab("clients").WithFilter("status", "new").WithDetail(7)
	SaveState(sess, "clients", state)

	loaded := LoadState(sess, "clients")
	assert.Equal(t, "clients", loaded.Tab)
	assert.Equal(t, "new", loaded.Filter("status", ""))
	assert.Equal(t, "7", loaded.DetailKey())
	assert.Equal(t, "all", loaded.Filter("pipeline", "all"))

	switched := loaded.WithTab("partners")
	assert.Empty(t, switched.DetailKey())
	assert.Equal(t, "7", loaded.DetailKey())

	assert.Empty(t, LoadState(sess, "partners").Tab)
	assert.Empty(t, LoadState(nil, "clients").Tab)
}

func TestWithFilterDoesNotShareMaps(t *testing.T) {
	base := DashboardState{}.WithFilter("q", "kim")
	changed := base.WithFilter("q", "lee")
	assert.Equal(t, "kim", base.Filter("q", ""))
	assert.Equal(t, "lee", changed.Filter("q", ""))
}

func TestFlashSurvivesReset(t *testing.T) {
	sess := newSession(t)
	sess.SetUser("u1", "partner")
	sess.Set("state:clients", "{}")

	sess.Reset()
	sess.AddFlash(FlashMessage{Kind: "info", Message: "승인 대기 중입니다."})

	assert.Empty(t, sess.User())
	assert.Empty(t, sess.Get("state:clients"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "info", flash.Kind)
	assert.Nil(t, sess.PopFlash())
}

func TestIdempotencyStoreClaimsOnce(t *testing.T) {
	store := NewIdempotencyStore(newRedis(t), time.Minute)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "tok", "consult"))
	assert.ErrorIs(t, store.CheckAndInsert(ctx, "tok", "consult"), ErrIdempotencyConflict)
	assert.NoError(t, store.CheckAndInsert(ctx, "tok", "other"))

	require.NoError(t, store.Delete(ctx, "tok", "consult"))
	assert.NoError(t, store.CheckAndInsert(ctx, "tok", "consult"))

	assert.Error(t, store.CheckAndInsert(ctx, "", "consult"))
	var nilStore *IdempotencyStore
	assert.Error(t, nilStore.CheckAndInsert(ctx, "tok", "consult"))
}

func TestUserSafeMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewValidationError("phone", "연락처를 확인해 주세요."), "연락처를 확인해 주세요."},
		{fmt.Errorf("sign in: %w", ErrInvalidCredentials), "이메일 또는 비밀번호가 올바르지 않습니다."},
		{fmt.Errorf("%w: insert consultations: permission denied", ErrMutation), "저장에 실패했습니다: permission denied"},
		{fmt.Errorf("select partners: %w", ErrQuery), "데이터를 불러오지 못했습니다."},
		{errors.New("boom"), "처리 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserSafeMessage(tc.err))
	}
	assert.Empty(t, UserSafeMessage(nil))
	assert.ErrorIs(t, NewValidationError("name", "x"), ErrValidation)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := newSession(t)
	ctx := context.Background()

	token, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	require.NoError(t, m.VerifyToken(ctx, sess, token))

	rotated := m.Rotate(sess)
	assert.NotEqual(t, token, rotated)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, token), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, ""), ErrCSRFTokenMissing)
	assert.NoError(t, m.VerifyToken(ctx, sess, rotated))
}

func TestTokenFromRequest(t *testing.T) {
	form := httptest.NewRequest("POST", "/", strings.NewReader(url.Values{CSRFFormField: {"from-form"}}.Encode()))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form.Header.Set(CSRFHeader, "from-header")
	assert.Equal(t, "from-form", TokenFromRequest(form))

	script := httptest.NewRequest("POST", "/", nil)
	script.Header.Set(CSRFHeader, "from-header")
	assert.Equal(t, "from-header", TokenFromRequest(script))
}

func TestFlashReachesNextRequest(t *testing.T) {
	sm := NewSessionManager(newRedis(t), "s", "secret", time.Hour, false)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	sess.SetUser("u1", "partner")
	sess.SetPartner(7)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "저장되었습니다."})

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest("POST", "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	next := httptest.NewRequest("GET", "/", nil)
	next.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "partner", loaded.Role())
	assert.Equal(t, int64(7), loaded.PartnerID())
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "저장되었습니다.", flash.Message)

	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), next, loaded))
	again, err := sm.Load(ctx, next)
	require.NoError(t, err)
	assert.Nil(t, again.PopFlash())
}

func TestForgedSessionCookieStartsFresh(t *testing.T) {
	sm := NewSessionManager(newRedis(t), "s", "secret", time.Hour, false)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	sess.SetUser("u1", "admin")
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest("GET", "/", nil), sess))

	forged := httptest.NewRequest("GET", "/", nil)
	forged.AddCookie(&http.Cookie{Name: "s", Value: sess.ID + ".bogus"})
	loaded, err := sm.Load(ctx, forged)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, loaded.ID)
	assert.Empty(t, loaded.User())

	bare := httptest.NewRequest("GET", "/", nil)
	bare.AddCookie(&http.Cookie{Name: "s", Value: sess.ID})
	loaded, err = sm.Load(ctx, bare)
	require.NoError(t, err)
	assert.Empty(t, loaded.User())
}

func TestRenewRetiresOldID(t *testing.T) {
	sm := NewSessionManager(newRedis(t), "s", "secret", time.Hour, false)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	first := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, first, httptest.NewRequest("GET", "/", nil), sess))
	oldCookie := first.Result().Cookies()[0]

	req := httptest.NewRequest("POST", "/", nil)
	req.AddCookie(oldCookie)
	sess, err = sm.Load(ctx, req)
	require.NoError(t, err)
	oldID := sess.ID
	sess.Renew()
	sess.SetUser("u1", "partner")
	second := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, second, req, sess))
	assert.NotEqual(t, oldID, sess.ID)

	stale := httptest.NewRequest("GET", "/", nil)
	stale.AddCookie(oldCookie)
	loaded, err := sm.Load(ctx, stale)
	require.NoError(t, err)
	assert.Empty(t, loaded.User())

	fresh := httptest.NewRequest("GET", "/", nil)
	fresh.AddCookie(second.Result().Cookies()[0])
	loaded, err = sm.Load(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.User())
}

func TestDestroyExpiresCookie(t *testing.T) {
	sm := NewSessionManager(newRedis(t), "s", "secret", time.Hour, false)
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	sm.Destroy(sess)

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, httptest.NewRequest("GET", "/", nil), sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestCSRFTokenDiesWithRenewedSession(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := newSession(t)
	ctx := context.Background()

	before, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	sess.Renew()

	assert.ErrorIs(t, m.VerifyToken(ctx, sess, before), ErrCSRFTokenMismatch)
	after, err := m.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.NoError(t, m.VerifyToken(ctx, sess, after))
	assert.ErrorIs(t, m.VerifyToken(ctx, sess, "forged.token"), ErrCSRFTokenMismatch)
}
