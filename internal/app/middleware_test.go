package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/shared"
)

func newStackRouter(t *testing.T) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         NewLogger(&Config{}),
		Config:         &Config{},
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf"),
	}) {
		r.Use(mw)
	}
	return r, sessions
}

func TestSessionCommittedWhenHandlerWritesNothing(t *testing.T) {
	r, _ := newStackRouter(t)
	r.Get("/noop", func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).Set("seen", "1")
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/noop", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestPostWithoutCSRFTokenIsForbidden(t *testing.T) {
	r, _ := newStackRouter(t)
	var reached bool
	r.Post("/form", func(w http.ResponseWriter, r *http.Request) { reached = true })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/form", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, reached)
}

func TestLoginLimiterCountsOnlyPosts(t *testing.T) {
	r := chi.NewRouter()
	r.With(loginLimiter()).Route("/auth", func(r chi.Router) {
		r.Get("/login", func(w http.ResponseWriter, r *http.Request) {})
		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {})
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(url.Values{"email": {"a@b.c"}}.Encode()))
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}
	for i := 0; i < loginAttemptsPerMinute; i++ {
		require.Equal(t, http.StatusOK, post())
	}
	assert.Equal(t, http.StatusTooManyRequests, post())

	get := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	get.RemoteAddr = "10.0.0.1:5000"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get)
	assert.Equal(t, http.StatusOK, rr.Code)
}
