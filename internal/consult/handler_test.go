package consult

import (
	"context"
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

	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/internal/view"
)

type stubIntake struct {
	got []clients.IntakeRequest
	err error
}

func (s *stubIntake) Submit(_ context.Context, req clients.IntakeRequest) (int64, error) {
	s.got = append(s.got, req)
	return 1, s.err
}

func newHandler(t *testing.T, intake Intake) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)
	return NewHandler(nil, intake, templates, shared.NewCSRFManager("csrf")), sessions
}

func do(t *testing.T, h *Handler, sessions *shared.SessionManager, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	if req.Method == http.MethodPost {
		h.submit(rr, req)
	} else {
		h.show(rr, req)
	}
	return rr
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/consult", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestShowForm(t *testing.T) {
	h, sessions := newHandler(t, &stubIntake{})
	rr := do(t, h, sessions, httptest.NewRequest(http.MethodGet, "/consult?from=promo-landing", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="business_type"`)
	assert.Contains(t, rr.Body.String(), `value="promo-landing"`)
}

func TestSubmitRedirectsOnSuccess(t *testing.T) {
	intake := &stubIntake{}
	h, sessions := newHandler(t, intake)
	rr := do(t, h, sessions, formRequest(url.Values{
		"name":          {"홍길동"},
		"phone":         {"010-1234-5678"},
		"business_type": {"cafe"},
		"agree":         {"1"},
	}))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/consult?done=1", rr.Header().Get("Location"))
	require.Len(t, intake.got, 1)
	assert.True(t, intake.got[0].Agree)
	assert.Equal(t, "cafe", intake.got[0].BusinessType)
}

func TestSubmitValidationKeepsInput(t *testing.T) {
	intake := &stubIntake{err: shared.NewValidationError("phone", "연락처를 확인해 주세요.")}
	h, sessions := newHandler(t, intake)
	rr := do(t, h, sessions, formRequest(url.Values{"name": {"홍길동"}, "phone": {"abc"}}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "연락처를 확인해 주세요.")
	assert.Contains(t, rr.Body.String(), `value="홍길동"`)
}

func TestSubmitBackendFailure(t *testing.T) {
	h, sessions := newHandler(t, &stubIntake{err: shared.ErrMutation})
	rr := do(t, h, sessions, formRequest(url.Values{"name": {"a"}}))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "저장에 실패했습니다")
}

func TestSubmitTwiceStoresOnce(t *testing.T) {
	intake := &stubIntake{}
	h, sessions := newHandler(t, intake)
	mr := miniredis.RunT(t)
	h.UseSubmissionGuard(shared.NewIdempotencyStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour))

	values := url.Values{
		"name":          {"홍길동"},
		"phone":         {"010-1234-5678"},
		"business_type": {"cafe"},
		"agree":         {"1"},
		"submission":    {"token-1"},
	}
	first := do(t, h, sessions, formRequest(values))
	second := do(t, h, sessions, formRequest(values))

	assert.Equal(t, http.StatusSeeOther, first.Code)
	assert.Equal(t, http.StatusSeeOther, second.Code)
	assert.Equal(t, "/consult?done=1", second.Header().Get("Location"))
	assert.Len(t, intake.got, 1)
}

func TestFailedSubmitReleasesToken(t *testing.T) {
	intake := &stubIntake{err: shared.ErrMutation}
	h, sessions := newHandler(t, intake)
	mr := miniredis.RunT(t)
	h.UseSubmissionGuard(shared.NewIdempotencyStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour))

	values := url.Values{"name": {"a"}, "submission": {"token-2"}}
	rr := do(t, h, sessions, formRequest(values))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="token-2"`)

	intake.err = nil
	rr = do(t, h, sessions, formRequest(values))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Len(t, intake.got, 2)
}
