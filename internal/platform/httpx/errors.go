// Package httpx writes the JSON and RFC7807 responses of the dashboard
// endpoints.
package httpx

import (
	"errors"
	"net/http"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to RFC7807 responses. The detail is the
// user-facing message so dashboards can show it as a toast verbatim.
func RespondError(w http.ResponseWriter, err error) {
	detail := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", detail)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "접근 권한이 없습니다.")
	case errors.Is(err, ErrUnauthorized), errors.Is(err, shared.ErrAuth), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", detail)
	case errors.Is(err, shared.ErrMutation):
		Problem(w, http.StatusUnprocessableEntity, "Mutation Rejected", detail)
	case errors.Is(err, shared.ErrQuery):
		Problem(w, http.StatusBadGateway, "Backend Unavailable", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	}
}
