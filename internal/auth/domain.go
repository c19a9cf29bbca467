package auth

import (
	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/partners"
)

// Outcome is the result of a sign-in attempt that passed credential checks.
// When Allowed is false the backend session has already been ended and the
// caller must show Message at Level.
type Outcome struct {
	Identity  backend.Identity
	Allowed   bool
	Redirect  string
	PartnerID int64
	Level     partners.Level
	Message   string
}
