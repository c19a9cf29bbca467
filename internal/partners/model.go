// Package partners holds partner onboarding: the approval state machine,
// the login gate and the cached partner list.
package partners

import (
	"time"
)

// Status is a partner approval status.
type Status string

const (
	StatusNew       Status = "new"
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// DefaultCommissionRate applies when a partner has no rate of its own.
const DefaultCommissionRate = 0.015

// undecided lists the statuses a decision may still leave.
var undecided = []Status{StatusNew, StatusPending, StatusReviewing}

// Undecided reports whether an admin may still approve or reject.
func (s Status) Undecided() bool {
	switch s {
	case StatusNew, StatusPending, StatusReviewing, "":
		return true
	}
	return false
}

// Partner is one channel partner.
type Partner struct {
	ID              int64      `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Phone           string     `db:"phone" json:"phone"`
	Email           *string    `db:"email" json:"email,omitempty"`
	Company         *string    `db:"company" json:"company,omitempty"`
	Status          Status     `db:"status" json:"status"`
	CommissionRate  *float64   `db:"commission_rate" json:"commission_rate,omitempty"`
	UserID          *string    `db:"user_id" json:"user_id,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Rate returns the commission rate as a fraction, falling back to the
// default.
func (p Partner) Rate() float64 {
	if p.CommissionRate == nil || *p.CommissionRate <= 0 {
		return DefaultCommissionRate
	}
	return *p.CommissionRate
}

// LinkedUser returns the linked login identity, if any.
func (p Partner) LinkedUser() (string, bool) {
	if p.UserID == nil || *p.UserID == "" {
		return "", false
	}
	return *p.UserID, true
}

// EmailAddress returns the contact address or an empty string.
func (p Partner) EmailAddress() string {
	if p.Email == nil {
		return ""
	}
	return *p.Email
}

// CompanyName returns the company or an empty string.
func (p Partner) CompanyName() string {
	if p.Company == nil {
		return ""
	}
	return *p.Company
}

// Reason returns the rejection reason or an empty string.
func (p Partner) Reason() string {
	if p.RejectionReason == nil {
		return ""
	}
	return *p.RejectionReason
}

// ListFilter narrows the admin partner list.
type ListFilter struct {
	Status string
	Search string
}
