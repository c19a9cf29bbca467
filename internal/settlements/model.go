// Package settlements records monthly partner commissions.
package settlements

import "time"

// Settlement statuses, in the order they advance.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPaid      = "paid"
)

// Settlement is one computed commission for a partner, client and month.
// CommissionAmount is stored at creation and never recomputed.
type Settlement struct {
	ID                int64      `db:"id" json:"id"`
	PartnerID         int64      `db:"partner_id" json:"partner_id"`
	ClientID          *int64     `db:"client_id" json:"client_id,omitempty"`
	Month             string     `db:"month" json:"month"`
	ClientName        string     `db:"client_name" json:"client_name"`
	TransactionAmount int64      `db:"transaction_amount" json:"transaction_amount"`
	CommissionRate    float64    `db:"commission_rate" json:"commission_rate"`
	CommissionAmount  int64      `db:"commission_amount" json:"commission_amount"`
	Status            string     `db:"status" json:"status"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	ConfirmedAt       *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	PaidAt            *time.Time `db:"paid_at" json:"paid_at,omitempty"`
}

// Filter narrows settlement lists.
type Filter struct {
	Month     string
	PartnerID int64
	Status    string
}

// CreateRequest is the admin settlement form. A nil RatePercent means
// "use the partner's configured rate"; an explicit zero stores 0%.
type CreateRequest struct {
	PartnerID   int64  `validate:"required,gt=0"`
	ClientID    int64  `validate:"gte=0"`
	Month       string `validate:"required"`
	ClientName  string `validate:"required,max=50"`
	AmountText  string `validate:"required"`
	RatePercent *float64
}

// Summary totals settlements for a month.
type Summary struct {
	Month            string           `json:"month"`
	Count            int              `json:"count"`
	TransactionTotal int64            `json:"transaction_total"`
	CommissionTotal  int64            `json:"commission_total"`
	ByStatus         map[string]int64 `json:"by_status"`
}

// Owed is the commission not yet paid out.
func (s Summary) Owed() int64 {
	return s.ByStatus[StatusPending] + s.ByStatus[StatusConfirmed]
}
