package backend

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// DuplicateResult is the answer of the duplicate-phone procedure.
type DuplicateResult struct {
	IsDuplicate   bool `db:"is_duplicate"`
	ExistingCount int  `db:"existing_count"`
}

// PartnerStat compares one partner against anonymized peer aggregates.
type PartnerStat struct {
	TotalPartners  int     `db:"total_partners"`
	MyClients      int     `db:"my_clients"`
	MyInstalled    int     `db:"my_installed"`
	AvgClients     float64 `db:"avg_clients"`
	AvgInstalled   float64 `db:"avg_installed"`
	MyRank         int     `db:"my_rank"`
	TopInstalled   int     `db:"top_installed"`
	MyInstallTotal int64   `db:"my_install_total"`
}

// LeaderboardEntry is one row of the monthly ranking; partner names are
// masked server-side.
type LeaderboardEntry struct {
	Rank           int    `db:"rank" json:"rank"`
	PartnerID      int64  `db:"partner_id" json:"partner_id"`
	MaskedName     string `db:"masked_name" json:"masked_name"`
	InstalledCount int    `db:"installed_count" json:"installed_count"`
	TotalAmount    int64  `db:"total_amount" json:"total_amount"`
}

// NotificationInput is the payload of the create-notification procedure.
type NotificationInput struct {
	UserID  string
	Type    string
	Title   string
	Message string
}

// RPC groups the named server-side procedures.
type RPC interface {
	CheckDuplicatePhone(ctx context.Context, phone string) (DuplicateResult, error)
	PartnerStats(ctx context.Context, partnerID int64) (PartnerStat, error)
	MonthlyLeaderboard(ctx context.Context, month string, limit int) ([]LeaderboardEntry, error)
	CreateNotification(ctx context.Context, input NotificationInput) (int64, error)
}

// PGRPC calls the procedures as SQL functions.
type PGRPC struct {
	db DB
}

// NewRPC constructs the PostgreSQL RPC client.
func NewRPC(db DB) *PGRPC {
	return &PGRPC{db: db}
}

// NormalizePhone keeps digits only so "010-1234-5678" and "01012345678"
// compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CheckDuplicatePhone reports whether a client with phone already exists.
func (r *PGRPC) CheckDuplicatePhone(ctx context.Context, phone string) (DuplicateResult, error) {
	rows, err := r.db.Query(ctx, `SELECT is_duplicate, existing_count FROM check_duplicate_phone($1)`, NormalizePhone(phone))
	if err != nil {
		return DuplicateResult{}, classify(shared.ErrQuery, "rpc check_duplicate_phone", err)
	}
	res, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[DuplicateResult])
	if err != nil {
		return DuplicateResult{}, classify(shared.ErrQuery, "rpc check_duplicate_phone", err)
	}
	return res, nil
}

// PartnerStats returns the anonymized comparison for partnerID.
func (r *PGRPC) PartnerStats(ctx context.Context, partnerID int64) (PartnerStat, error) {
	rows, err := r.db.Query(ctx, `SELECT total_partners, my_clients, my_installed, avg_clients, avg_installed, my_rank, top_installed, my_install_total FROM partner_anonymized_stats($1)`, partnerID)
	if err != nil {
		return PartnerStat{}, classify(shared.ErrQuery, "rpc partner_anonymized_stats", err)
	}
	res, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[PartnerStat])
	if err != nil {
		return PartnerStat{}, classify(shared.ErrQuery, "rpc partner_anonymized_stats", err)
	}
	return res, nil
}

// MonthlyLeaderboard ranks partners by installs within month (YYYY-MM).
func (r *PGRPC) MonthlyLeaderboard(ctx context.Context, month string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, `SELECT rank, partner_id, masked_name, installed_count, total_amount FROM monthly_leaderboard($1, $2)`, month, limit)
	if err != nil {
		return nil, classify(shared.ErrQuery, "rpc monthly_leaderboard", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[LeaderboardEntry])
	if err != nil {
		return nil, classify(shared.ErrQuery, "rpc monthly_leaderboard", err)
	}
	return entries, nil
}

// CreateNotification inserts a notification for a user and returns its id.
func (r *PGRPC) CreateNotification(ctx context.Context, input NotificationInput) (int64, error) {
	if input.UserID == "" {
		return 0, shared.NewValidationError("user_id", "알림 수신자가 없습니다.")
	}
	var id int64
	err := r.db.QueryRow(ctx, `SELECT create_notification($1, $2, $3, $4)`, input.UserID, input.Type, input.Title, input.Message).Scan(&id)
	if err != nil {
		return 0, classify(shared.ErrMutation, "rpc create_notification", err)
	}
	return id, nil
}

var _ RPC = (*PGRPC)(nil)
