// Package backend is the data collaborator behind both dashboards: a
// declarative select/filter API, row mutations, server-side procedures,
// credential checks and the row change feed, all served by PostgreSQL.
package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Table names exposed through the query API.
const (
	TableConsultations      = "consultations"
	TableMarketingInquiries = "marketing_inquiries"
	TablePartnerInquiries   = "partner_inquiries"
	TablePromoInquiries     = "promo_inquiries"
	TablePartners           = "partners"
	TableSettlements        = "settlements"
	TableNotifications      = "notifications"
	TableNotices            = "notices"
)

var knownTables = map[string]struct{}{
	TableConsultations:      {},
	TableMarketingInquiries: {},
	TablePartnerInquiries:   {},
	TablePromoInquiries:     {},
	TablePartners:           {},
	TableSettlements:        {},
	TableNotifications:      {},
	TableNotices:            {},
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DB is the subset of pgx shared by pools and transactions.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func checkTable(table string) error {
	if _, ok := knownTables[table]; !ok {
		return fmt.Errorf("%w: unknown table %q", shared.ErrQuery, table)
	}
	return nil
}

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: invalid identifier %q", shared.ErrQuery, name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// classify wraps a driver error with the taxonomy sentinel for kind.
func classify(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, shared.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s: %w", kind, op, shared.ErrDuplicate)
		case pgErr.Code == "P0001":
			return fmt.Errorf("%w: %s: %s", kind, op, pgErr.Message)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			return fmt.Errorf("%w: %s: %s", kind, op, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %s: %v", kind, op, err)
}
