package backend

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/referral-desk/referral-desk/internal/shared"
)

// Roles understood by the dashboards.
const (
	RoleAdmin   = "admin"
	RolePartner = "partner"
)

// Identity is the authenticated principal returned by the auth service.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// SessionMeta describes a login session for bookkeeping.
type SessionMeta struct {
	ID        string
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// Auth issues and validates sessions.
type Auth interface {
	SignIn(ctx context.Context, email, password string, meta SessionMeta) (Identity, error)
	SignOut(ctx context.Context, sessionID string) error
	CurrentSession(ctx context.Context, sessionID string) (Identity, bool, error)
}

// PGAuth checks bcrypt credentials in auth_users and tracks sessions in
// auth_sessions.
type PGAuth struct {
	db  DB
	now func() time.Time
}

// NewAuth constructs the PostgreSQL auth service.
func NewAuth(db DB) *PGAuth {
	return &PGAuth{db: db, now: time.Now}
}

// SignIn validates credentials and records the session.
func (a *PGAuth) SignIn(ctx context.Context, email, password string, meta SessionMeta) (Identity, error) {
	var (
		id       Identity
		hash     string
		isActive bool
	)
	err := a.db.QueryRow(ctx, `SELECT id::text, email, role, password_hash, is_active FROM auth_users WHERE lower(email) = lower($1)`, email).
		Scan(&id.UserID, &id.Email, &id.Role, &hash, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, shared.ErrInvalidCredentials
		}
		return Identity{}, classify(shared.ErrQuery, "sign in", err)
	}
	if !isActive {
		return Identity{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	if meta.ID != "" {
		_, err := a.db.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1, $2::uuid, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
			meta.ID, id.UserID, a.now().UTC(), meta.ExpiresAt.UTC(), meta.IP, meta.UserAgent)
		if err != nil {
			return Identity{}, classify(shared.ErrMutation, "register session", err)
		}
	}
	return id, nil
}

// SignOut removes the session record.
func (a *PGAuth) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := a.db.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, sessionID); err != nil {
		return classify(shared.ErrMutation, "sign out", err)
	}
	return nil
}

// CurrentSession resolves a live session to its identity.
func (a *PGAuth) CurrentSession(ctx context.Context, sessionID string) (Identity, bool, error) {
	var id Identity
	err := a.db.QueryRow(ctx, `SELECT u.id::text, u.email, u.role
FROM auth_sessions s JOIN auth_users u ON u.id = s.user_id
WHERE s.id = $1 AND s.expires_at > $2 AND u.is_active`, sessionID, a.now().UTC()).Scan(&id.UserID, &id.Email, &id.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, false, nil
		}
		return Identity{}, false, classify(shared.ErrQuery, "current session", err)
	}
	return id, true, nil
}

var _ Auth = (*PGAuth)(nil)
