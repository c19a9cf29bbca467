package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/shared"
)

// PartnerDirectory resolves the partner linked to a login.
type PartnerDirectory interface {
	ByUser(ctx context.Context, userID string) (partners.Partner, error)
}

// Bridge opens and ends the realtime subscriptions of a partner session.
type Bridge interface {
	Open(sessionID string, partnerID int64, userID string) error
	End(ctx context.Context, sessionID string) error
}

// Service wraps authentication business rules.
type Service struct {
	auth     backend.Auth
	partners PartnerDirectory
	bridge   Bridge
	logger   *slog.Logger
}

// NewService constructs a new Service. bridge may be nil when realtime is
// disabled.
func NewService(auth backend.Auth, directory PartnerDirectory, bridge Bridge, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{auth: auth, partners: directory, bridge: bridge, logger: logger}
}

// Login signs in and applies the dashboard gate. Admins pass straight
// through; partners must be approved, and a partner that is turned away has
// its backend session ended before Login returns.
func (s *Service) Login(ctx context.Context, email, password string, meta backend.SessionMeta) (Outcome, error) {
	identity, err := s.auth.SignIn(ctx, email, password, meta)
	if err != nil {
		return Outcome{}, err
	}
	switch identity.Role {
	case backend.RoleAdmin:
		return Outcome{Identity: identity, Allowed: true, Redirect: "/admin"}, nil
	case backend.RolePartner:
	default:
		s.endSession(ctx, meta.ID)
		return Outcome{}, fmt.Errorf("role %q: %w", identity.Role, shared.ErrInvalidCredentials)
	}

	partner, err := s.partners.ByUser(ctx, identity.UserID)
	if err != nil {
		s.endSession(ctx, meta.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return Outcome{Identity: identity, Level: partners.LevelError, Message: "연결된 파트너 정보가 없습니다. 관리자에게 문의해 주세요."}, nil
		}
		return Outcome{}, err
	}

	decision := partners.Gate(partner)
	if !decision.Allow {
		s.endSession(ctx, meta.ID)
		return Outcome{Identity: identity, PartnerID: partner.ID, Level: decision.Level, Message: decision.Message}, nil
	}

	if s.bridge != nil {
		if err := s.bridge.Open(meta.ID, partner.ID, identity.UserID); err != nil {
			s.logger.Warn("open realtime bridge", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
		}
	}
	return Outcome{Identity: identity, Allowed: true, Redirect: "/partner", PartnerID: partner.ID}, nil
}

// Logout ends the realtime bridge on every instance before ending the
// backend session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if s.bridge != nil {
		if err := s.bridge.End(ctx, sessionID); err != nil {
			s.logger.Warn("end realtime bridge", slog.Any("error", err))
		}
	}
	return s.auth.SignOut(ctx, sessionID)
}

func (s *Service) endSession(ctx context.Context, sessionID string) {
	if err := s.auth.SignOut(ctx, sessionID); err != nil {
		s.logger.Warn("end denied session", slog.Any("error", err))
	}
}
