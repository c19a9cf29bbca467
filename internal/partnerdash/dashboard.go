package partnerdash

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/leaderboard"
	"github.com/referral-desk/referral-desk/internal/notices"
	"github.com/referral-desk/referral-desk/internal/pipeline"
	"github.com/referral-desk/referral-desk/internal/settlements"
)

const activeNotices = 5

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	partner := currentPartner(r)
	userID := h.principal(r).UserID
	month := h.svc.Settlements.CurrentMonth()

	var (
		stats   clients.Stats
		unread  int
		news    []notices.Notice
		monthly []settlements.Settlement
		ranking []backend.LeaderboardEntry
		peers   *backend.PartnerStat
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		stats, err = h.svc.Clients.StatsForPartner(ctx, partner.ID)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = h.svc.Notifications.UnreadCount(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		news, err = h.svc.Notices.ListActive(ctx, activeNotices)
		return err
	})
	g.Go(func() error {
		var err error
		monthly, err = h.svc.Settlements.ListForPartner(ctx, partner.ID, month)
		return err
	})
	// The ranking and peer comparison are decorations; their failure only
	// hides the panel.
	g.Go(func() error {
		entries, err := h.svc.Leaderboard.Month(ctx, month, leaderboard.DefaultLimit)
		if err != nil {
			h.logger.Warn("partner leaderboard", slog.Any("error", err))
			return nil
		}
		ranking = entries
		return nil
	})
	g.Go(func() error {
		st, err := h.svc.Peers.PartnerStats(ctx, partner.ID)
		if err != nil {
			h.logger.Warn("partner peer stats", slog.Any("error", err))
			return nil
		}
		peers = &st
		return nil
	})

	data := map[string]any{"Month": month, "Stages": pipeline.Stages}
	if err := g.Wait(); err != nil {
		h.logger.Error("partner dashboard", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
		data["Error"] = "대시보드 데이터를 불러오지 못했습니다."
		h.render(w, r, "pages/partner_dashboard.html", "파트너 대시보드", data, http.StatusOK)
		return
	}

	me, ranked := leaderboard.Position(ranking, partner.ID)
	data["Stats"] = stats
	data["Unread"] = unread
	data["Notices"] = news
	data["MonthSummary"] = settlements.Summarize(month, monthly)
	data["Leaderboard"] = ranking
	data["Me"] = me
	data["Ranked"] = ranked
	data["Peers"] = peers
	h.render(w, r, "pages/partner_dashboard.html", "파트너 대시보드", data, http.StatusOK)
}
