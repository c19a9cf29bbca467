package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/inquiries"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/settlements"
)

// dashboardStats is the summary shown on the admin landing page.
type dashboardStats struct {
	InquiriesBySource map[inquiries.Source]int
	NewInquiries      int
	Clients           int
	NewClients        int
	PartnerClients    int
	AwaitingPartners  int
	Month             settlements.Summary
	Recent            []inquiries.Row
	Pending           []partners.Partner
}

const recentInquiries = 5

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		stats = dashboardStats{InquiriesBySource: make(map[inquiries.Source]int)}
		rows  []inquiries.Row
	)
	month := h.svc.Settlements.CurrentMonth()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = h.svc.Inquiries.Feed(gctx, inquiries.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		stats.Clients, err = h.svc.Clients.Count(gctx, clients.ListFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		stats.NewClients, err = h.svc.Clients.Count(gctx, clients.ListFilter{Status: clients.TriageNew})
		return err
	})
	g.Go(func() error {
		var err error
		stats.PartnerClients, err = h.svc.Clients.Count(gctx, clients.ListFilter{Linked: true})
		return err
	})
	g.Go(func() error {
		var err error
		stats.AwaitingPartners, err = h.svc.Partners.AwaitingCount(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats.Pending, err = h.svc.Partners.List(gctx, partners.ListFilter{Status: string(partners.StatusPending)})
		return err
	})
	g.Go(func() error {
		var err error
		stats.Month, err = h.svc.Settlements.MonthSummary(gctx, month)
		return err
	})

	data := map[string]any{"Stats": &stats, "Month": month}
	if err := g.Wait(); err != nil {
		h.logger.Error("admin dashboard", slog.Any("error", err))
		data["Error"] = "대시보드 데이터를 불러오지 못했습니다."
		h.render(w, r, "pages/admin_dashboard.html", "관리자 대시보드", data, http.StatusOK)
		return
	}

	for _, row := range rows {
		stats.InquiriesBySource[row.Source]++
		if row.Status == inquiries.DefaultStatus {
			stats.NewInquiries++
		}
	}
	if len(rows) > recentInquiries {
		rows = rows[:recentInquiries]
	}
	stats.Recent = rows
	data["Sources"] = inquiries.Sources
	h.render(w, r, "pages/admin_dashboard.html", "관리자 대시보드", data, http.StatusOK)
}
