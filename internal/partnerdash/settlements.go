package partnerdash

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/referral-desk/referral-desk/internal/export"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/settlements"
	"github.com/referral-desk/referral-desk/internal/shared"
)

var partnerSettlementHeader = []string{"정산월", "고객명", "거래금액", "수수료율", "수수료", "상태", "지급일"}

// month reads ?month=; an empty value lists every month.
func month(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("month"))
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	partner := currentPartner(r)
	m := month(r)
	data := map[string]any{"Month": m, "CurrentMonth": h.svc.Settlements.CurrentMonth()}
	items, err := h.svc.Settlements.ListForPartner(r.Context(), partner.ID, m)
	if err != nil {
		h.logger.Error("partner settlements", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Settlements"] = items
	data["Summary"] = settlements.Summarize(m, items)
	h.render(w, r, "pages/partner_settlements.html", "정산 내역", data, http.StatusOK)
}

func (h *Handler) exportSettlements(w http.ResponseWriter, r *http.Request) {
	partner := currentPartner(r)
	items, err := h.svc.Settlements.ListForPartner(r.Context(), partner.ID, month(r))
	if err != nil {
		h.logger.Error("export partner settlements", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/partner/settlements", "error", shared.UserSafeMessage(err))
		return
	}
	rows := make([][]string, 0, len(items))
	for _, st := range items {
		paid := ""
		if st.PaidAt != nil {
			paid = labels.Date(*st.PaidAt)
		}
		rows = append(rows, []string{
			st.Month,
			st.ClientName,
			strconv.FormatInt(st.TransactionAmount, 10),
			labels.Percent(st.CommissionRate),
			strconv.FormatInt(st.CommissionAmount, 10),
			labels.SettlementStatus(st.Status),
			paid,
		})
	}
	if err := export.Serve(w, "my_settlements", h.now(), partnerSettlementHeader, rows); err != nil {
		h.logger.Error("write partner settlements csv", slog.Any("error", err))
	}
}
