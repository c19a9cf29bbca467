package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/referral-desk/referral-desk/internal/export"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/platform/httpx"
	"github.com/referral-desk/referral-desk/internal/settlements"
	"github.com/referral-desk/referral-desk/internal/shared"
)

const settlementsView = "settlements"

var settlementStatuses = []string{settlements.StatusPending, settlements.StatusConfirmed, settlements.StatusPaid}

var settlementHeader = []string{"정산월", "파트너", "고객명", "거래금액", "수수료율", "수수료", "상태", "등록일"}

func (h *Handler) settlementFilter(r *http.Request) (settlements.Filter, shared.DashboardState) {
	state := h.state(r, settlementsView).WithTab(settlementsView)
	f := settlements.Filter{
		Month:  strings.TrimSpace(queryOrState(r, state, "month")),
		Status: queryOrState(r, state, "status"),
	}
	if f.Month == "" {
		f.Month = h.svc.Settlements.CurrentMonth()
	}
	if f.Status == "all" {
		f.Status = ""
	}
	f.PartnerID, _ = strconv.ParseInt(queryOrState(r, state, "partner_id"), 10, 64)
	state = state.WithFilter("month", f.Month).WithFilter("status", f.Status)
	if f.PartnerID > 0 {
		state = state.WithFilter("partner_id", strconv.FormatInt(f.PartnerID, 10))
	} else {
		state = state.WithFilter("partner_id", "")
	}
	return f, state
}

func partnerNames(items []partners.Partner) map[int64]string {
	names := make(map[int64]string, len(items))
	for _, p := range items {
		names[p.ID] = p.Name
	}
	return names
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	f, state := h.settlementFilter(r)
	h.saveState(r, settlementsView, state)
	data := map[string]any{"Filter": f, "Statuses": settlementStatuses}

	approved, err := h.svc.Partners.List(r.Context(), partners.ListFilter{Status: string(partners.StatusApproved)})
	if err != nil {
		h.logger.Error("list settlement partners", slog.Any("error", err))
	}
	data["Partners"] = approved
	data["PartnerNames"] = partnerNames(approved)

	items, err := h.svc.Settlements.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list settlements", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Settlements"] = items
	data["Summary"] = settlements.Summarize(f.Month, items)
	h.render(w, r, "pages/admin_settlements.html", "정산 관리", data, http.StatusOK)
}

// parseRate reads the optional rate field. Blank yields nil, meaning the
// partner's own rate.
func parseRate(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return nil, nil
	}
	rate, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, shared.NewValidationError("commission_rate", "수수료율은 숫자로 입력해 주세요.")
	}
	return &rate, nil
}

func (h *Handler) createSettlement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	rate, err := parseRate(r.PostFormValue("rate_percent"))
	if err != nil {
		h.fail(w, r, "/admin/settlements", "create settlement", err)
		return
	}
	partnerID, _ := strconv.ParseInt(r.PostFormValue("partner_id"), 10, 64)
	clientID, _ := strconv.ParseInt(r.PostFormValue("client_id"), 10, 64)
	st, err := h.svc.Settlements.Create(r.Context(), settlements.CreateRequest{
		PartnerID:   partnerID,
		ClientID:    clientID,
		Month:       r.PostFormValue("month"),
		ClientName:  r.PostFormValue("client_name"),
		AmountText:  r.PostFormValue("transaction_amount"),
		RatePercent: rate,
	})
	if err != nil {
		h.fail(w, r, "/admin/settlements", "create settlement", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/settlements?month="+st.Month, "success",
		fmt.Sprintf("정산이 등록되었습니다. 수수료 %s", labels.Currency(st.CommissionAmount)))
}

// previewSettlement computes the commission while the operator types,
// resolving the rate exactly as creating the settlement would.
func (h *Handler) previewSettlement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "")
		return
	}
	rate, err := parseRate(r.PostFormValue("rate_percent"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	partnerID, _ := strconv.ParseInt(r.PostFormValue("partner_id"), 10, 64)
	preview, err := settlements.Preview(r.Context(), h.svc.Partners, partnerID, r.PostFormValue("transaction_amount"), rate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) exportSettlements(w http.ResponseWriter, r *http.Request) {
	f, _ := h.settlementFilter(r)
	items, err := h.svc.Settlements.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "/admin/settlements", "export settlements", err)
		return
	}
	all, err := h.svc.Partners.List(r.Context(), partners.ListFilter{})
	if err != nil {
		h.fail(w, r, "/admin/settlements", "export settlements", err)
		return
	}
	names := partnerNames(all)
	if err := export.Serve(w, "settlements", h.now(), settlementHeader, settlementRows(items, names)); err != nil {
		h.logger.Error("write settlements csv", slog.Any("error", err))
	}
}

func settlementRows(items []settlements.Settlement, names map[int64]string) [][]string {
	rows := make([][]string, 0, len(items))
	for _, st := range items {
		name := names[st.PartnerID]
		if name == "" {
			name = strconv.FormatInt(st.PartnerID, 10)
		}
		rows = append(rows, []string{
			st.Month,
			name,
			st.ClientName,
			strconv.FormatInt(st.TransactionAmount, 10),
			labels.Percent(st.CommissionRate),
			strconv.FormatInt(st.CommissionAmount, 10),
			labels.SettlementStatus(st.Status),
			labels.Date(st.CreatedAt),
		})
	}
	return rows
}

func (h *Handler) advanceSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	st, err := h.svc.Settlements.Advance(r.Context(), id)
	if err != nil {
		h.fail(w, r, "/admin/settlements", "advance settlement", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/settlements", "success", labels.SettlementStatus(st.Status)+" 처리되었습니다.")
}

func (h *Handler) deleteSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.Settlements.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "/admin/settlements", "delete settlement", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/settlements", "success", "정산이 삭제되었습니다.")
}
