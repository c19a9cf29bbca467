package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/referral-desk/referral-desk/internal/export"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/partners"
	"github.com/referral-desk/referral-desk/internal/shared"
)

const partnersView = "partners"

var partnerStatuses = []partners.Status{
	partners.StatusNew, partners.StatusPending, partners.StatusReviewing, partners.StatusApproved, partners.StatusRejected,
}

var partnerHeader = []string{"가입일", "이름", "연락처", "이메일", "회사", "상태", "수수료율", "승인일", "반려사유"}

func (h *Handler) partnerFilter(r *http.Request) (partners.ListFilter, shared.DashboardState) {
	state := h.state(r, partnersView).WithTab(partnersView)
	f := partners.ListFilter{
		Status: queryOrState(r, state, "status"),
		Search: strings.TrimSpace(queryOrState(r, state, "q")),
	}
	state = state.WithFilter("status", f.Status).WithFilter("q", f.Search)
	return f, state
}

func (h *Handler) listPartners(w http.ResponseWriter, r *http.Request) {
	f, state := h.partnerFilter(r)
	h.saveState(r, partnersView, state)
	data := map[string]any{"Filter": f, "Statuses": partnerStatuses}
	items, err := h.svc.Partners.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list partners", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Partners"] = items
	h.render(w, r, "pages/admin_partners.html", "파트너 관리", data, http.StatusOK)
}

func (h *Handler) exportPartners(w http.ResponseWriter, r *http.Request) {
	f, _ := h.partnerFilter(r)
	items, err := h.svc.Partners.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "/admin/partners", "export partners", err)
		return
	}
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		approved := ""
		if p.ApprovedAt != nil {
			approved = labels.Date(*p.ApprovedAt)
		}
		rows = append(rows, []string{
			labels.Date(p.CreatedAt),
			p.Name,
			p.Phone,
			p.EmailAddress(),
			p.CompanyName(),
			labels.PartnerStatus(string(p.Status)),
			labels.Percent(p.Rate()),
			approved,
			p.Reason(),
		})
	}
	if err := export.Serve(w, "partners", h.now(), partnerHeader, rows); err != nil {
		h.logger.Error("write partners csv", slog.Any("error", err))
	}
}

func (h *Handler) showPartner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := h.svc.Partners.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "/admin/partners", "partner detail", err)
		return
	}
	h.saveState(r, partnersView, h.state(r, partnersView).WithTab(partnersView).WithDetail(id))
	h.render(w, r, "pages/admin_partner_detail.html", "파트너 상세", map[string]any{
		"Partner":   p,
		"Undecided": p.Status.Undecided(),
	}, http.StatusOK)
}

func (h *Handler) partnerDecision(w http.ResponseWriter, r *http.Request, action, success string, apply func(id int64) error) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/admin/partners/%d", id)
	if err := apply(id); err != nil {
		h.fail(w, r, back, action, err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", success)
}

func (h *Handler) approvePartner(w http.ResponseWriter, r *http.Request) {
	h.partnerDecision(w, r, "approve partner", "파트너가 승인되었습니다.", func(id int64) error {
		_, err := h.svc.Partners.Approve(r.Context(), id, h.principal(r).UserID)
		return err
	})
}

func (h *Handler) rejectPartner(w http.ResponseWriter, r *http.Request) {
	h.partnerDecision(w, r, "reject partner", "파트너가 반려되었습니다.", func(id int64) error {
		_, err := h.svc.Partners.Reject(r.Context(), id, h.principal(r).UserID, r.PostFormValue("reason"))
		return err
	})
}

func (h *Handler) reviewPartner(w http.ResponseWriter, r *http.Request) {
	h.partnerDecision(w, r, "review partner", "검토중으로 변경되었습니다.", func(id int64) error {
		_, err := h.svc.Partners.SetReviewing(r.Context(), id)
		return err
	})
}
