package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/referral-desk/referral-desk/internal/clients"
	"github.com/referral-desk/referral-desk/internal/export"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/pipeline"
	"github.com/referral-desk/referral-desk/internal/shared"
)

const (
	clientsView    = "clients"
	clientsPerPage = 20
)

var clientHeader = []string{"접수일", "이름", "연락처", "업종", "매출", "지역", "관심상품", "상태", "진행단계", "거래금액", "파트너ID", "메모"}

func (h *Handler) clientFilter(r *http.Request) (clients.ListFilter, shared.DashboardState) {
	state := h.state(r, clientsView).WithTab(clientsView)
	f := clients.ListFilter{
		Status:   queryOrState(r, state, "status"),
		Pipeline: queryOrState(r, state, "pipeline"),
		Search:   strings.TrimSpace(queryOrState(r, state, "q")),
		Linked:   queryOrState(r, state, "linked") == "1",
	}
	state = state.WithFilter("status", f.Status).WithFilter("pipeline", f.Pipeline).WithFilter("q", f.Search)
	if f.Linked {
		state = state.WithFilter("linked", "1")
	} else {
		state = state.WithFilter("linked", "")
	}
	if f.Status == "all" {
		f.Status = ""
	}
	if f.Pipeline == "all" {
		f.Pipeline = ""
	}
	return f, state
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	f, state := h.clientFilter(r)
	h.saveState(r, clientsView, state)
	page := shared.PageFromQuery(r.URL.Query().Get("page"))
	f.Limit = clientsPerPage
	f.Offset = shared.NewPagination(page, clientsPerPage, 0).Offset()

	data := map[string]any{
		"Filter":    f,
		"Statuses":  clients.TriageStatuses,
		"Pipelines": append(append([]string{}, pipeline.Stages...), pipeline.Rejected),
	}
	items, total, err := h.svc.Clients.List(r.Context(), f)
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Clients"] = items
	data["Pagination"] = shared.NewPagination(page, clientsPerPage, total)
	h.render(w, r, "pages/admin_clients.html", "상담 관리", data, http.StatusOK)
}

func (h *Handler) exportClients(w http.ResponseWriter, r *http.Request) {
	f, _ := h.clientFilter(r)
	items, _, err := h.svc.Clients.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "/admin/clients", "export clients", err)
		return
	}
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		partner := ""
		if c.PartnerID != nil {
			partner = strconv.FormatInt(*c.PartnerID, 10)
		}
		amount := ""
		if c.TransactionAmount != nil {
			amount = strconv.FormatInt(*c.TransactionAmount, 10)
		}
		rows = append(rows, []string{
			labels.DateTime(c.CreatedAt),
			c.Name,
			c.Phone,
			labels.BusinessType(c.Business()),
			labels.Revenue(c.RevenueCode()),
			labels.Region(c.RegionCode()),
			labels.Product(c.ProductCode()),
			labels.TriageStatus(c.Triage()),
			labels.PipelineStatus(c.Pipeline()),
			amount,
			partner,
			c.Memo(),
		})
	}
	if err := export.Serve(w, "clients", h.now(), clientHeader, rows); err != nil {
		h.logger.Error("write clients csv", slog.Any("error", err))
	}
}

func (h *Handler) showClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, err := h.svc.Clients.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "/admin/clients", "client detail", err)
		return
	}
	h.saveState(r, clientsView, h.state(r, clientsView).WithTab(clientsView).WithDetail(id))
	h.render(w, r, "pages/admin_client_detail.html", "상담 상세", map[string]any{
		"Client":    c,
		"Steps":     pipeline.Render(c.Pipeline()),
		"Statuses":  clients.TriageStatuses,
		"Pipelines": append(append([]string{}, pipeline.Stages...), pipeline.Rejected),
	}, http.StatusOK)
}

func (h *Handler) clientMutation(w http.ResponseWriter, r *http.Request, action string, apply func(id int64) (string, error)) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/admin/clients/%d", id)
	message, err := apply(id)
	if err != nil {
		h.fail(w, r, back, action, err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", message)
}

func (h *Handler) updateClientStatus(w http.ResponseWriter, r *http.Request) {
	h.clientMutation(w, r, "update client status", func(id int64) (string, error) {
		status := r.PostFormValue("status")
		return "상태가 " + labels.TriageStatus(status) + "(으)로 변경되었습니다.", h.svc.Clients.UpdateTriage(r.Context(), id, status)
	})
}

func (h *Handler) updateClientPipeline(w http.ResponseWriter, r *http.Request) {
	h.clientMutation(w, r, "update client pipeline", func(id int64) (string, error) {
		stage := r.PostFormValue("pipeline_status")
		err := h.svc.Clients.UpdatePipeline(r.Context(), id, stage, r.PostFormValue("transaction_amount"))
		return "진행 단계가 " + labels.PipelineStatus(stage) + "(으)로 변경되었습니다.", err
	})
}

func (h *Handler) updateClientMemo(w http.ResponseWriter, r *http.Request) {
	h.clientMutation(w, r, "update client memo", func(id int64) (string, error) {
		return "메모가 저장되었습니다.", h.svc.Clients.UpdateMemo(r.Context(), id, r.PostFormValue("admin_memo"))
	})
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.Clients.Delete(r.Context(), id); err != nil {
		h.fail(w, r, fmt.Sprintf("/admin/clients/%d", id), "delete client", err)
		return
	}
	h.saveState(r, clientsView, h.state(r, clientsView).WithDetail(0))
	h.redirectWithFlash(w, r, "/admin/clients", "success", "상담 기록이 삭제되었습니다.")
}
