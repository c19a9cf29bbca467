package partnerdash

import (
	"errors"
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

const clientsView = "partner_clients"

var partnerClientHeader = []string{"등록일", "이름", "연락처", "업종", "지역", "관심상품", "진행단계", "거래금액"}

func (h *Handler) clientFilter(r *http.Request) clients.ListFilter {
	sess := shared.SessionFromContext(r.Context())
	state := shared.LoadState(sess, clientsView).WithTab(clientsView)
	read := func(key string) string {
		if v, ok := r.URL.Query()[key]; ok {
			return v[0]
		}
		return state.Filter(key, "")
	}
	f := clients.ListFilter{Pipeline: read("pipeline"), Search: strings.TrimSpace(read("q"))}
	shared.SaveState(sess, clientsView, state.WithFilter("pipeline", f.Pipeline).WithFilter("q", f.Search))
	return f
}

func pipelineOptions() []string {
	return append(append([]string{}, pipeline.Stages...), pipeline.Rejected)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	partner := currentPartner(r)
	f := h.clientFilter(r)
	data := map[string]any{"Filter": f, "Pipelines": pipelineOptions()}
	items, err := h.svc.Clients.ListForPartner(r.Context(), partner.ID, f)
	if err != nil {
		h.logger.Error("partner clients", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Clients"] = items
	h.render(w, r, "pages/partner_clients.html", "내 고객", data, http.StatusOK)
}

func (h *Handler) newClient(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/partner_client_new.html", "고객 등록", map[string]any{
		"Form":   clients.RegisterRequest{},
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) registerClient(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	partner := currentPartner(r)
	req := clients.RegisterRequest{
		Name:         r.PostFormValue("name"),
		Phone:        r.PostFormValue("phone"),
		BusinessType: r.PostFormValue("business_type"),
		Revenue:      r.PostFormValue("revenue"),
		Region:       r.PostFormValue("region"),
		Product:      r.PostFormValue("product"),
		Message:      r.PostFormValue("message"),
	}
	if _, err := h.svc.Clients.Register(r.Context(), partner.ID, req); err != nil {
		status := http.StatusBadRequest
		var vErr *shared.ValidationError
		fieldErrors := map[string]string{}
		if errors.As(err, &vErr) {
			fieldErrors[strings.ToLower(vErr.Field)] = vErr.Message
		} else {
			h.logger.Error("register client", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
			status = http.StatusUnprocessableEntity
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			sess.AddFlash(shared.FlashMessage{Kind: "error", Message: shared.UserSafeMessage(err)})
		}
		h.render(w, r, "pages/partner_client_new.html", "고객 등록", map[string]any{
			"Form":   req,
			"Errors": fieldErrors,
		}, status)
		return
	}
	h.redirectWithFlash(w, r, "/partner/clients", "success", req.Name+" 고객이 등록되었습니다.")
}

func (h *Handler) exportClients(w http.ResponseWriter, r *http.Request) {
	partner := currentPartner(r)
	items, err := h.svc.Clients.ListForPartner(r.Context(), partner.ID, h.clientFilter(r))
	if err != nil {
		h.logger.Error("export partner clients", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/partner/clients", "error", shared.UserSafeMessage(err))
		return
	}
	rows := make([][]string, 0, len(items))
	for _, c := range items {
		amount := ""
		if c.TransactionAmount != nil {
			amount = strconv.FormatInt(*c.TransactionAmount, 10)
		}
		rows = append(rows, []string{
			labels.Date(c.CreatedAt),
			c.Name,
			c.Phone,
			labels.BusinessType(c.Business()),
			labels.Region(c.RegionCode()),
			labels.Product(c.ProductCode()),
			labels.PipelineStatus(c.Pipeline()),
			amount,
		})
	}
	if err := export.Serve(w, "my_clients", h.now(), partnerClientHeader, rows); err != nil {
		h.logger.Error("write partner clients csv", slog.Any("error", err))
	}
}

func (h *Handler) showClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	c, err := h.svc.Clients.GetForPartner(r.Context(), currentPartner(r).ID, id)
	if err != nil {
		h.logger.Warn("partner client detail", slog.Int64("client_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/partner/clients", "error", shared.UserSafeMessage(err))
		return
	}
	sess := shared.SessionFromContext(r.Context())
	shared.SaveState(sess, clientsView, shared.LoadState(sess, clientsView).WithDetail(id))
	h.render(w, r, "pages/partner_client_detail.html", "고객 상세", map[string]any{
		"Client": c,
		"Steps":  pipeline.Render(c.Pipeline()),
	}, http.StatusOK)
}
