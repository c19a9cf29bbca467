package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/referral-desk/referral-desk/internal/export"
	"github.com/referral-desk/referral-desk/internal/inquiries"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/platform/httpx"
	"github.com/referral-desk/referral-desk/internal/shared"
)

const inquiriesView = "inquiries"

// FeedKey names the live inquiry feed's generation counter for a session.
func FeedKey(sessionID string) string {
	return sessionID + ":" + inquiriesView
}

var inquiryHeader = []string{"접수일", "출처", "이름", "연락처", "업종", "상태", "메모"}

func (h *Handler) inquiryFilter(r *http.Request) (inquiries.Filter, shared.DashboardState) {
	state := h.state(r, inquiriesView).WithTab(inquiriesView)
	f := inquiries.Filter{
		Source: queryOrState(r, state, "source"),
		Status: queryOrState(r, state, "status"),
		Search: strings.TrimSpace(queryOrState(r, state, "q")),
	}
	state = state.WithFilter("source", f.Source).WithFilter("status", f.Status).WithFilter("q", f.Search)
	return f, state
}

func (h *Handler) listInquiries(w http.ResponseWriter, r *http.Request) {
	f, state := h.inquiryFilter(r)
	h.saveState(r, inquiriesView, state)

	data := map[string]any{
		"Filter":   f,
		"Sources":  inquiries.Sources,
		"Statuses": inquiries.Statuses,
	}
	rows, err := h.svc.Inquiries.Feed(r.Context(), f)
	if err != nil {
		h.logger.Error("inquiry feed", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Rows"] = rows
	h.render(w, r, "pages/admin_inquiries.html", "문의 관리", data, http.StatusOK)
}

type feedRow struct {
	Origin      inquiries.Origin `json:"origin"`
	ID          int64            `json:"id"`
	Date        string           `json:"date"`
	Source      inquiries.Source `json:"source"`
	SourceLabel string           `json:"source_label"`
	Name        string           `json:"name"`
	Phone       string           `json:"phone"`
	Business    string           `json:"business"`
	Status      string           `json:"status"`
	StatusLabel string           `json:"status_label"`
	Note        string           `json:"note"`
}

type feedResponse struct {
	Generation uint64    `json:"generation"`
	Count      int       `json:"count"`
	Rows       []feedRow `json:"rows"`
}

// inquiryFeed answers the live filter. Each request carries a generation;
// when a newer request from the same session has started by the time this
// one finishes, the stale result is dropped with 204.
func (h *Handler) inquiryFeed(w http.ResponseWriter, r *http.Request) {
	f, state := h.inquiryFilter(r)
	key := FeedKey(h.principal(r).SessionID)
	requested, _ := strconv.ParseUint(r.URL.Query().Get("gen"), 10, 64)
	gen, fresh := h.generations.Observe(key, requested)
	if !fresh {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	rows, err := h.svc.Inquiries.Feed(r.Context(), f)
	if !h.generations.Current(key, gen) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Error("inquiry feed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.saveState(r, inquiriesView, state)

	out := feedResponse{Generation: gen, Count: len(rows), Rows: make([]feedRow, 0, len(rows))}
	for _, row := range rows {
		out.Rows = append(out.Rows, feedRow{
			Origin:      row.Origin,
			ID:          row.ID,
			Date:        labels.DateTime(row.Date),
			Source:      row.Source,
			SourceLabel: labels.Source(string(row.Source)),
			Name:        row.Name,
			Phone:       row.Phone,
			Business:    row.Business,
			Status:      row.Status,
			StatusLabel: labels.InquiryStatus(row.Status),
			Note:        row.Note,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// exportInquiries writes exactly the rows the list shows for the same filter.
func (h *Handler) exportInquiries(w http.ResponseWriter, r *http.Request) {
	f, _ := h.inquiryFilter(r)
	rows, err := h.svc.Inquiries.Feed(r.Context(), f)
	if err != nil {
		h.fail(w, r, "/admin/inquiries", "export inquiries", err)
		return
	}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			labels.DateTime(row.Date),
			labels.Source(string(row.Source)),
			row.Name,
			row.Phone,
			row.Business,
			labels.InquiryStatus(row.Status),
			row.Note,
		})
	}
	if err := export.Serve(w, "inquiries", h.now(), inquiryHeader, records); err != nil {
		h.logger.Error("write inquiries csv", slog.Any("error", err))
	}
}

func inquiryTarget(r *http.Request) (inquiries.Origin, int64, bool) {
	origin, ok := inquiries.ParseOrigin(chi.URLParam(r, "origin"))
	if !ok {
		return "", 0, false
	}
	id, ok := pathID(r)
	return origin, id, ok
}

func (h *Handler) showInquiry(w http.ResponseWriter, r *http.Request) {
	origin, id, ok := inquiryTarget(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	row, err := h.svc.Inquiries.Detail(r.Context(), origin, id)
	if err != nil {
		h.fail(w, r, "/admin/inquiries", "inquiry detail", err)
		return
	}
	h.saveState(r, inquiriesView, h.state(r, inquiriesView).WithTab(inquiriesView).WithDetail(id))
	h.render(w, r, "pages/admin_inquiry_detail.html", "문의 상세", map[string]any{
		"Row":      row,
		"Statuses": inquiries.Statuses,
	}, http.StatusOK)
}

func (h *Handler) updateInquiryStatus(w http.ResponseWriter, r *http.Request) {
	origin, id, ok := inquiryTarget(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	back := fmt.Sprintf("/admin/inquiries/%s/%d", origin, id)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	status := r.PostFormValue("status")
	if err := h.svc.Inquiries.UpdateStatus(r.Context(), origin, id, status); err != nil {
		h.fail(w, r, back, "update inquiry status", err)
		return
	}
	h.redirectWithFlash(w, r, back, "success", "상태가 "+labels.InquiryStatus(status)+"(으)로 변경되었습니다.")
}
