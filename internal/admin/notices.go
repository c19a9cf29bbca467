package admin

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/referral-desk/referral-desk/internal/notices"
	"github.com/referral-desk/referral-desk/internal/shared"
)

func noticeInput(r *http.Request) notices.Input {
	return notices.Input{
		Title:    r.PostFormValue("title"),
		Body:     r.PostFormValue("body"),
		IsActive: r.PostFormValue("is_active") != "",
	}
}

func (h *Handler) listNotices(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{}
	items, err := h.svc.Notices.List(r.Context())
	if err != nil {
		h.logger.Error("list notices", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	data["Notices"] = items
	h.render(w, r, "pages/admin_notices.html", "공지사항", data, http.StatusOK)
}

func (h *Handler) showNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	n, err := h.svc.Notices.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "/admin/notices", "notice detail", err)
		return
	}
	h.render(w, r, "pages/admin_notice_edit.html", "공지 수정", map[string]any{"Notice": n}, http.StatusOK)
}

func (h *Handler) createNotice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if _, err := h.svc.Notices.Create(r.Context(), noticeInput(r)); err != nil {
		h.fail(w, r, "/admin/notices", "create notice", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/notices", "success", "공지사항이 등록되었습니다.")
}

func (h *Handler) updateNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.svc.Notices.Update(r.Context(), id, noticeInput(r)); err != nil {
		h.fail(w, r, fmt.Sprintf("/admin/notices/%d", id), "update notice", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/notices", "success", "공지사항이 수정되었습니다.")
}

func (h *Handler) toggleNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	active, err := h.svc.Notices.ToggleActive(r.Context(), id)
	if err != nil {
		h.fail(w, r, "/admin/notices", "toggle notice", err)
		return
	}
	msg := "공지사항이 비공개로 전환되었습니다."
	if active {
		msg = "공지사항이 게시되었습니다."
	}
	h.redirectWithFlash(w, r, "/admin/notices", "success", msg)
}

func (h *Handler) deleteNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.Notices.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "/admin/notices", "delete notice", err)
		return
	}
	h.redirectWithFlash(w, r, "/admin/notices", "success", "공지사항이 삭제되었습니다.")
}
