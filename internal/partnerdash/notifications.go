package partnerdash

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/referral-desk/referral-desk/internal/shared"
)

const notificationPage = 50

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID := h.principal(r).UserID
	data := map[string]any{}
	items, err := h.svc.Notifications.ListForUser(r.Context(), userID, notificationPage)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		data["Error"] = shared.UserSafeMessage(err)
	}
	unread := 0
	for _, n := range items {
		if !n.IsRead {
			unread++
		}
	}
	data["Notifications"] = items
	data["Unread"] = unread
	h.render(w, r, "pages/partner_notifications.html", "알림", data, http.StatusOK)
}

func (h *Handler) readNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.Notifications.MarkRead(r.Context(), h.principal(r).UserID, id); err != nil {
		h.logger.Warn("mark notification read", slog.Int64("notification_id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/partner/notifications", "error", shared.UserSafeMessage(err))
		return
	}
	http.Redirect(w, r, "/partner/notifications", http.StatusSeeOther)
}

func (h *Handler) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), h.principal(r).UserID)
	if err != nil {
		h.logger.Error("mark all notifications read", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/partner/notifications", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/partner/notifications", "success", strconv.FormatInt(n, 10)+"건의 알림을 읽음 처리했습니다.")
}
