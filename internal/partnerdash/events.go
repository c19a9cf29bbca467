package partnerdash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/realtime"
)

// eventPayload is the data line of one server-sent event. Stats and Unread
// are refreshed after every change so the page can update its counters
// without a reload. Refresh names the list the change made stale; a page
// showing that list re-fetches it.
type eventPayload struct {
	Toast   string         `json:"toast"`
	Refresh string         `json:"refresh,omitempty"`
	Stats   map[string]int `json:"stats,omitempty"`
	Total   int            `json:"total"`
	Unread  int            `json:"unread"`
}

// Lists a realtime event can make stale, as named by data-list in the
// partner pages.
const (
	listClients       = "clients"
	listNotifications = "notifications"
)

func staleList(kind string) string {
	switch kind {
	case realtime.KindClientUpdated:
		return listClients
	case realtime.KindNotification:
		return listNotifications
	}
	return ""
}

// events streams realtime changes for the signed-in partner as
// text/event-stream. The stream ends when the client disconnects, when the
// session's subscriptions are closed, or when a heartbeat finds the backend
// session gone.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	partner := currentPartner(r)
	principal := h.principal(r)

	stream, ok := h.svc.Bridge.Events(principal.SessionID)
	if !ok {
		// The process restarted since login; resubscribe.
		if err := h.svc.Bridge.Open(principal.SessionID, partner.ID, principal.UserID); err != nil {
			h.logger.Error("open realtime bridge", slog.Int64("partner_id", partner.ID), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		stream, _ = h.svc.Bridge.Events(principal.SessionID)
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 5000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.rbac.StillSignedIn(ctx, principal) {
				return
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-stream:
			if !open {
				return
			}
			body, err := encodeEvent(h.eventPayload(r, partner.ID, principal.UserID, ev))
			if err != nil {
				h.logger.Error("encode realtime event", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) eventPayload(r *http.Request, partnerID int64, userID string, ev realtime.Event) eventPayload {
	out := eventPayload{Toast: labels.Escape(ev.Toast), Refresh: staleList(ev.Kind)}
	ctx := r.Context()
	if stats, err := h.svc.Clients.StatsForPartner(ctx, partnerID); err != nil {
		h.logger.Warn("refresh stats for event", slog.Any("error", err))
	} else {
		out.Stats = stats.ByPipeline
		out.Total = stats.Total
	}
	if userID != "" {
		if n, err := h.svc.Notifications.UnreadCount(ctx, userID); err != nil {
			h.logger.Warn("refresh unread count for event", slog.Any("error", err))
		} else {
			out.Unread = n
		}
	}
	return out
}

// encodeEvent marshals p on one line. The toast is escaped already, so the
// encoder must not escape it a second time.
func encodeEvent(p eventPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
