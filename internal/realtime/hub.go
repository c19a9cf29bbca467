// Package realtime fans row change events out to per-session subscribers.
// One process listens on PostgreSQL and republishes every change on Redis so
// that all server instances dispatch it to their own subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/referral-desk/referral-desk/internal/backend"
)

// Redis channels shared by all server instances. RedisChannel carries row
// changes, SessionChannel the ids of sessions that ended anywhere.
const (
	RedisChannel   = "realtime:row_changes"
	SessionChannel = "realtime:session_closed"
)

// Binding selects the changes a subscription receives. Filter has the form
// "column=eq.value" and may be empty.
type Binding struct {
	Event  string
	Table  string
	Filter string
}

// Subscription is a live registration on the hub.
type Subscription struct {
	id      uint64
	channel string
	binding Binding
	column  string
	value   string
	handler func(backend.Change)
}

// Channel returns the name the subscription was opened under.
func (s *Subscription) Channel() string { return s.channel }

func (s *Subscription) matches(c backend.Change) bool {
	if s.binding.Event != "*" && !strings.EqualFold(s.binding.Event, c.Event) {
		return false
	}
	if s.binding.Table != c.Table {
		return false
	}
	if s.column == "" {
		return true
	}
	v, ok := c.Record[s.column]
	return ok && stringify(v) == s.value
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func parseFilter(filter string) (string, string, error) {
	if filter == "" {
		return "", "", nil
	}
	column, rest, ok := strings.Cut(filter, "=")
	if !ok || column == "" {
		return "", "", fmt.Errorf("realtime: malformed filter %q", filter)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return "", "", fmt.Errorf("realtime: unsupported filter operator in %q", filter)
	}
	return column, value, nil
}

// Hub dispatches changes to subscriptions.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	redis  *redis.Client
	logger *slog.Logger

	endMu  sync.RWMutex
	enders []func(sessionID string)
}

// NewHub constructs a hub. Without a Redis client changes are dispatched
// in-process only.
func NewHub(client *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[uint64]*Subscription), redis: client, logger: logger}
}

// Subscribe registers handler for changes matching b.
func (h *Hub) Subscribe(channel string, b Binding, handler func(backend.Change)) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("realtime: handler required")
	}
	if b.Table == "" || b.Event == "" {
		return nil, errors.New("realtime: binding needs event and table")
	}
	column, value, err := parseFilter(b.Filter)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{id: h.nextID, channel: channel, binding: b, column: column, value: value, handler: handler}
	h.subs[sub.id] = sub
	return sub, nil
}

// Unsubscribe removes s. Once it returns the handler is never called again.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s.id)
}

// Count reports the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dispatch delivers c to every matching subscription of this instance.
func (h *Hub) Dispatch(c backend.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.matches(c) {
			sub.handler(c)
		}
	}
}

// OnSessionEnded registers fn to run, on this instance, whenever any
// instance reports a session as ended.
func (h *Hub) OnSessionEnded(fn func(sessionID string)) {
	if fn == nil {
		return
	}
	h.endMu.Lock()
	defer h.endMu.Unlock()
	h.enders = append(h.enders, fn)
}

// EndSession reports sessionID as ended to every instance.
func (h *Hub) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if h.redis == nil {
		h.sessionEnded(sessionID)
		return nil
	}
	return h.redis.Publish(ctx, SessionChannel, sessionID).Err()
}

func (h *Hub) sessionEnded(sessionID string) {
	h.endMu.RLock()
	defer h.endMu.RUnlock()
	for _, fn := range h.enders {
		fn(sessionID)
	}
}

// Publish hands c to every instance through Redis, or dispatches locally
// when no Redis client is configured.
func (h *Hub) Publish(ctx context.Context, c backend.Change) error {
	if h.redis == nil {
		h.Dispatch(c)
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, RedisChannel, payload).Err()
}

// Run consumes both Redis channels until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	if h.redis == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	pubsub := h.redis.Subscribe(ctx, RedisChannel, SessionChannel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Channel == SessionChannel {
				h.sessionEnded(msg.Payload)
				continue
			}
			change, err := backend.DecodeChange(msg.Payload)
			if err != nil {
				h.logger.Warn("skip realtime message", slog.Any("error", err))
				continue
			}
			h.Dispatch(change)
		}
	}
}

// Pump forwards the PostgreSQL change feed onto the hub until ctx ends.
func (h *Hub) Pump(ctx context.Context, pool *pgxpool.Pool) error {
	return backend.Listen(ctx, pool, h.logger, func(c backend.Change) {
		if err := h.Publish(ctx, c); err != nil {
			h.logger.Warn("publish change", slog.String("table", c.Table), slog.Any("error", err))
		}
	})
}
