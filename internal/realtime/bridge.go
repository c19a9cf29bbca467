package realtime

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/referral-desk/referral-desk/internal/backend"
	"github.com/referral-desk/referral-desk/internal/labels"
)

// Kinds of bridge events.
const (
	KindClientUpdated = "client_updated"
	KindNotification  = "notification"
)

// Event is what a partner session receives.
type Event struct {
	Kind  string         `json:"kind"`
	Toast string         `json:"toast"`
	Data  map[string]any `json:"-"`
}

type session struct {
	subs   []*Subscription
	events chan Event
}

// Bridge keeps the two change subscriptions of every signed-in partner
// session: updates to the partner's clients and new notifications for the
// partner's user.
type Bridge struct {
	hub      *Hub
	mu       sync.Mutex
	sessions map[string]*session
	buffer   int
}

// NewBridge constructs a bridge over hub. Sessions ended on any instance
// are closed here too.
func NewBridge(hub *Hub) *Bridge {
	b := &Bridge{hub: hub, sessions: make(map[string]*session), buffer: 16}
	hub.OnSessionEnded(b.Close)
	return b
}

// Open subscribes the session. Opening an already open session replaces its
// subscriptions.
func (b *Bridge) Open(sessionID string, partnerID int64, userID string) error {
	b.Close(sessionID)

	s := &session{events: make(chan Event, b.buffer)}
	deliver := func(ev Event) {
		select {
		case s.events <- ev:
		default:
		}
	}

	channel := "partner-" + sessionID
	clientSub, err := b.hub.Subscribe(channel, Binding{
		Event:  "UPDATE",
		Table:  backend.TableConsultations,
		Filter: "partner_id=eq." + strconv.FormatInt(partnerID, 10),
	}, func(c backend.Change) {
		deliver(Event{Kind: KindClientUpdated, Toast: clientToast(c.Record), Data: c.Record})
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, clientSub)

	if userID != "" {
		noteSub, err := b.hub.Subscribe(channel, Binding{
			Event:  "INSERT",
			Table:  backend.TableNotifications,
			Filter: "user_id=eq." + userID,
		}, func(c backend.Change) {
			deliver(Event{Kind: KindNotification, Toast: stringify(c.Record["title"]), Data: c.Record})
		})
		if err != nil {
			b.hub.Unsubscribe(clientSub)
			return err
		}
		s.subs = append(s.subs, noteSub)
	}

	b.mu.Lock()
	b.sessions[sessionID] = s
	b.mu.Unlock()
	return nil
}

// Close tears the session's subscriptions down and ends its event stream.
func (b *Bridge) Close(sessionID string) {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	b.mu.Unlock()
	if !ok {
		return
	}
	for _, sub := range s.subs {
		b.hub.Unsubscribe(sub)
	}
	close(s.events)
}

// End closes the session here at once and tells the other instances to do
// the same. Call it on logout and when the backend session has expired.
func (b *Bridge) End(ctx context.Context, sessionID string) error {
	b.Close(sessionID)
	return b.hub.EndSession(ctx, sessionID)
}

// Events returns the session's event stream.
func (b *Bridge) Events(sessionID string) (<-chan Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.events, true
}

// Active reports whether sessionID has open subscriptions.
func (b *Bridge) Active(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sessionID]
	return ok
}

func clientToast(record map[string]any) string {
	name := stringify(record["name"])
	stage := stringify(record["pipeline_status"])
	if stage == "" {
		return fmt.Sprintf("%s 고객 정보가 업데이트되었습니다.", name)
	}
	return fmt.Sprintf("%s 고객 상태가 '%s'(으)로 변경되었습니다.", name, labels.PipelineStatus(stage))
}
