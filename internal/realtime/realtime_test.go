package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/referral-desk/referral-desk/internal/backend"
)

func clientUpdate(partnerID float64, name, stage string) backend.Change {
	return backend.Change{
		Table:  backend.TableConsultations,
		Event:  "UPDATE",
		Record: map[string]any{"partner_id": partnerID, "name": name, "pipeline_status": stage},
	}
}

func TestSubscribeFiltersByEventTableAndColumn(t *testing.T) {
	hub := NewHub(nil, nil)
	var got []string
	_, err := hub.Subscribe("c", Binding{Event: "UPDATE", Table: backend.TableConsultations, Filter: "partner_id=eq.7"}, func(c backend.Change) {
		got = append(got, c.Record["name"].(string))
	})
	require.NoError(t, err)

	hub.Dispatch(clientUpdate(7, "mine", "approved"))
	hub.Dispatch(clientUpdate(8, "other", "approved"))
	insert := clientUpdate(7, "insert", "received")
	insert.Event = "INSERT"
	hub.Dispatch(insert)
	wrongTable := clientUpdate(7, "wrong", "received")
	wrongTable.Table = backend.TableSettlements
	hub.Dispatch(wrongTable)

	assert.Equal(t, []string{"mine"}, got)
}

func TestSubscribeRejectsBadBindings(t *testing.T) {
	hub := NewHub(nil, nil)
	noop := func(backend.Change) {}
	_, err := hub.Subscribe("c", Binding{Event: "UPDATE", Table: "t", Filter: "partner_id>7"}, noop)
	assert.Error(t, err)
	_, err = hub.Subscribe("c", Binding{Event: "UPDATE", Table: "t", Filter: "partner_id=gt.7"}, noop)
	assert.Error(t, err)
	_, err = hub.Subscribe("c", Binding{Table: "t"}, noop)
	assert.Error(t, err)
	_, err = hub.Subscribe("c", Binding{Event: "*", Table: "t"}, nil)
	assert.Error(t, err)
	assert.Zero(t, hub.Count())
}

func TestBridgeOpenCloseLeavesNoSubscriptions(t *testing.T) {
	hub := NewHub(nil, nil)
	bridge := NewBridge(hub)

	for i := 0; i < 3; i++ {
		require.NoError(t, bridge.Open("sess-1", 7, "u-1"))
		assert.Equal(t, 2, hub.Count())
		bridge.Close("sess-1")
		assert.Zero(t, hub.Count())
		assert.False(t, bridge.Active("sess-1"))
	}
	bridge.Close("never-opened")
}

func TestBridgeReopenReplacesSubscriptions(t *testing.T) {
	hub := NewHub(nil, nil)
	bridge := NewBridge(hub)
	require.NoError(t, bridge.Open("sess-1", 7, "u-1"))
	first, _ := bridge.Events("sess-1")
	require.NoError(t, bridge.Open("sess-1", 7, "u-1"))
	assert.Equal(t, 2, hub.Count())

	_, open := <-first
	assert.False(t, open, "old stream is closed on reopen")
}

func TestBridgeDeliversToasts(t *testing.T) {
	hub := NewHub(nil, nil)
	bridge := NewBridge(hub)
	require.NoError(t, bridge.Open("sess-1", 7, "u-1"))
	events, ok := bridge.Events("sess-1")
	require.True(t, ok)

	hub.Dispatch(clientUpdate(7, "카페 모카", "installed"))
	hub.Dispatch(backend.Change{Table: backend.TableNotifications, Event: "INSERT", Record: map[string]any{"user_id": "u-1", "title": "정산 완료"}})
	hub.Dispatch(backend.Change{Table: backend.TableNotifications, Event: "INSERT", Record: map[string]any{"user_id": "u-2", "title": "남의 알림"}})

	ev := <-events
	assert.Equal(t, KindClientUpdated, ev.Kind)
	assert.Equal(t, "카페 모카 고객 상태가 '설치완료'(으)로 변경되었습니다.", ev.Toast)
	ev = <-events
	assert.Equal(t, KindNotification, ev.Kind)
	assert.Equal(t, "정산 완료", ev.Toast)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBridgeWithoutUserSkipsNotifications(t *testing.T) {
	hub := NewHub(nil, nil)
	bridge := NewBridge(hub)
	require.NoError(t, bridge.Open("sess-1", 7, ""))
	assert.Equal(t, 1, hub.Count())
}

func TestHubRelaysThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(client, nil)
	received := make(chan backend.Change, 1)
	_, err := hub.Subscribe("c", Binding{Event: "*", Table: backend.TableConsultations}, func(c backend.Change) {
		received <- c
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(RedisChannel)[RedisChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(ctx, clientUpdate(7, "relay", "approved")))
	select {
	case c := <-received:
		assert.Equal(t, "relay", c.Record["name"])
		assert.Equal(t, float64(7), c.Record["partner_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("change was not relayed")
	}
}

func TestBridgeEndWithoutRedisClosesLocally(t *testing.T) {
	hub := NewHub(nil, nil)
	bridge := NewBridge(hub)
	require.NoError(t, bridge.Open("sess-1", 7, "u-1"))
	stream, ok := bridge.Events("sess-1")
	require.True(t, ok)

	require.NoError(t, bridge.End(context.Background(), "sess-1"))

	assert.False(t, bridge.Active("sess-1"))
	assert.Zero(t, hub.Count())
	_, open := <-stream
	assert.False(t, open)
}

func TestSessionEndReachesOtherInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	here := NewBridge(NewHub(newClient(), nil))
	thereHub := NewHub(newClient(), nil)
	there := NewBridge(thereHub)
	require.NoError(t, there.Open("sess-1", 7, "u-1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = thereHub.Run(ctx) }()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(SessionChannel)[SessionChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, here.End(ctx, "sess-1"))

	require.Eventually(t, func() bool { return !there.Active("sess-1") }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, thereHub.Count())
}
