package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	model "live-auction/internal/models"
)

func event(kind model.EventKind, auctionID string) model.AuctionEvent {
	return model.AuctionEvent{
		Kind:      kind,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
	}
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	hub := NewHub(16)
	sub := hub.Subscribe("a1")
	defer sub.Close()

	kinds := []model.EventKind{model.EventNewBid, model.EventTimeExtended, model.EventLeaderboard, model.EventAuctionEnded}
	for _, k := range kinds {
		hub.Publish("a1", event(k, "a1"))
	}

	for _, want := range kinds {
		got := <-sub.C
		require.Equal(t, want, got.Kind)
	}
}

func TestHub_AuctionIsolation(t *testing.T) {
	hub := NewHub(16)
	subA := hub.Subscribe("a1")
	subB := hub.Subscribe("a2")
	defer subA.Close()
	defer subB.Close()

	hub.Publish("a1", event(model.EventNewBid, "a1"))

	got := <-subA.C
	require.Equal(t, "a1", got.AuctionID)
	require.Empty(t, subB.C)
}

func TestHub_LateSubscriberGetsNoHistory(t *testing.T) {
	hub := NewHub(16)

	hub.Publish("a1", event(model.EventNewBid, "a1"))

	sub := hub.Subscribe("a1")
	defer sub.Close()
	require.Empty(t, sub.C)

	hub.Publish("a1", event(model.EventLeaderboard, "a1"))
	got := <-sub.C
	require.Equal(t, model.EventLeaderboard, got.Kind)
}

func TestHub_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	hub := NewHub(1)
	slow := hub.Subscribe("a1")
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		// far more events than the subscriber's buffer can hold, never drained
		for i := 0; i < 50; i++ {
			hub.Publish("a1", event(model.EventNewBid, "a1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// surplus was dropped, not buffered without bound
	require.LessOrEqual(t, len(slow.ch), 1)
}

func TestHub_CloseDetachesSubscriber(t *testing.T) {
	hub := NewHub(16)
	sub := hub.Subscribe("a1")
	require.Equal(t, 1, hub.SubscriberCount("a1"))

	sub.Close()
	require.Zero(t, hub.SubscriberCount("a1"))

	_, open := <-sub.C
	require.False(t, open)

	// closing twice is safe
	sub.Close()

	// publish to a drained auction is a no-op
	hub.Publish("a1", event(model.EventNewBid, "a1"))
}
