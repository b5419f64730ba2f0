// Package broadcast fans auction events out to subscribers. Events published
// for one auction reach every subscriber in publish order; a slow subscriber
// loses surplus events rather than blocking the publisher.
package broadcast

import (
	"sync"

	model "live-auction/internal/models"
	"live-auction/utils"
)

// DefaultBufferSize is the per-subscriber channel capacity used when the
// configured size is non-positive.
const DefaultBufferSize = 256

// Subscription is one subscriber's ordered view of an auction's events from
// its join point forward. There is no replay of history; fresh subscribers
// fetch the current snapshot separately.
type Subscription struct {
	ID        string
	AuctionID string
	C         <-chan model.AuctionEvent

	hub  *Hub
	ch   chan model.AuctionEvent
	once sync.Once
}

// Close detaches the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.AuctionID, s.ID)
	})
}

// Hub routes events to per-auction subscriber sets.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[string]chan model.AuctionEvent // auctionID -> subID -> channel
	buffer int
}

// NewHub creates a Hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{
		subs:   make(map[string]map[string]chan model.AuctionEvent),
		buffer: buffer,
	}
}

// Subscribe attaches a new subscriber to an auction's channel.
func (h *Hub) Subscribe(auctionID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.AuctionEvent, h.buffer)
	id := utils.GenerateID()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[string]chan model.AuctionEvent)
	}
	h.subs[auctionID][id] = ch

	return &Subscription{
		ID:        id,
		AuctionID: auctionID,
		C:         ch,
		hub:       h,
		ch:        ch,
	}
}

// Publish delivers an event to every subscriber of the auction. It never
// blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(auctionID string, ev model.AuctionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[auctionID] {
		select {
		case ch <- ev:
		default:
			utils.Warn("dropping event for slow subscriber", map[string]any{
				"auction_id":    auctionID,
				"subscriber_id": id,
				"kind":          string(ev.Kind),
			})
		}
	}
}

// SubscriberCount reports the number of attached subscribers for an auction.
func (h *Hub) SubscriberCount(auctionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[auctionID])
}

func (h *Hub) remove(auctionID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[auctionID][subID]; ok {
		delete(h.subs[auctionID], subID)
		if len(h.subs[auctionID]) == 0 {
			delete(h.subs, auctionID)
		}
		close(ch)
	}
}
