package events

import (
	"context"
	"sync"

	"github.com/R3E-Network/presale_layer/internal/app/domain/event"
)

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind loses events rather than blocking the recorder.
const subscriberBuffer = 64

// Bus fans recorded events out to in-process subscribers. It backs the
// websocket stream endpoint.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	campaignID string // empty subscribes to every campaign
	ch         chan event.Event
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a listener for one campaign's events, or for all
// campaigns when campaignID is empty. The returned cancel func removes the
// subscription and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(campaignID string) (<-chan event.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan event.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{campaignID: campaignID, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers evt to matching subscribers without blocking: a full
// channel drops the event for that subscriber only.
func (b *Bus) Publish(_ context.Context, evt event.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	for _, sub := range b.subs {
		if sub.campaignID != "" && sub.campaignID != evt.CampaignID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
	return nil
}

// Close drops all subscribers and closes their channels. Publish after
// Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
