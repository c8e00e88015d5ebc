package dashboard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// MinSubscriberBuffer is the smallest per-subscriber queue; it fits the
// layout and snapshot events.
const MinSubscriberBuffer = 4

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	// Filter is an optional CEL expression over plot, x, values and at_ms.
	Filter string
	// Buffer overrides the document's per-subscriber queue length.
	Buffer int
}

type subscriber struct {
	id        uuid.UUID
	ch        chan Event
	filter    sampleFilter
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// offer queues ev, discarding the oldest queued event when full. Only the
// event loop sends, so the second send cannot lose a race to another sender.
func (s *subscriber) offer(ev Event) (queued, dropped bool) {
	if !s.filter.Match(ev) {
		return false, false
	}
	select {
	case s.ch <- ev:
		s.delivered.Add(1)
		return true, false
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.dropped.Add(1)
	select {
	case s.ch <- ev:
		s.delivered.Add(1)
		return true, true
	default:
	}
	return false, true
}

// Subscription is a live feed of document events.
type Subscription struct {
	ID     uuid.UUID
	Events <-chan Event

	doc  *Document
	sub  *subscriber
	once sync.Once
}

// Dropped returns how many events were discarded because the subscriber
// fell behind.
func (s *Subscription) Dropped() uint64 { return s.sub.dropped.Load() }

// Close unregisters the subscription and closes Events. Safe to call twice
// and after the document has stopped.
func (s *Subscription) Close() {
	s.once.Do(func() {
		_ = s.doc.call(context.Background(), func() { s.doc.removeSubscriber(s.sub.id) })
	})
}
