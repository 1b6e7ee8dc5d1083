package pubsub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type SubscriptionID int64

// Pubsub fans each published message out to every subscriber. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the message.
type Pubsub[T any] struct {
	nextID      SubscriptionID
	buffer      int
	subscribers map[SubscriptionID]chan T
	dropped     map[SubscriptionID]int64
	mu          sync.RWMutex
	plog        zerolog.Logger
}

// New creates a pubsub whose subscriber channels hold up to buffer messages.
func New[T any](buffer int) *Pubsub[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &Pubsub[T]{
		buffer:      buffer,
		subscribers: make(map[SubscriptionID]chan T),
		dropped:     make(map[SubscriptionID]int64),
		plog:        log.With().Str("component", "pubsub").Logger(),
	}
}

func (ps *Pubsub[T]) Subscribe() (SubscriptionID, <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan T, ps.buffer)
	id := ps.nextID
	ps.subscribers[id] = ch
	ps.nextID++

	ps.plog.Debug().Int64("subscription_id", int64(id)).Msg("Subscribed")
	return id, ch
}

// Unsubscribe closes the subscriber's channel. Unknown ids are ignored.
func (ps *Pubsub[T]) Unsubscribe(id SubscriptionID) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch, ok := ps.subscribers[id]
	if !ok {
		return
	}

	delete(ps.subscribers, id)
	delete(ps.dropped, id)
	close(ch)

	ps.plog.Debug().Int64("subscription_id", int64(id)).Msg("Unsubscribed")
}

func (ps *Pubsub[T]) Publish(msg T) {
	// Write lock: the drop counters are updated below.
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for id, ch := range ps.subscribers {
		select {
		case ch <- msg:
		default:
			ps.dropped[id]++
			ps.plog.Warn().
				Int64("subscription_id", int64(id)).
				Int64("dropped", ps.dropped[id]).
				Msg("Message dropped, channel full")
		}
	}
}

func (ps *Pubsub[T]) Subscribers() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.subscribers)
}

// Dropped reports how many messages a subscriber has missed.
func (ps *Pubsub[T]) Dropped(id SubscriptionID) int64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return ps.dropped[id]
}
