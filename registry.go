package main

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/ringseq/circularbuffer"
	"gregoryjjb/ringseq/pubsub"
	"gregoryjjb/ringseq/ring"
)

var rlog zerolog.Logger

func init() {
	rlog = log.With().Str("component", "registry").Logger()
}

var (
	ErrRingNotFound = errors.New("ring not found")
	ErrRingExists   = errors.New("ring already exists")
)

// Event records one change to a hosted ring.
type Event struct {
	Ring string    `json:"ring"`
	Op   string    `json:"op"`
	Pos  *int      `json:"pos,omitempty"`
	Size int       `json:"size"`
	Time time.Time `json:"time"`
}

type hosted struct {
	mu      sync.Mutex
	ring    *ring.Ring[any]
	deleted bool
}

// Registry hosts named rings. Rings are not safe for concurrent use, so each
// one is only ever touched while holding its own lock.
type Registry struct {
	mu      sync.RWMutex
	rings   map[string]*hosted
	events  *pubsub.Pubsub[Event]
	history *circularbuffer.CircularBuffer[Event]
	now     func() time.Time
}

func NewRegistry(historySize, subscriberBuffer int) (*Registry, error) {
	history, err := circularbuffer.New[Event](historySize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		rings:   make(map[string]*hosted),
		events:  pubsub.New[Event](subscriberBuffer),
		history: history,
		now:     time.Now,
	}, nil
}

func (reg *Registry) Create(name string, values []any, joint bool) error {
	if name == "" {
		return fmt.Errorf("ring name must not be empty")
	}

	reg.mu.Lock()
	if _, ok := reg.rings[name]; ok {
		reg.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrRingExists)
	}
	h := &hosted{ring: ring.New(values, joint)}
	// Held until the create event is out, so no update can be recorded first.
	h.mu.Lock()
	defer h.mu.Unlock()
	reg.rings[name] = h
	reg.mu.Unlock()

	size := h.ring.Len()
	rlog.Info().Str("ring", name).Int("size", size).Bool("joint", joint).Msg("Ring created")
	reg.emit(name, "create", nil, size)
	return nil
}

func (reg *Registry) Delete(name string) error {
	reg.mu.Lock()
	h, ok := reg.rings[name]
	delete(reg.rings, name)
	reg.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", name, ErrRingNotFound)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = true

	rlog.Info().Str("ring", name).Msg("Ring deleted")
	reg.emit(name, "delete", nil, 0)
	return nil
}

func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	names := make([]string, 0, len(reg.rings))
	for name := range reg.rings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (reg *Registry) lookup(name string) (*hosted, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	h, ok := reg.rings[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrRingNotFound)
	}
	return h, nil
}

// View runs fn with exclusive access to the named ring. fn must not
// change the ring.
func (reg *Registry) View(name string, fn func(r *ring.Ring[any]) error) error {
	h, err := reg.lookup(name)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleted {
		return fmt.Errorf("%s: %w", name, ErrRingNotFound)
	}
	return fn(h.ring)
}

// Update runs fn with exclusive access to the named ring and records an
// event if it succeeds. Events of one ring are recorded in mutation order.
func (reg *Registry) Update(name, op string, pos *int, fn func(r *ring.Ring[any]) error) error {
	h, err := reg.lookup(name)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deleted {
		return fmt.Errorf("%s: %w", name, ErrRingNotFound)
	}

	if err := fn(h.ring); err != nil {
		rlog.Debug().Err(err).Str("ring", name).Str("op", op).Msg("Ring operation failed")
		return err
	}
	reg.emit(name, op, pos, h.ring.Len())
	return nil
}

func (reg *Registry) emit(name, op string, pos *int, size int) {
	e := Event{
		Ring: name,
		Op:   op,
		Pos:  pos,
		Size: size,
		Time: reg.now(),
	}
	reg.history.Push(e)
	reg.events.Publish(e)
}

func (reg *Registry) History() []Event {
	return reg.history.Snapshot()
}

// Subscribe streams future events until the returned func is called.
func (reg *Registry) Subscribe() (func(), <-chan Event) {
	id, ch := reg.events.Subscribe()
	return func() { reg.events.Unsubscribe(id) }, ch
}

func (reg *Registry) Subscribers() int {
	return reg.events.Subscribers()
}
