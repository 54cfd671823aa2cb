// Package bus is the shared hand-off point between the feature extractor and
// every visual consumer: it holds the latest snapshot, a bounded queue of
// recent beats and the list of beat subscribers.
package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reactive/features"
)

// DefaultCapacity is the number of beats retained before the oldest is evicted.
const DefaultCapacity = 256

// BeatHandler is called synchronously for every pushed beat. A returned error
// is logged and does not stop delivery to the remaining subscribers.
type BeatHandler func(ev features.BeatEvent) error

// Option configures a Bus.
type Option func(*Bus)

// WithCapacity sets the beat queue capacity (values < 1 fall back to 1).
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n < 1 {
			n = 1
		}
		b.capacity = n
	}
}

// WithLogger sets the logger used for subscriber failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

type subscriber struct {
	id     uint64
	fn     BeatHandler
	active atomic.Bool
}

// Bus is single-writer: Publish and PushBeat are expected from the frame loop
// only. Readers on other goroutines use SnapshotInto and PeekBeats.
type Bus struct {
	mu       sync.RWMutex
	latest   features.Snapshot
	beats    []features.BeatEvent
	head     int
	count    int
	capacity int

	subMu  sync.Mutex
	subs   []*subscriber
	nextID uint64

	log logrus.FieldLogger
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		capacity: DefaultCapacity,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.beats = make([]features.BeatEvent, b.capacity)
	return b
}

// Publish overwrites the latest snapshot in place.
func (b *Bus) Publish(s *features.Snapshot) {
	if s == nil {
		return
	}
	b.mu.Lock()
	s.CopyTo(&b.latest)
	b.mu.Unlock()
}

// Latest returns the bus-owned snapshot. The pointer stays valid but its
// contents change on the next Publish, so it must only be read from the
// goroutine that publishes.
func (b *Bus) Latest() *features.Snapshot {
	return &b.latest
}

// SnapshotInto copies the latest snapshot into dst under the read lock.
func (b *Bus) SnapshotInto(dst *features.Snapshot) {
	b.mu.RLock()
	b.latest.CopyTo(dst)
	b.mu.RUnlock()
}

// PushBeat queues ev and dispatches it to every subscriber in subscription
// order.
func (b *Bus) PushBeat(ev features.BeatEvent) {
	b.mu.Lock()
	tail := (b.head + b.count) % b.capacity
	b.beats[tail] = ev
	if b.count == b.capacity {
		b.head = (b.head + 1) % b.capacity
	} else {
		b.count++
	}
	b.mu.Unlock()

	b.subMu.Lock()
	subs := make([]*subscriber, len(b.subs))
	copy(subs, b.subs)
	b.subMu.Unlock()

	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		b.dispatch(s, ev)
	}
}

func (b *Bus) dispatch(s *subscriber, ev features.BeatEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"subscriber": s.id,
				"beat_time":  ev.Time,
				"error":      fmt.Sprint(r),
			}).Error("beat subscriber panicked")
		}
	}()
	if err := s.fn(ev); err != nil {
		b.log.WithFields(logrus.Fields{
			"subscriber": s.id,
			"beat_time":  ev.Time,
			"error":      err,
		}).Warn("beat subscriber failed")
	}
}

// Subscribe registers fn for beat delivery. The returned function removes the
// subscription; calling it more than once, or from inside a handler, is safe.
func (b *Bus) Subscribe(fn BeatHandler) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.subMu.Lock()
	b.nextID++
	s := &subscriber{id: b.nextID, fn: fn}
	s.active.Store(true)
	b.subs = append(b.subs, s)
	b.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			b.subMu.Lock()
			defer b.subMu.Unlock()
			for i, cur := range b.subs {
				if cur == s {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

// PopBeat removes and returns the oldest queued beat.
func (b *Bus) PopBeat() (features.BeatEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return features.BeatEvent{}, false
	}
	ev := b.beats[b.head]
	b.beats[b.head] = features.BeatEvent{}
	b.head = (b.head + 1) % b.capacity
	b.count--
	return ev, true
}

// PeekBeats returns a copy of the queued beats, oldest first.
func (b *Bus) PeekBeats() []features.BeatEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]features.BeatEvent, b.count)
	for i := range out {
		out[i] = b.beats[(b.head+i)%b.capacity]
	}
	return out
}

// ClearBeats drops every queued beat.
func (b *Bus) ClearBeats() {
	b.mu.Lock()
	b.head = 0
	b.count = 0
	b.mu.Unlock()
}

// Len returns the number of queued beats.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the beat queue capacity.
func (b *Bus) Capacity() int {
	return b.capacity
}
