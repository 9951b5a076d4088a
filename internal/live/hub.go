// Package live fans committed game events out to subscribers. Each
// subscriber owns a bounded queue; publishing never blocks the committer. A
// subscriber that cannot keep up is dropped with an explicit gap signal and
// must resynchronize from a full snapshot.
package live

import (
	"sync"

	"go.uber.org/zap"

	"github.com/petrel-labs/liveboard/internal/obslog"
	"github.com/petrel-labs/liveboard/pkg/livedto"
)

// ErrBroadcastGap tells a subscriber that events were missed and the stream
// was cut rather than silently skipping; resync by re-fetching the snapshot.
var ErrBroadcastGap = errf("broadcast gap: resync from snapshot")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

const defaultQueueSize = 16

// Hub routes events per game. Safe for concurrent use.
type Hub struct {
	queueSize int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription is one viewer's ordered event stream for a single game. The
// channel returned by Events is closed on Unsubscribe or on a queue overflow;
// after it closes, Err distinguishes the two.
type Subscription struct {
	gameID string
	ch     chan livedto.Event

	mu     sync.Mutex
	closed bool
	gapped bool
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		queueSize: queueSize,
		subs:      make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a new listener for gameID.
func (h *Hub) Subscribe(gameID string) *Subscription {
	s := &Subscription{gameID: gameID, ch: make(chan livedto.Event, h.queueSize)}
	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[gameID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Events is the subscriber's receive channel. Events for one game arrive in
// exact commit order until the channel closes.
func (s *Subscription) Events() <-chan livedto.Event { return s.ch }

// Err reports why the event channel closed: ErrBroadcastGap after an
// overflow drop, nil after a plain Unsubscribe.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gapped {
		return ErrBroadcastGap
	}
	return nil
}

// offer enqueues without blocking. A full queue marks the subscription
// gapped and closes it.
func (s *Subscription) offer(ev livedto.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.gapped = true
		s.closed = true
		close(s.ch)
		return false
	}
}

func (s *Subscription) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Publish delivers ev to every live subscriber of the game. Slow subscribers
// are dropped under the bounded-queue policy; the committer is never blocked
// beyond the enqueue itself.
func (h *Hub) Publish(gameID string, ev livedto.Event) {
	h.mu.RLock()
	set := h.subs[gameID]
	var dropped []*Subscription
	for s := range set {
		if !s.offer(ev) {
			dropped = append(dropped, s)
		}
	}
	h.mu.RUnlock()

	if len(dropped) == 0 {
		return
	}
	h.mu.Lock()
	for _, s := range dropped {
		delete(h.subs[gameID], s)
	}
	h.mu.Unlock()
	obslog.L().Warn("hub_subscriber_dropped",
		zap.String("game_id", gameID),
		zap.Int("count", len(dropped)),
		zap.Uint64("version", ev.Version),
	)
}

// Unsubscribe removes the subscription and closes its channel without a gap.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subs[s.gameID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.gameID)
		}
	}
	h.mu.Unlock()
	s.stop()
}

// SubscriberCount reports the live subscriber count for a game.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}
