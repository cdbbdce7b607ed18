package query

import (
	"log/slog"
	"sort"
	"sync"
)

// Hub fans committed changes out to subscriptions.
//
// Publish must be called with a Source that is not mutated for the duration
// of the call (the engine holds its write lock). Results are computed
// synchronously inside Publish and delivered asynchronously, in order.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe validates spec, queues the initial result computed from src at
// seq, and starts delivery to onUpdate.
func (h *Hub) Subscribe(src Source, seq int64, spec Spec, onUpdate func(ResultSet)) (*Subscription, error) {
	rs, err := Run(src, spec)
	if err != nil {
		return nil, err
	}
	rs.Seq = seq

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, &Error{Table: spec.Table, Message: "hub is closed"}
	}

	h.nextID++
	sub := &Subscription{
		id:       h.nextID,
		spec:     spec,
		hub:      h,
		queue:    newResultQueue(),
		onUpdate: onUpdate,
		done:     make(chan struct{}),
	}
	h.subs[sub.id] = sub
	sub.queue.Enqueue(rs)
	go sub.deliver()
	return sub, nil
}

// Publish re-runs every subscription whose table is in touched.
func (h *Hub) Publish(src Source, seq int64, touched []string) {
	if len(touched) == 0 {
		return
	}
	changed := make(map[string]bool, len(touched))
	for _, name := range touched {
		changed[name] = true
	}

	for _, sub := range h.snapshot() {
		if !changed[sub.spec.Table] {
			continue
		}
		rs, err := Run(src, sub.spec)
		if err != nil {
			// Specs are validated at subscribe time; this is a source failure.
			slog.Error("subscription refresh failed",
				"subscription", sub.id,
				"table", sub.spec.Table,
				"error", err,
			)
			continue
		}
		rs.Seq = seq
		sub.queue.Enqueue(rs)
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	for _, sub := range h.snapshot() {
		sub.Close()
	}
}

// snapshot returns the open subscriptions in creation order.
func (h *Hub) snapshot() []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Subscription is a live query. Results arrive on the callback given to
// Subscribe, one at a time, in commit order.
type Subscription struct {
	id       uint64
	spec     Spec
	hub      *Hub
	queue    *resultQueue
	onUpdate func(ResultSet)

	closeOnce sync.Once
	done      chan struct{}
}

// Spec returns the subscribed query.
func (s *Subscription) Spec() Spec { return s.spec }

// Done is closed once the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops delivery. It is idempotent and safe to call from the
// callback. A callback already running finishes; no new one starts.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s.id)
		s.queue.Close()
		close(s.done)
	})
}

func (s *Subscription) deliver() {
	for {
		rs, ok := s.queue.TryDequeue()
		if !ok {
			select {
			case <-s.done:
				return
			case <-s.queue.Wait():
			}
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.onUpdate(rs)
	}
}

// resultQueue is an unbounded FIFO of results for one subscriber.
//
// The queue uses a channel for signaling so the delivery loop can wait on
// both new results and subscription close.
type resultQueue struct {
	mu      sync.Mutex
	results []ResultSet
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newResultQueue() *resultQueue {
	return &resultQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a result. Returns false once the queue is closed.
func (q *resultQueue) Enqueue(rs ResultSet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.results = append(q.results, rs)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front result without blocking.
func (q *resultQueue) TryDequeue() (ResultSet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.results) == 0 {
		return ResultSet{}, false
	}
	rs := q.results[0]
	// release row references held by the backing array
	q.results[0] = ResultSet{}
	q.results = q.results[1:]
	if len(q.results) == 0 {
		q.results = nil
	}
	return rs, true
}

// Wait signals that results may be available.
func (q *resultQueue) Wait() <-chan struct{} { return q.signal }

// Close drops pending results and rejects new ones.
func (q *resultQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.results = nil
}
