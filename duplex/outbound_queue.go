package duplex

import (
	"fmt"

	"github.com/arloliu/go-duplex/internal/queue"
)

// OverflowPolicy selects what the OutboundQueue does when a new intent arrives at full capacity.
type OverflowPolicy int

const (
	// RejectNew refuses the new intent with ErrQueueFull.
	RejectNew OverflowPolicy = iota
	// DropOldest evicts the oldest request entry to make room. Subscribe and unsubscribe entries are never
	// evicted.
	DropOldest
)

// String returns string representation of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case RejectNew:
		return "reject-new"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy converts a policy name, as returned by String, to an OverflowPolicy.
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch name {
	case "", "reject-new":
		return RejectNew, nil
	case "drop-oldest":
		return DropOldest, nil
	default:
		return RejectNew, fmt.Errorf("unknown overflow policy: %q", name)
	}
}

// QueueEntry is an outbound intent that has not been acknowledged yet.
type QueueEntry struct {
	ID      ID
	Task    string
	Payload []byte // codec encoded, nil when the intent has no payload
	Handler ResponseHandler

	onEvict func() // called under the session lock when DropOldest evicts the entry
}

// IsSubscribe reports whether the entry is a subscribe intent. Subscribe entries stay queued after
// their acknowledgment so they are replayed on every reconnect.
func (e *QueueEntry) IsSubscribe() bool {
	return e.Task == TaskSubscribe
}

// IsDurable reports whether the entry is exempt from DropOldest eviction. Subscription intents are durable
// because the subscription registry has already been changed when they are queued.
func (e *QueueEntry) IsDurable() bool {
	return e.Task == TaskSubscribe || e.Task == TaskUnsubscribe
}

// OutboundQueue is the ordered, bounded list of outbound intents awaiting acknowledgment.
//
// It is not safe for concurrent use; the Session serializes access.
type OutboundQueue struct {
	entries  queue.Keyed[ID, *QueueEntry]
	capacity int
	policy   OverflowPolicy
}

// NewOutboundQueue creates an OutboundQueue holding at most capacity entries.
func NewOutboundQueue(capacity int, policy OverflowPolicy) *OutboundQueue {
	if capacity < 1 {
		capacity = 1
	}

	return &OutboundQueue{
		entries:  queue.NewSliceQueue[ID, *QueueEntry](min(capacity, 16)),
		capacity: capacity,
		policy:   policy,
	}
}

// Push appends entry to the tail of the queue.
//
// At capacity the overflow policy applies: RejectNew returns ErrQueueFull, DropOldest evicts and returns
// the oldest non-durable entry, or returns ErrQueueFull when only durable entries remain.
func (q *OutboundQueue) Push(entry *QueueEntry) (evicted *QueueEntry, err error) {
	if _, ok := q.entries.Get(entry.ID); ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
	}

	if q.entries.Length() >= q.capacity {
		if q.policy != DropOldest {
			return nil, ErrQueueFull
		}

		_, oldest, ok := q.entries.RemoveFirst(func(_ ID, e *QueueEntry) bool {
			return !e.IsDurable()
		})
		if !ok {
			return nil, ErrQueueFull
		}
		evicted = oldest
	}

	q.entries.Enqueue(entry.ID, entry)

	return evicted, nil
}

// Remove removes the entry with the given id.
func (q *OutboundQueue) Remove(id ID) (*QueueEntry, bool) {
	return q.entries.Remove(id)
}

// Get returns the entry with the given id.
func (q *OutboundQueue) Get(id ID) (*QueueEntry, bool) {
	return q.entries.Get(id)
}

// ForEachInOrder calls fn for every entry in insertion order until fn returns false.
// fn must not modify the queue.
func (q *OutboundQueue) ForEachInOrder(fn func(entry *QueueEntry) bool) {
	q.entries.Range(func(_ ID, e *QueueEntry) bool {
		return fn(e)
	})
}

// Entries returns a snapshot of the entries in insertion order.
func (q *OutboundQueue) Entries() []*QueueEntry {
	out := make([]*QueueEntry, 0, q.entries.Length())
	q.ForEachInOrder(func(e *QueueEntry) bool {
		out = append(out, e)
		return true
	})

	return out
}

// Len returns the number of queued entries.
func (q *OutboundQueue) Len() int {
	return q.entries.Length()
}

// Cap returns the capacity of the queue.
func (q *OutboundQueue) Cap() int {
	return q.capacity
}

// Policy returns the overflow policy of the queue.
func (q *OutboundQueue) Policy() OverflowPolicy {
	return q.policy
}
