// Package queue provides the ordered containers used by the outbound intent queue.
package queue

// Keyed defines an insertion-ordered queue whose items are also addressable by a unique key.
//
// Implementations are not safe for concurrent use; callers serialize access.
type Keyed[K comparable, V any] interface {
	// Enqueue adds an item to the tail of the queue.
	// It returns false and leaves the queue untouched if the key is already present.
	Enqueue(key K, item V) bool
	// Dequeue removes and returns the item at the head of the queue.
	Dequeue() (K, V, bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (K, V, bool)
	// Get returns the item stored under key.
	Get(key K) (V, bool)
	// Remove deletes the item stored under key, preserving the order of the remaining items.
	Remove(key K) (V, bool)
	// RemoveFirst deletes the first item, in queue order, for which match returns true.
	RemoveFirst(match func(K, V) bool) (K, V, bool)
	// Range calls fn for every item in queue order until fn returns false.
	// fn must not modify the queue.
	Range(fn func(K, V) bool)
	// Reset to an empty queue
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
