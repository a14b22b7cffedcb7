package queue

type keyedItem[K comparable, V any] struct {
	key  K
	item V
}

// sliceQueue implements the Keyed interface using a slice.
//
// Lookups by key are linear scans, which is cheaper than maintaining a side index for the
// small, bounded queues it is used for.
type sliceQueue[K comparable, V any] struct {
	items []keyedItem[K, V]
}

var _ Keyed[int, int] = (*sliceQueue[int, int])(nil)

// NewSliceQueue creates a new slice backed Keyed queue with room for prealloc items.
func NewSliceQueue[K comparable, V any](prealloc int) Keyed[K, V] {
	if prealloc < 0 {
		prealloc = 0
	}

	return &sliceQueue[K, V]{items: make([]keyedItem[K, V], 0, prealloc)}
}

func (q *sliceQueue[K, V]) Enqueue(key K, item V) bool {
	if q.indexOf(key) >= 0 {
		return false
	}
	q.items = append(q.items, keyedItem[K, V]{key: key, item: item})

	return true
}

func (q *sliceQueue[K, V]) Dequeue() (K, V, bool) {
	if len(q.items) == 0 {
		var k K
		var v V
		return k, v, false
	}

	return q.removeAt(0)
}

func (q *sliceQueue[K, V]) Peek() (K, V, bool) {
	if len(q.items) == 0 {
		var k K
		var v V
		return k, v, false
	}

	return q.items[0].key, q.items[0].item, true
}

func (q *sliceQueue[K, V]) Get(key K) (V, bool) {
	idx := q.indexOf(key)
	if idx < 0 {
		var v V
		return v, false
	}

	return q.items[idx].item, true
}

func (q *sliceQueue[K, V]) Remove(key K) (V, bool) {
	idx := q.indexOf(key)
	if idx < 0 {
		var v V
		return v, false
	}
	_, v, _ := q.removeAt(idx)

	return v, true
}

func (q *sliceQueue[K, V]) RemoveFirst(match func(K, V) bool) (K, V, bool) {
	for i := range q.items {
		if match(q.items[i].key, q.items[i].item) {
			return q.removeAt(i)
		}
	}

	var k K
	var v V
	return k, v, false
}

func (q *sliceQueue[K, V]) Range(fn func(K, V) bool) {
	for i := range q.items {
		if !fn(q.items[i].key, q.items[i].item) {
			return
		}
	}
}

// Reset resets the queue to an empty state, keeping the underlying array.
func (q *sliceQueue[K, V]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
}

func (q *sliceQueue[K, V]) IsEmpty() bool {
	return len(q.items) == 0
}

func (q *sliceQueue[K, V]) Length() int {
	return len(q.items)
}

func (q *sliceQueue[K, V]) indexOf(key K) int {
	for i := range q.items {
		if q.items[i].key == key {
			return i
		}
	}

	return -1
}

// removeAt shifts the tail left in place so the backing array is reused.
func (q *sliceQueue[K, V]) removeAt(idx int) (K, V, bool) {
	it := q.items[idx]
	copy(q.items[idx:], q.items[idx+1:])
	last := len(q.items) - 1
	q.items[last] = keyedItem[K, V]{}
	q.items = q.items[:last]

	return it.key, it.item, true
}
