package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type msgItem struct {
	Data string
}

func keysOf(q Keyed[int, *msgItem]) []int {
	keys := []int{}
	q.Range(func(k int, _ *msgItem) bool {
		keys = append(keys, k)
		return true
	})

	return keys
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		_, item, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(item)

		_, item, ok = q.Peek()
		assert.False(ok)
		assert.Nil(item)
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](1)

		item1 := &msgItem{"data1"}
		assert.True(q.Enqueue(1, item1))
		assert.False(q.IsEmpty())
		assert.Equal(1, q.Length())

		item2 := &msgItem{"data2"}
		assert.True(q.Enqueue(2, item2))
		assert.Equal(2, q.Length())

		key, dequeued, ok := q.Dequeue()
		assert.True(ok)
		assert.Equal(1, key)
		assert.Equal(item1, dequeued)

		key, dequeued, ok = q.Dequeue()
		assert.True(ok)
		assert.Equal(2, key)
		assert.Equal(item2, dequeued)
		assert.True(q.IsEmpty())
	})

	t.Run("Duplicate key", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](4)

		assert.True(q.Enqueue(7, &msgItem{"first"}))
		assert.False(q.Enqueue(7, &msgItem{"second"}))
		assert.Equal(1, q.Length())

		item, ok := q.Get(7)
		assert.True(ok)
		assert.Equal("first", item.Data)
	})

	t.Run("Remove keeps order", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](4)
		for i := 1; i <= 5; i++ {
			q.Enqueue(i, &msgItem{})
		}

		_, ok := q.Remove(3)
		assert.True(ok)
		assert.Equal([]int{1, 2, 4, 5}, keysOf(q))

		_, ok = q.Remove(1)
		assert.True(ok)
		_, ok = q.Remove(5)
		assert.True(ok)
		assert.Equal([]int{2, 4}, keysOf(q))

		_, ok = q.Remove(42)
		assert.False(ok)
		assert.Equal(2, q.Length())
	})

	t.Run("RemoveFirst", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](4)
		q.Enqueue(1, &msgItem{"keep"})
		q.Enqueue(2, &msgItem{"drop"})
		q.Enqueue(3, &msgItem{"drop"})

		key, item, ok := q.RemoveFirst(func(_ int, it *msgItem) bool { return it.Data == "drop" })
		assert.True(ok)
		assert.Equal(2, key)
		assert.Equal("drop", item.Data)
		assert.Equal([]int{1, 3}, keysOf(q))

		_, _, ok = q.RemoveFirst(func(_ int, it *msgItem) bool { return it.Data == "none" })
		assert.False(ok)
	})

	t.Run("Range stops early", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](4)
		for i := 1; i <= 4; i++ {
			q.Enqueue(i, &msgItem{})
		}

		visited := 0
		q.Range(func(k int, _ *msgItem) bool {
			visited++
			return k < 2
		})
		assert.Equal(2, visited)
	})

	t.Run("Peek and Reset", func(t *testing.T) {
		q := NewSliceQueue[int, *msgItem](1)

		item1 := &msgItem{"data1"}
		q.Enqueue(1, item1)
		q.Enqueue(2, &msgItem{"data2"})

		_, peeked, ok := q.Peek()
		assert.True(ok)
		assert.Equal(item1, peeked)
		assert.Equal(2, q.Length()) // Length should not change after peek

		q.Reset()
		assert.True(q.IsEmpty())
		assert.True(q.Enqueue(1, item1))
	})
}
