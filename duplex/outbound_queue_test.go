package duplex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func queueIDs(q *OutboundQueue) []ID {
	ids := make([]ID, 0, q.Len())
	q.ForEachInOrder(func(e *QueueEntry) bool {
		ids = append(ids, e.ID)
		return true
	})

	return ids
}

func TestOutboundQueue_Order(t *testing.T) {
	require := require.New(t)

	q := NewOutboundQueue(8, RejectNew)
	require.Equal(8, q.Cap())
	require.Equal(RejectNew, q.Policy())

	for i := 1; i <= 4; i++ {
		evicted, err := q.Push(&QueueEntry{ID: ID(i), Task: "/device/summary/get"})
		require.NoError(err)
		require.Nil(evicted)
	}

	_, err := q.Push(&QueueEntry{ID: 2, Task: "/device/summary/get"})
	require.ErrorIs(err, ErrDuplicateID)

	require.Equal([]ID{1, 2, 3, 4}, queueIDs(q))

	entry, ok := q.Remove(2)
	require.True(ok)
	require.Equal(ID(2), entry.ID)
	require.Equal([]ID{1, 3, 4}, queueIDs(q))

	_, ok = q.Get(2)
	require.False(ok)
	_, ok = q.Get(3)
	require.True(ok)

	require.Len(q.Entries(), 3)
}

func TestOutboundQueue_RejectNew(t *testing.T) {
	require := require.New(t)

	q := NewOutboundQueue(2, RejectNew)
	_, err := q.Push(&QueueEntry{ID: 1, Task: "a"})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 2, Task: "b"})
	require.NoError(err)

	_, err = q.Push(&QueueEntry{ID: 3, Task: "c"})
	require.ErrorIs(err, ErrQueueFull)
	require.Equal([]ID{1, 2}, queueIDs(q))
}

func TestOutboundQueue_DropOldest(t *testing.T) {
	require := require.New(t)

	q := NewOutboundQueue(3, DropOldest)
	_, err := q.Push(&QueueEntry{ID: 1, Task: TaskSubscribe})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 2, Task: "/device/parms/set"})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 3, Task: "/device/parms/set"})
	require.NoError(err)

	// the subscribe entry is skipped, the oldest request goes
	evicted, err := q.Push(&QueueEntry{ID: 4, Task: "/device/summary/set"})
	require.NoError(err)
	require.NotNil(evicted)
	require.Equal(ID(2), evicted.ID)
	require.Equal([]ID{1, 3, 4}, queueIDs(q))
}

func TestOutboundQueue_DropOldestOnlySubscribe(t *testing.T) {
	require := require.New(t)

	q := NewOutboundQueue(2, DropOldest)
	_, err := q.Push(&QueueEntry{ID: 1, Task: TaskSubscribe})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 2, Task: TaskSubscribe})
	require.NoError(err)

	_, err = q.Push(&QueueEntry{ID: 3, Task: "/device/summary/get"})
	require.ErrorIs(err, ErrQueueFull)
	require.Equal([]ID{1, 2}, queueIDs(q))
}

func TestOutboundQueue_DropOldestKeepsUnsubscribe(t *testing.T) {
	require := require.New(t)

	q := NewOutboundQueue(3, DropOldest)
	_, err := q.Push(&QueueEntry{ID: 1, Task: TaskUnsubscribe})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 2, Task: TaskSubscribe})
	require.NoError(err)
	_, err = q.Push(&QueueEntry{ID: 3, Task: "/device/parms/set"})
	require.NoError(err)

	evicted, err := q.Push(&QueueEntry{ID: 4, Task: "/device/parms/set"})
	require.NoError(err)
	require.Equal(ID(3), evicted.ID)
	require.Equal([]ID{1, 2, 4}, queueIDs(q))

	require.True((&QueueEntry{Task: TaskUnsubscribe}).IsDurable())
	require.True((&QueueEntry{Task: TaskSubscribe}).IsDurable())
	require.False((&QueueEntry{Task: TaskPing}).IsDurable())
}

func TestParseOverflowPolicy(t *testing.T) {
	require := require.New(t)

	p, err := ParseOverflowPolicy("drop-oldest")
	require.NoError(err)
	require.Equal(DropOldest, p)

	p, err = ParseOverflowPolicy("")
	require.NoError(err)
	require.Equal(RejectNew, p)

	_, err = ParseOverflowPolicy("fifo")
	require.Error(err)

	require.Equal("reject-new", RejectNew.String())
	require.Equal("drop-oldest", DropOldest.String())
}
