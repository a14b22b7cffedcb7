package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-duplex/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockLogger() *logger.MockLogger {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()
	mockLogger.On("Info", mock.Anything, mock.Anything).Return()
	mockLogger.On("Warn", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()

	return mockLogger
}

func TestManager_Start(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newMockLogger())

	var runs atomic.Int32
	canceled := make(chan struct{})
	err := mgr.StartWithCancel("loop", func() bool {
		return runs.Add(1) < 3
	}, func() { close(canceled) })
	require.NoError(err)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("cancel func was not called")
	}

	mgr.Wait()
	require.Equal(int32(3), runs.Load())
	require.Equal(0, mgr.TaskCount())
}

func TestManager_StopAndReuse(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newMockLogger())

	started := make(chan struct{})
	var once atomic.Bool
	require.NoError(mgr.Start("blocked", func() bool {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-mgr.Context().Done()
		return false
	}))

	<-started
	require.Equal(1, mgr.TaskCount())

	mgr.Stop()
	require.ErrorIs(mgr.Start("late", func() bool { return false }), ErrStopped)

	mgr.Wait()
	require.Equal(0, mgr.TaskCount())

	// a fresh generation is available after Wait
	require.NoError(mgr.Start("again", func() bool { return false }))
	mgr.Wait()
}

func TestManager_StartInterval(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newMockLogger())

	var runs atomic.Int32
	ticker, err := mgr.StartInterval("tick", func() bool {
		return runs.Add(1) < 3
	}, 5*time.Millisecond, true)
	require.NoError(err)
	require.NotNil(ticker)
	require.Equal(int32(1), runs.Load())

	_, err = mgr.StartInterval("tick", func() bool { return true }, time.Second, false)
	require.Error(err)

	require.Eventually(func() bool { return runs.Load() == 3 }, time.Second, time.Millisecond)
	mgr.Wait()

	_, err = mgr.StartInterval("bad", func() bool { return true }, 0, false)
	require.Error(err)

	require.Error(mgr.StopInterval("missing"))
}

func TestManager_RecoverPanic(t *testing.T) {
	assert := assert.New(t)

	mockLogger := newMockLogger()
	mgr := NewManager(context.Background(), mockLogger)

	assert.NoError(mgr.Start("panicky", func() bool { panic("boom") }))
	mgr.Wait()

	mockLogger.AssertCalled(t, "Error", "panic in task", mock.Anything)
}
