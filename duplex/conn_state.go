package duplex

import (
	"context"
	"sync"
	"sync/atomic"
)

// ConnState represents the state of the duplex connection.
type ConnState uint32

// Connection states. The machine is binary: the transport is either open or it is not.
const (
	// DisconnectedState indicates that the transport is not open. Intents are queued only.
	DisconnectedState ConnState = iota
	// ConnectedState indicates that the transport is open and frames are transmitted immediately.
	ConnectedState
)

// IsConnected returns if the state is ConnectedState.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// IsDisconnected returns if the state is DisconnectedState.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the connection state changes.
//
// Note: the handler is invoked on the pump goroutine in a blocking mode. Take care with long-running implementations.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr manages the connection state.
//
// Transitions only record the new state; the caller decides when to notify handlers with
// NotifyHandlers, which lets the Session finish its bookkeeping and release its lock first.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a new ConnStateMgr instance, initializing it to DisconnectedState.
func NewConnStateMgr(handlers ...ConnStateChangeHandler) *ConnStateMgr {
	cs := &ConnStateMgr{
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.cond = sync.NewCond(&cs.mu)
	cs.state.Store(uint32(DisconnectedState))
	cs.AddHandler(handlers...)

	return cs
}

// State returns the current connection state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// IsConnected returns if the current state is ConnectedState.
func (cs *ConnStateMgr) IsConnected() bool {
	return cs.State().IsConnected()
}

// AddHandler adds handlers to be invoked on state changes. Nil handlers are ignored.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			cs.handlers = append(cs.handlers, h)
		}
	}
}

// ToConnected transitions the state to ConnectedState.
// It returns false when the state already was ConnectedState.
func (cs *ConnStateMgr) ToConnected() bool {
	return cs.transition(ConnectedState)
}

// ToDisconnected transitions the state to DisconnectedState.
// It returns false when the state already was DisconnectedState.
func (cs *ConnStateMgr) ToDisconnected() bool {
	return cs.transition(DisconnectedState)
}

// NotifyHandlers invokes every registered handler, in registration order, through invoke.
// invoke wraps each call, e.g. with panic protection; nil calls the handler directly.
func (cs *ConnStateMgr) NotifyHandlers(prevState, newState ConnState, invoke func(fn func())) {
	cs.mu.Lock()
	handlers := make([]ConnStateChangeHandler, len(cs.handlers))
	copy(handlers, cs.handlers)
	cs.mu.Unlock()

	for _, h := range handlers {
		call := func() { h(prevState, newState) }
		if invoke != nil {
			invoke(call)
		} else {
			call()
		}
	}
}

// WaitState waits for the connection state to reach the specified state or until the context is done.
// It returns nil if the desired state is reached, or ctx.Err().
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

func (cs *ConnStateMgr) transition(newState ConnState) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == newState {
		return false
	}
	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()

	return true
}
