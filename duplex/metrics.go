package duplex

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, see NewCollector.
type SessionMetrics struct {
	// FrameSendCount indicates the number of frames handed to the transport.
	FrameSendCount atomic.Uint64
	// FrameSendErrCount indicates the number of frames the transport failed to send.
	FrameSendErrCount atomic.Uint64
	// FrameRecvCount indicates the number of frames received from the transport.
	FrameRecvCount atomic.Uint64
	// DecodeErrCount indicates the number of inbound frames dropped as malformed.
	DecodeErrCount atomic.Uint64
	// UnmatchedRespCount indicates the number of responses without a pending request.
	UnmatchedRespCount atomic.Uint64
	// UpdateCount indicates the number of update frames received.
	UpdateCount atomic.Uint64
	// KeepaliveSendCount indicates the number of keepalive requests sent.
	KeepaliveSendCount atomic.Uint64
	// ReplayCount indicates the number of queued intents replayed after a reconnect.
	ReplayCount atomic.Uint64
	// QueueOverflowCount indicates the number of intents rejected or evicted at queue capacity.
	QueueOverflowCount atomic.Uint64
	// HandlerPanicCount indicates the number of recovered handler panics.
	HandlerPanicCount atomic.Uint64

	// ConnectCount indicates the number of transitions to Connected.
	ConnectCount atomic.Uint64
	// DisconnectCount indicates the number of transitions to Disconnected.
	DisconnectCount atomic.Uint64
}

func (m *SessionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *SessionMetrics) incFrameSendErrCount() {
	m.FrameSendErrCount.Add(1)
}

func (m *SessionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *SessionMetrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *SessionMetrics) incUnmatchedRespCount() {
	m.UnmatchedRespCount.Add(1)
}

func (m *SessionMetrics) incUpdateCount() {
	m.UpdateCount.Add(1)
}

func (m *SessionMetrics) incKeepaliveSendCount() {
	m.KeepaliveSendCount.Add(1)
}

func (m *SessionMetrics) addReplayCount(n int) {
	m.ReplayCount.Add(uint64(n))
}

func (m *SessionMetrics) incQueueOverflowCount() {
	m.QueueOverflowCount.Add(1)
}

func (m *SessionMetrics) incHandlerPanicCount() {
	m.HandlerPanicCount.Add(1)
}

func (m *SessionMetrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *SessionMetrics) incDisconnectCount() {
	m.DisconnectCount.Add(1)
}
