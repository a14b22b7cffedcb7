package duplex

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the metrics of a Session as prometheus metrics.
//
// Every metric carries a constant "session" label with the session instance id, so several sessions can be
// registered in the same registry.
type Collector struct {
	session  *Session
	counters []counterDesc
	gauges   []gaugeDesc
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(m *SessionMetrics) uint64
}

type gaugeDesc struct {
	desc  *prometheus.Desc
	value func(s *Session) float64
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a prometheus collector for s. namespace prefixes every metric name and may be empty.
func NewCollector(s *Session, namespace string) *Collector {
	labels := prometheus.Labels{"session": s.InstanceID()}
	newDesc := func(name string, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "duplex", name), help, nil, labels)
	}

	c := &Collector{session: s}

	c.counters = []counterDesc{
		{newDesc("frames_sent_total", "Frames handed to the transport."),
			func(m *SessionMetrics) uint64 { return m.FrameSendCount.Load() }},
		{newDesc("frame_send_errors_total", "Frames the transport failed to send."),
			func(m *SessionMetrics) uint64 { return m.FrameSendErrCount.Load() }},
		{newDesc("frames_received_total", "Frames received from the transport."),
			func(m *SessionMetrics) uint64 { return m.FrameRecvCount.Load() }},
		{newDesc("decode_errors_total", "Inbound frames dropped as malformed."),
			func(m *SessionMetrics) uint64 { return m.DecodeErrCount.Load() }},
		{newDesc("unmatched_responses_total", "Responses without an in-flight request."),
			func(m *SessionMetrics) uint64 { return m.UnmatchedRespCount.Load() }},
		{newDesc("updates_total", "Update frames received."),
			func(m *SessionMetrics) uint64 { return m.UpdateCount.Load() }},
		{newDesc("keepalives_sent_total", "Keepalive requests sent."),
			func(m *SessionMetrics) uint64 { return m.KeepaliveSendCount.Load() }},
		{newDesc("replays_total", "Queued intents replayed after a reconnect."),
			func(m *SessionMetrics) uint64 { return m.ReplayCount.Load() }},
		{newDesc("queue_overflows_total", "Intents refused or evicted at queue capacity."),
			func(m *SessionMetrics) uint64 { return m.QueueOverflowCount.Load() }},
		{newDesc("handler_panics_total", "Recovered handler panics."),
			func(m *SessionMetrics) uint64 { return m.HandlerPanicCount.Load() }},
		{newDesc("connects_total", "Transitions to the connected state."),
			func(m *SessionMetrics) uint64 { return m.ConnectCount.Load() }},
		{newDesc("disconnects_total", "Transitions to the disconnected state."),
			func(m *SessionMetrics) uint64 { return m.DisconnectCount.Load() }},
	}

	c.gauges = []gaugeDesc{
		{newDesc("connected", "1 when the session is connected, 0 otherwise."),
			func(s *Session) float64 {
				if s.IsConnected() {
					return 1
				}
				return 0
			}},
		{newDesc("queue_length", "Queued intents awaiting acknowledgment."),
			func(s *Session) float64 { return float64(s.QueueLen()) }},
		{newDesc("pending_requests", "In-flight requests."),
			func(s *Session) float64 { return float64(s.PendingLen()) }},
		{newDesc("subscriptions", "Registered subscriptions."),
			func(s *Session) float64 { return float64(s.SubscriptionCount()) }},
	}

	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.gauges {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.session.GetMetrics()
	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(d.value(m)))
	}
	for _, d := range c.gauges {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.GaugeValue, d.value(c.session))
	}
}
