package duplex

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// mockTransport records outbound frames and delivers queued events on Poll, like a real transport.
type mockTransport struct {
	mu       sync.Mutex
	handlers TransportHandlers
	events   []func(h TransportHandlers)
	sent     [][]byte
	calls    []string
	sendErr  error
	closed   bool

	host        string
	port        int
	query       string
	fingerprint string
	token       string
}

var _ Transport = (*mockTransport)(nil)

func newMockTransport() *mockTransport {
	return &mockTransport{}
}

func (m *mockTransport) Open(host string, port int, query string, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "Open")
	m.host, m.port, m.query, m.fingerprint = host, port, query, fingerprint

	return nil
}

func (m *mockTransport) SetAuthorization(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "SetAuthorization")
	m.token = token
}

func (m *mockTransport) SetHandlers(handlers TransportHandlers) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = handlers
}

func (m *mockTransport) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.sent = append(m.sent, append([]byte(nil), data...))

	return nil
}

func (m *mockTransport) Poll() {
	m.mu.Lock()
	events := m.events
	m.events = nil
	handlers := m.handlers
	m.mu.Unlock()

	for _, ev := range events {
		ev(handlers)
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockTransport) pushOpen() {
	m.push(func(h TransportHandlers) { h.OnOpen() })
}

func (m *mockTransport) pushClose() {
	m.push(func(h TransportHandlers) { h.OnClose() })
}

func (m *mockTransport) pushFrame(data string) {
	m.push(func(h TransportHandlers) { h.OnFrame([]byte(data)) })
}

func (m *mockTransport) pushResponse(id ID, task string, payload string) {
	frame := `{"header":{"id":` + id.String() + `,"task":"` + task + `"}`
	if payload != "" {
		frame += `,"payload":` + payload
	}
	m.pushFrame(frame + "}")
}

func (m *mockTransport) push(ev func(h TransportHandlers)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
}

func (m *mockTransport) setSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendErr = err
}

type sentFrame struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// takeSent returns the frames sent since the previous call.
func (m *mockTransport) takeSent() []sentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([]sentFrame, 0, len(m.sent))
	for _, data := range m.sent {
		var f sentFrame
		if err := json.Unmarshal(data, &f); err != nil {
			panic(err)
		}
		frames = append(frames, f)
	}
	m.sent = nil

	return frames
}

func (m *mockTransport) callOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.calls...)
}

var errMockSend = errors.New("mock send failure")

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
