package wstransport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arloliu/go-duplex/duplex"
	"github.com/arloliu/go-duplex/internal/pool"
	"github.com/arloliu/go-duplex/internal/task"
	"github.com/arloliu/go-duplex/logger"
)

type eventKind int

const (
	eventOpen eventKind = iota
	eventClose
	eventFrame
)

type event struct {
	kind eventKind
	gen  uint64 // connection generation the event belongs to
	data []byte
}

// Transport is a duplex.Transport on a websocket connection.
type Transport struct {
	cfg     *Config
	logger  logger.Logger
	taskMgr *task.Manager
	events  chan event

	mu          sync.Mutex // protects the fields below
	handlers    duplex.TransportHandlers
	token       string
	url         string
	fingerprint string
	serverName  string
	conn        *websocket.Conn
	connGen     uint64 // generation of conn
	openGen     uint64 // generation whose open event was last delivered by Poll, 0 after a close
	opened      bool

	writeMu sync.Mutex // serializes frame writes
	closed  atomic.Bool
}

var _ duplex.Transport = (*Transport)(nil)

// New creates a websocket transport configured by opts. ctx bounds the lifetime of its background reader.
func New(ctx context.Context, opts ...Option) (*Transport, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a websocket transport from an existing configuration.
func NewWithConfig(ctx context.Context, cfg *Config) (*Transport, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	return &Transport{
		cfg:     cfg,
		logger:  cfg.logger,
		taskMgr: task.NewManager(ctx, cfg.logger),
		events:  make(chan event, cfg.eventQueueSize),
	}, nil
}

// SetAuthorization sets the value of the Authorization header sent on every dial.
func (t *Transport) SetAuthorization(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = token
}

// SetHandlers registers the event callbacks invoked by Poll.
func (t *Transport) SetHandlers(handlers duplex.TransportHandlers) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers = handlers
}

// Open starts connecting to host:port with the request path and query string query. A non-empty fingerprint
// pins the endpoint certificate.
//
// Open returns once the background connect loop is started; the connection is reported through the OnOpen
// handler. The loop reconnects after every drop until Close is called.
func (t *Transport) Open(host string, port int, query string, fingerprint string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.opened {
		return ErrAlreadyOpen
	}

	scheme := "wss"
	if t.cfg.plaintext {
		scheme = "ws"
	}
	if !strings.HasPrefix(query, "/") {
		query = "/" + query
	}

	t.url = scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port)) + query
	t.fingerprint = fingerprint
	t.serverName = host

	if fingerprint != "" && !t.cfg.plaintext {
		if _, err := pinnedTLSConfig(host, fingerprint); err != nil {
			return err
		}
	}

	if err := t.taskMgr.Start("connect", t.connectLoop); err != nil {
		return err
	}
	t.opened = true

	return nil
}

// Send writes one frame to the open connection.
//
// It returns duplex.ErrNotConnected when there is no connection, or when the open event of the current
// connection has not been delivered by Poll yet. A frame is therefore never written on a connection the
// session doesn't know about.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	ready := conn != nil && t.connGen == t.openGen
	t.mu.Unlock()

	if !ready {
		return duplex.ErrNotConnected
	}

	msgType := websocket.TextMessage
	if t.cfg.binary {
		msgType = websocket.BinaryMessage
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.writeTimeout)); err != nil {
		return err
	}

	return conn.WriteMessage(msgType, data)
}

// Poll delivers the buffered events to the handlers, in the order they occurred. It never blocks.
func (t *Transport) Poll() {
	t.mu.Lock()
	handlers := t.handlers
	t.mu.Unlock()

	for {
		select {
		case ev := <-t.events:
			t.deliver(handlers, ev)
		default:
			return
		}
	}
}

// Close closes the connection and stops reconnecting. Buffered events are discarded.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.taskMgr.Stop()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		t.writeMu.Unlock()
		_ = conn.Close()
	}

	t.taskMgr.Wait()

	t.logger.Debug("transport closed")

	return nil
}

// IsConnected returns if a websocket connection is currently open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil
}

func (t *Transport) deliver(handlers duplex.TransportHandlers, ev event) {
	switch ev.kind {
	case eventOpen:
		t.mu.Lock()
		t.openGen = ev.gen
		t.mu.Unlock()

		if handlers.OnOpen != nil {
			handlers.OnOpen()
		}
	case eventClose:
		t.mu.Lock()
		if t.openGen == ev.gen {
			t.openGen = 0
		}
		t.mu.Unlock()

		if handlers.OnClose != nil {
			handlers.OnClose()
		}
	case eventFrame:
		if handlers.OnFrame != nil {
			handlers.OnFrame(ev.data)
		}
	}
}

// connectLoop runs one connection lifetime: dial, read until the connection drops, then wait the
// reconnect interval.
func (t *Transport) connectLoop() bool {
	ctx := t.taskMgr.Context()

	conn, err := t.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		t.logger.Warn("failed to connect", "url", t.redactedURL(), "error", err, "retry_in", t.cfg.reconnectInterval)

		return pool.Sleep(ctx, t.cfg.reconnectInterval) == nil
	}

	t.mu.Lock()
	t.connGen++
	gen := t.connGen
	t.conn = conn
	t.mu.Unlock()

	// unblocks the reader when the transport is closed
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	t.logger.Info("connected", "url", t.redactedURL(), "subprotocol", conn.Subprotocol())

	if t.emit(ctx, event{kind: eventOpen, gen: gen}) {
		t.readLoop(ctx, conn)
	}

	t.mu.Lock()
	t.conn = nil
	t.mu.Unlock()
	_ = conn.Close()

	if ctx.Err() != nil {
		return false
	}

	t.logger.Info("disconnected", "retry_in", t.cfg.reconnectInterval)
	if !t.emit(ctx, event{kind: eventClose, gen: gen}) {
		return false
	}

	return pool.Sleep(ctx, t.cfg.reconnectInterval) == nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	url, token, fingerprint, serverName := t.url, t.token, t.fingerprint, t.serverName
	t.mu.Unlock()

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: t.cfg.handshakeTimeout,
		Subprotocols:     []string{t.cfg.subprotocol},
	}

	if fingerprint != "" && !t.cfg.plaintext {
		tlsCfg, err := pinnedTLSConfig(serverName, fingerprint)
		if err != nil {
			return nil, err
		}
		dialer.TLSClientConfig = tlsCfg
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", token)
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}

		return nil, fmt.Errorf("dial: %w", err)
	}

	return conn, nil
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("read failed", "error", err)
			}

			return
		}

		if !t.emit(ctx, event{kind: eventFrame, data: data}) {
			return
		}
	}
}

// emit buffers an event for Poll. It blocks while the buffer is full and returns false once ctx is done.
func (t *Transport) emit(ctx context.Context, ev event) bool {
	select {
	case t.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// redactedURL returns the dial url without its query string, which carries the api key.
func (t *Transport) redactedURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := strings.IndexByte(t.url, '?'); i >= 0 {
		return t.url[:i]
	}

	return t.url
}
