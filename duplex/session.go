package duplex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-duplex/internal/task"
	"github.com/arloliu/go-duplex/logger"
)

// ConnectionHandler is invoked with the new state on every connection state transition.
type ConnectionHandler func(state ConnState)

// Session is the duplex protocol engine of a device.
//
// It owns the Transport and drives the connection state machine, the correlation table of in-flight
// requests, the outbound queue replayed after every reconnect, and the subscription registry. Inbound
// frames are routed by the dispatcher.
//
// All public methods are safe for concurrent use. Transport events, and therefore every handler
// invocation, happen on the goroutine that calls Pump, either directly or through Run or Start.
// Handlers are invoked without internal locks held, so a handler may call back into the Session,
// except for Pump itself.
type Session struct {
	cfg        *SessionConfig
	logger     logger.Logger
	codec      Codec
	transport  Transport
	instanceID uuid.UUID

	mu            sync.Mutex // serializes operations and transport callbacks
	stateMgr      *ConnStateMgr
	idGen         *idGenerator
	pending       *CorrelationTable
	subs          *SubscriptionRegistry
	queue         *OutboundQueue
	lastKeepalive time.Time
	keepaliveID   ID
	keepaliveSent bool

	taskMgr *task.Manager
	pumping atomic.Bool
	closed  atomic.Bool

	metrics SessionMetrics
}

// NewSession creates a new Session that communicates through transport with the endpoint described by cfg.
//
// The session registers its handlers on the transport but does not open it; call Connect, then drive the
// session with Pump, Run or Start.
func NewSession(ctx context.Context, cfg *SessionConfig, transport Transport) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if transport == nil {
		return nil, ErrTransportNil
	}

	if cfg.Codec() == nil {
		return nil, ErrCodecNil
	}

	instanceID := uuid.New()
	l := cfg.Logger().With("session", instanceID.String())

	s := &Session{
		cfg:        cfg,
		logger:     l,
		codec:      cfg.Codec(),
		transport:  transport,
		instanceID: instanceID,
		stateMgr:   NewConnStateMgr(),
		idGen:      newIDGenerator(),
		pending:    NewCorrelationTable(),
		subs:       NewSubscriptionRegistry(),
		queue:      NewOutboundQueue(cfg.MaxQueueSize(), cfg.OverflowPolicy()),
		taskMgr:    task.NewManager(ctx, l),
	}

	transport.SetHandlers(TransportHandlers{
		OnOpen:  s.onOpen,
		OnClose: s.onClose,
		OnFrame: s.onFrame,
	})

	return s, nil
}

// Connect opens the transport with the stored credentials.
//
// The connection is reported asynchronously: the session becomes Connected when the transport delivers
// its open event during Pump.
func (s *Session) Connect() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport.SetAuthorization(s.cfg.Token())

	query := s.cfg.Query()
	s.logger.Info("connecting", "host", s.cfg.Host(), "port", s.cfg.Port(), "query", query)

	if err := s.transport.Open(s.cfg.Host(), s.cfg.Port(), query, s.cfg.Fingerprint()); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	return nil
}

// Send issues a request for task with payload and returns its id.
//
// payload is encoded with the session codec; a nil payload sends no payload, and a Payload is sent as is.
// handler, which may be nil, is invoked once with the response payload.
//
// The request is queued until acknowledged. It is transmitted immediately when Connected, and replayed after
// every reconnect otherwise. Send never fails because the transport is down; it fails with ErrQueueFull when
// the outbound queue refuses the request.
func (s *Session) Send(task string, payload any, handler ResponseHandler) (ID, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}

	raw, err := s.encodePayload(payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submit(task, raw, handler, nil)
}

// Request sends a request and waits for its response, like a future.
//
// Responses are delivered by Pump, so Request must not be called from the goroutine that pumps the session.
// When ctx ends first, the request is forgotten: its correlation and queue entries are removed.
// It returns ErrIntentEvicted when the DropOldest policy evicts the request before its response arrives.
func (s *Session) Request(ctx context.Context, task string, payload any) (Payload, error) {
	if s.closed.Load() {
		return Payload{}, ErrSessionClosed
	}

	raw, err := s.encodePayload(payload)
	if err != nil {
		return Payload{}, err
	}

	respCh := make(chan Payload, 1)
	evictedCh := make(chan struct{})

	s.mu.Lock()
	id, err := s.submit(task, raw, func(resp Payload) {
		respCh <- resp
	}, func() {
		close(evictedCh)
	})
	s.mu.Unlock()

	if err != nil {
		return Payload{}, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-evictedCh:
		return Payload{}, fmt.Errorf("%w: %s", ErrIntentEvicted, id)
	case <-ctx.Done():
		s.forget(id)
		return Payload{}, ctx.Err()
	}
}

// Subscribe registers handler for updates of topic and returns the subscription id.
//
// The subscription key is the canonical topic name and the "path" field of payload, empty if payload has
// none. A subscribe intent is always queued, so the subscription is re-established after every reconnect,
// and is transmitted immediately when Connected.
func (s *Session) Subscribe(topic string, payload any, handler UpdateHandler) (ID, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}

	raw, err := s.encodePayload(payload)
	if err != nil {
		return 0, err
	}

	key := TopicKey(topic, s.payloadPath(raw))

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.submit(TaskSubscribe, raw, nil, nil)
	if err != nil {
		return 0, err
	}

	s.subs.Insert(key, id, handler)
	s.logger.Debug("subscribed", "id", id, "topic", key)

	return id, nil
}

// Unsubscribe removes the subscription with the given id and issues an unsubscribe intent with payload.
// It returns the id of the unsubscribe intent, or ErrSubscriptionNotFound for an unknown subscription.
func (s *Session) Unsubscribe(subscriptionID ID, payload any) (ID, error) {
	if s.closed.Load() {
		return 0, ErrSessionClosed
	}

	raw, err := s.encodePayload(payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs.Remove(subscriptionID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, subscriptionID)
	}

	s.queue.Remove(subscriptionID)
	s.pending.Remove(subscriptionID)
	s.logger.Debug("unsubscribed", "id", subscriptionID, "topic", sub.Topic)

	return s.submit(TaskUnsubscribe, raw, nil, nil)
}

// OnConnection registers a handler invoked with the new state on every connection state transition.
// It can be called more than once; handlers are invoked in registration order.
func (s *Session) OnConnection(handler ConnectionHandler) {
	if handler == nil {
		return
	}

	s.stateMgr.AddHandler(func(_ ConnState, newState ConnState) {
		handler(newState)
	})
}

// AddConnStateChangeHandler registers handlers invoked with the previous and the new state on every
// connection state transition.
func (s *Session) AddConnStateChangeHandler(handlers ...ConnStateChangeHandler) {
	s.stateMgr.AddHandler(handlers...)
}

// Pump runs one iteration of the session: it sends a keepalive when one is due, then polls the
// transport, which delivers pending transport events to the session.
//
// Concurrent or re-entrant calls return immediately.
func (s *Session) Pump() {
	if s.closed.Load() {
		return
	}

	if !s.pumping.CompareAndSwap(false, true) {
		return
	}
	defer s.pumping.Store(false)

	s.keepalive()
	s.transport.Poll()
}

// Run pumps the session at the configured pump interval until ctx is done or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PumpInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.closed.Load() {
				return ErrSessionClosed
			}
			s.Pump()
		}
	}
}

// Start pumps the session on a background goroutine until Close is called.
func (s *Session) Start() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	_, err := s.taskMgr.StartInterval("pump", func() bool {
		s.Pump()
		return !s.closed.Load()
	}, s.cfg.PumpInterval(), false)

	return err
}

// Close stops pumping, closes the transport and moves the session to the disconnected state.
// Queued intents and subscriptions are kept but the session can't be used afterwards.
//
// Close waits for the Start goroutine, so it must not be called from a handler.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.taskMgr.Stop()
	s.taskMgr.Wait()

	err := s.transport.Close()
	s.onClose()
	s.logger.Info("session closed")

	return err
}

// WaitState waits until the session reaches state or ctx is done.
func (s *Session) WaitState(ctx context.Context, state ConnState) error {
	return s.stateMgr.WaitState(ctx, state)
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	return s.stateMgr.State()
}

// IsConnected returns if the session is connected.
func (s *Session) IsConnected() bool {
	return s.stateMgr.IsConnected()
}

// QueueLen returns the number of queued intents.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Len()
}

// QueueEntries returns a snapshot of the queued intents in replay order.
func (s *Session) QueueEntries() []*QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.Entries()
}

// PendingLen returns the number of in-flight requests.
func (s *Session) PendingLen() int {
	return s.pending.Len()
}

// PendingTopics returns the number of in-flight requests per task.
func (s *Session) PendingTopics() map[string]int {
	return s.pending.Topics()
}

// SubscriptionCount returns the number of subscriptions.
func (s *Session) SubscriptionCount() int {
	return s.subs.Len()
}

// Subscriptions returns the sorted topic keys with at least one subscription.
func (s *Session) Subscriptions() []string {
	return s.subs.Topics()
}

// Epoch returns the current identifier epoch.
func (s *Session) Epoch() uint32 {
	return s.idGen.Epoch()
}

// InstanceID returns the unique id of this session instance, as it appears in logs and metrics.
func (s *Session) InstanceID() string {
	return s.instanceID.String()
}

// Codec returns the session codec.
func (s *Session) Codec() Codec {
	return s.codec
}

// Config returns the session configuration.
func (s *Session) Config() *SessionConfig {
	return s.cfg
}

// GetLogger returns the session logger.
func (s *Session) GetLogger() logger.Logger {
	return s.logger
}

// GetMetrics returns the session metrics.
func (s *Session) GetMetrics() *SessionMetrics {
	return &s.metrics
}

// submit queues an intent and transmits it when connected. onEvict, which may be nil, is called if the
// intent is later evicted by DropOldest. Callers hold s.mu.
func (s *Session) submit(task string, raw []byte, handler ResponseHandler, onEvict func()) (ID, error) {
	entry := &QueueEntry{
		ID:      s.idGen.Next(),
		Task:    task,
		Payload: raw,
		Handler: handler,
		onEvict: onEvict,
	}

	evicted, err := s.queue.Push(entry)
	if err != nil {
		if errors.Is(err, ErrQueueFull) {
			s.metrics.incQueueOverflowCount()
			s.logger.Warn("outbound queue full, intent refused", "task", task, "capacity", s.queue.Cap())
		}

		return 0, err
	}

	if evicted != nil {
		s.pending.Remove(evicted.ID)
		s.metrics.incQueueOverflowCount()
		s.logger.Warn("outbound queue full, oldest intent dropped", "id", evicted.ID, "task", evicted.Task)

		if evicted.onEvict != nil {
			evicted.onEvict()
		}
	}

	if s.stateMgr.IsConnected() {
		_ = s.transmit(entry)
	}

	return entry.ID, nil
}

// transmit registers the correlation entry of a queued intent and sends its frame. Callers hold s.mu.
//
// A failed send leaves the intent queued for the next replay.
func (s *Session) transmit(entry *QueueEntry) error {
	s.pending.Insert(entry.Task, entry.ID, entry.Handler)

	if err := s.sendFrame(Header{ID: entry.ID, Task: entry.Task}, entry.Payload); err != nil {
		s.pending.Remove(entry.ID)
		return err
	}

	return nil
}

func (s *Session) sendFrame(header Header, payload []byte) error {
	data, err := s.codec.EncodeFrame(header, payload)
	if err != nil {
		s.metrics.incFrameSendErrCount()
		s.logger.Error("failed to encode frame", "id", header.ID, "task", header.Task, "error", err)

		return err
	}

	if err := s.transport.Send(data); err != nil {
		s.metrics.incFrameSendErrCount()
		s.logger.Warn("failed to send frame", "id", header.ID, "task", header.Task, "error", err)

		return err
	}

	s.metrics.incFrameSendCount()
	s.logger.Debug("frame sent", "id", header.ID, "task", header.Task)

	return nil
}

// keepalive sends a keepalive request when one is due.
//
// Only the latest keepalive is tracked: issuing one drops the correlation entry of the previous one.
func (s *Session) keepalive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stateMgr.IsConnected() || !s.cfg.AutoKeepalive() {
		return
	}

	now := s.cfg.now()
	if now.Sub(s.lastKeepalive) < s.cfg.KeepaliveInterval() {
		return
	}
	s.lastKeepalive = now

	if s.keepaliveSent {
		s.pending.Remove(s.keepaliveID)
	}

	id := s.idGen.Next()
	s.pending.Insert(TaskPing, id, nil)
	s.keepaliveID = id
	s.keepaliveSent = true

	if err := s.sendFrame(Header{ID: id, Task: TaskPing}, nil); err != nil {
		s.pending.Remove(id)
		s.keepaliveSent = false

		return
	}

	s.metrics.incKeepaliveSendCount()
}

// forget drops an intent the caller is no longer waiting for.
func (s *Session) forget(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Remove(id)
	s.queue.Remove(id)
}

func (s *Session) encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case Payload:
		return v.Raw(), nil
	}

	raw, err := s.codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return raw, nil
}

// payloadPath returns the "path" field of an encoded payload, or an empty string.
func (s *Session) payloadPath(raw []byte) string {
	field, ok := NewPayload(s.codec, raw).Field("path")
	if !ok {
		return ""
	}

	var path string
	if err := field.Decode(&path); err != nil {
		return ""
	}

	return path
}

// invoke calls a user handler with panic protection.
func (s *Session) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.incHandlerPanicCount()
			s.logger.Error("panic in handler", "panic", r)
		}
	}()

	fn()
}
