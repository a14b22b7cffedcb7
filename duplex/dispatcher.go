package duplex

// Known tasks.
const (
	// TaskPing is the keepalive request.
	TaskPing = "ping"
	// TaskSubscribe subscribes to a topic. Its intents stay queued for replay after acknowledgment.
	TaskSubscribe = "/topic/subscribe"
	// TaskUnsubscribe cancels a subscription.
	TaskUnsubscribe = "/topic/unsubscribe"
	// TaskUpdate is an inbound update of a subscribed topic.
	TaskUpdate = "update"
	// TaskUnpair is an inbound notice that the device pairing was revoked.
	TaskUnpair = "unpair"
)

// onOpen handles the open event of the transport.
//
// It moves the session to Connected, starts a new identifier epoch and replays the whole outbound queue
// in insertion order before any new intent can be transmitted.
func (s *Session) onOpen() {
	s.mu.Lock()

	if !s.stateMgr.ToConnected() {
		s.mu.Unlock()
		s.logger.Debug("open event while already connected, ignored")

		return
	}

	epoch := s.idGen.NewEpoch()
	s.lastKeepalive = s.cfg.now()
	s.keepaliveSent = false
	s.metrics.incConnectCount()

	entries := s.queue.Entries()
	for _, entry := range entries {
		_ = s.transmit(entry)
	}
	s.metrics.addReplayCount(len(entries))

	s.logger.Info("connected", "epoch", epoch, "replayed", len(entries))
	s.mu.Unlock()

	s.stateMgr.NotifyHandlers(DisconnectedState, ConnectedState, s.invoke)
}

// onClose handles the close event of the transport.
//
// In-flight requests are discarded without invoking their handlers. Queued intents and subscriptions
// survive until the next open.
func (s *Session) onClose() {
	s.mu.Lock()

	if !s.stateMgr.ToDisconnected() {
		s.mu.Unlock()
		return
	}

	n := s.pending.Clear()
	s.keepaliveSent = false
	s.metrics.incDisconnectCount()

	s.logger.Info("disconnected", "discarded", n, "queued", s.queue.Len())
	s.mu.Unlock()

	s.stateMgr.NotifyHandlers(ConnectedState, DisconnectedState, s.invoke)
}

// onFrame handles an inbound frame of the transport.
func (s *Session) onFrame(data []byte) {
	s.metrics.incFrameRecvCount()

	s.mu.Lock()
	calls := s.dispatch(data)
	s.mu.Unlock()

	for _, call := range calls {
		s.invoke(call)
	}
}

// dispatch routes an inbound frame and returns the handler calls to make once s.mu is released.
// Callers hold s.mu.
func (s *Session) dispatch(data []byte) []func() {
	frame, err := s.codec.DecodeFrame(data)
	if err != nil {
		s.metrics.incDecodeErrCount()
		s.logger.Warn("malformed frame dropped", "error", err, "size", len(data))

		return nil
	}

	switch frame.Header.Task {
	case TaskUpdate:
		return s.dispatchUpdate(frame)

	case TaskUnpair:
		s.logger.Info("unpair received", "id", frame.Header.ID)

		handler := s.cfg.getUnpairHandler()
		if handler == nil {
			return nil
		}
		payload := NewPayload(s.codec, frame.Payload)

		return []func(){func() { handler(payload) }}

	default:
		return s.dispatchResponse(frame)
	}
}

// dispatchUpdate delivers an update to every subscription of its topic key.
// Subscriptions are never consumed by an update.
func (s *Session) dispatchUpdate(frame *Frame) []func() {
	s.metrics.incUpdateCount()

	members, err := s.codec.Split(frame.Payload)
	if err != nil {
		s.metrics.incDecodeErrCount()
		s.logger.Warn("malformed update dropped", "id", frame.Header.ID, "error", err)

		return nil
	}

	var event, path string
	if raw, ok := members["event"]; ok && !s.codec.IsNull(raw) {
		if err := s.codec.Unmarshal(raw, &event); err != nil {
			s.metrics.incDecodeErrCount()
			s.logger.Warn("malformed update event dropped", "id", frame.Header.ID, "error", err)

			return nil
		}
	}
	if raw, ok := members["path"]; ok && !s.codec.IsNull(raw) {
		if err := s.codec.Unmarshal(raw, &path); err != nil {
			s.metrics.incDecodeErrCount()
			s.logger.Warn("malformed update path dropped", "id", frame.Header.ID, "error", err)

			return nil
		}
	}

	key := TopicKey(event, path)
	handlers := s.subs.Handlers(key)
	if len(handlers) == 0 {
		s.logger.Debug("update without subscription", "topic", key)
		return nil
	}

	update := NewPayload(s.codec, members["update"])
	calls := make([]func(), 0, len(handlers))
	for _, h := range handlers {
		calls = append(calls, func() { h(update) })
	}

	return calls
}

// dispatchResponse completes the in-flight request the response refers to.
//
// The acknowledged intent leaves the outbound queue, unless it is a subscribe intent, which stays
// queued for replay after a reconnect.
func (s *Session) dispatchResponse(frame *Frame) []func() {
	id := frame.Header.ID

	handler, found := s.pending.FindAndRemove(id)

	if entry, ok := s.queue.Get(id); ok && !entry.IsSubscribe() && frame.Header.Task != TaskSubscribe {
		s.queue.Remove(id)
	}

	if s.keepaliveSent && id == s.keepaliveID {
		s.keepaliveSent = false
	}

	if !found {
		s.metrics.incUnmatchedRespCount()
		s.logger.Debug("unmatched response dropped", "id", id, "task", frame.Header.Task)

		return nil
	}

	if handler == nil {
		return nil
	}

	payload := NewPayload(s.codec, frame.Payload)

	return []func(){func() { handler(payload) }}
}
