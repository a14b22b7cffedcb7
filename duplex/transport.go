package duplex

// TransportHandlers are the callbacks a Transport delivers events to.
// The Transport invokes them only from within Poll.
type TransportHandlers struct {
	// OnOpen is invoked when a connection becomes usable.
	OnOpen func()
	// OnClose is invoked when the connection is lost or closed.
	OnClose func()
	// OnFrame is invoked for every complete inbound frame.
	OnFrame func(data []byte)
}

// Transport is a persistent, authenticated, message oriented channel to the endpoint.
//
// A Transport reconnects on its own after a drop and reports the new connection through OnOpen.
// It must deliver events only from Poll, so the Session processes them on the pump goroutine.
type Transport interface {
	// Open starts connecting to host:port. query is the request path and query string, and
	// fingerprint the expected certificate fingerprint, empty to disable pinning.
	Open(host string, port int, query string, fingerprint string) error
	// SetAuthorization sets the authorization value presented when a connection is opened.
	SetAuthorization(token string)
	// SetHandlers registers the event callbacks.
	SetHandlers(handlers TransportHandlers)
	// Send transmits one frame. It returns ErrNotConnected when no connection is open.
	Send(data []byte) error
	// Poll delivers pending events to the handlers. It never blocks.
	Poll()
	// Close closes the connection and stops reconnecting.
	Close() error
}
