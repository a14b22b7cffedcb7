// Package wstransport implements duplex.Transport on a secure websocket.
//
// The transport dials wss://host:port<query> with the device token in the Authorization header and the
// "node" subprotocol, optionally pinning the endpoint certificate by fingerprint. Once opened it reconnects
// on its own after every drop, waiting the reconnect interval between attempts.
//
// Connection events and inbound frames are produced by a background reader and buffered; they reach the
// registered handlers only from Poll, so a duplex.Session processes them on its pump goroutine:
//
//	tr, _ := wstransport.New(ctx, wstransport.WithReconnectInterval(5*time.Second))
//	session, _ := duplex.NewSession(ctx, cfg, tr)
//	_ = session.Connect()
//	_ = session.Run(ctx)
package wstransport
