// Package duplex implements the device side of a duplex channel to a cloud endpoint: one
// persistent, authenticated transport over which request/response exchanges and topic
// subscriptions are multiplexed, and which survives transport drops without losing outbound
// intent.
//
// Session:
// A Session owns every piece of protocol state. There are no package level tables; each Session
// is independent and is created and destroyed by the caller.
//
//   - CorrelationTable: maps the id of an in-flight request to its one-shot ResponseHandler.
//     It is cleared on every transition to DisconnectedState and the discarded handlers are never invoked.
//   - SubscriptionRegistry: maps a topic key to repeatable UpdateHandler functions. It survives disconnects
//     and only Unsubscribe removes an entry.
//   - OutboundQueue: ordered record of every intent not yet acknowledged. It is replayed, in insertion
//     order, each time the transport opens. Subscribe intents stay in the queue until Unsubscribe so that
//     every new connection re-announces them.
//
// Connection States:
// The state machine is binary, DisconnectedState and ConnectedState. Both states accept Send, Subscribe and
// Unsubscribe; only ConnectedState transmits immediately.
//
// Pump Model:
// The Transport never calls into the Session on its own goroutines. Transport events are delivered from
// Transport.Poll, which the Session calls from Pump. Hosts either call Pump regularly, or use Run/Start
// to drive it on a ticker. All public methods are serialized by one session lock, and every user handler
// runs after that lock is released, so handlers may call back into the Session.
//
// Wire Format:
// Every frame is an envelope {"header":{"id":<uint>,"task":"<string>"},"payload":<value>}, encoded by
// a Codec. JSONCodec is the default; CBORCodec carries the same envelope in CBOR for binary transports.
//
// Identifiers:
// An ID is epoch<<32 | sequence. The epoch advances on every new connection and the sequence increases
// monotonically within the epoch, so ids never collide across reconnects and always fit in 53 bits.
package duplex
