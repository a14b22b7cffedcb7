package duplex

import "errors"

var (
	// ErrConfigNil indicates that a nil SessionConfig was provided.
	ErrConfigNil = errors.New("session config is nil")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("transport is nil")

	// ErrCodecNil indicates that a nil Codec was provided.
	ErrCodecNil = errors.New("codec is nil")

	// ErrSessionClosed indicates that the session has been closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotConnected indicates that the transport has no open connection.
	ErrNotConnected = errors.New("transport not connected")
)

var (
	// ErrQueueFull indicates that the outbound queue reached its capacity and the overflow policy
	// refused the new intent.
	ErrQueueFull = errors.New("outbound queue is full")

	// ErrDuplicateID indicates that an identifier is already in use by a live entry.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrIntentEvicted indicates that a request was evicted from the outbound queue by the DropOldest
	// policy before it was acknowledged.
	ErrIntentEvicted = errors.New("request evicted from outbound queue")

	// ErrSubscriptionNotFound indicates that no subscription is registered under the given id.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

var (
	// ErrDecodeFailure indicates that an inbound frame does not conform to the envelope.
	ErrDecodeFailure = errors.New("frame decode failure")

	// ErrInvalidPayload indicates that a payload can't be encoded by the session codec.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrEmptyPayload indicates that a frame carries no payload to decode.
	ErrEmptyPayload = errors.New("empty payload")
)
