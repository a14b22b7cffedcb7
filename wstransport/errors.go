package wstransport

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("transport config is nil")

	// ErrAlreadyOpen indicates that Open was called on an open transport.
	ErrAlreadyOpen = errors.New("transport already open")

	// ErrClosed indicates that the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrFingerprintMismatch indicates that the endpoint certificate does not match the pinned fingerprint.
	ErrFingerprintMismatch = errors.New("certificate fingerprint mismatch")
)
