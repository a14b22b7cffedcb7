package wstransport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-duplex/logger"
)

// DefaultSubprotocol is the websocket subprotocol the endpoint expects.
const DefaultSubprotocol = "node"

// Config represents the configuration of a websocket Transport.
type Config struct {
	// reconnectInterval defines the wait between a drop or a failed dial and the next attempt.
	// Defaults to 5 seconds.
	reconnectInterval time.Duration

	// handshakeTimeout bounds the TLS and websocket handshake. Defaults to 10 seconds.
	handshakeTimeout time.Duration

	// writeTimeout bounds the write of one frame. Defaults to 10 seconds.
	writeTimeout time.Duration

	// plaintext selects ws:// instead of wss://. Defaults to false.
	plaintext bool

	// binary sends frames as binary websocket messages instead of text messages. Defaults to false.
	binary bool

	// subprotocol is the requested websocket subprotocol. Defaults to "node".
	subprotocol string

	// eventQueueSize defines the number of connection events and inbound frames buffered between two
	// Poll calls. The reader blocks when the buffer is full. Defaults to 256.
	eventQueueSize int

	logger logger.Logger
}

// NewConfig creates a transport configuration with default values and applies opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		reconnectInterval: 5 * time.Second,
		handshakeTimeout:  10 * time.Second,
		writeTimeout:      10 * time.Second,
		subprotocol:       DefaultSubprotocol,
		eventQueueSize:    256,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ReconnectInterval returns the wait between connection attempts.
func (cfg *Config) ReconnectInterval() time.Duration { return cfg.reconnectInterval }

// Option represents a functional option for configuring a Transport.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return o.applyFunc(cfg)
}

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithReconnectInterval sets the wait between a drop or a failed dial and the next attempt.
// It should be between 10 milliseconds and 10 minutes.
//
// The default value is 5 seconds.
func WithReconnectInterval(interval time.Duration) Option {
	return newOptFunc("WithReconnectInterval", func(cfg *Config) error {
		if interval < 10*time.Millisecond || interval > 10*time.Minute {
			return errors.New("reconnect interval out of range [10ms, 10m]")
		}
		cfg.reconnectInterval = interval

		return nil
	})
}

// WithHandshakeTimeout sets the timeout of the TLS and websocket handshake. It should be between 1 and 120 seconds.
//
// The default value is 10 seconds.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return newOptFunc("WithHandshakeTimeout", func(cfg *Config) error {
		if timeout < time.Second || timeout > 120*time.Second {
			return errors.New("handshake timeout out of range [1, 120]")
		}
		cfg.handshakeTimeout = timeout

		return nil
	})
}

// WithWriteTimeout sets the timeout of a frame write. It should be between 1 and 120 seconds.
//
// The default value is 10 seconds.
func WithWriteTimeout(timeout time.Duration) Option {
	return newOptFunc("WithWriteTimeout", func(cfg *Config) error {
		if timeout < time.Second || timeout > 120*time.Second {
			return errors.New("write timeout out of range [1, 120]")
		}
		cfg.writeTimeout = timeout

		return nil
	})
}

// WithPlaintext dials ws:// instead of wss://. Intended for local development endpoints.
func WithPlaintext(val bool) Option {
	return newOptFunc("WithPlaintext", func(cfg *Config) error {
		cfg.plaintext = val
		return nil
	})
}

// WithBinaryMessages sends frames as binary websocket messages, for binary codecs.
func WithBinaryMessages(val bool) Option {
	return newOptFunc("WithBinaryMessages", func(cfg *Config) error {
		cfg.binary = val
		return nil
	})
}

// WithSubprotocol sets the requested websocket subprotocol.
//
// The default value is "node".
func WithSubprotocol(subprotocol string) Option {
	return newOptFunc("WithSubprotocol", func(cfg *Config) error {
		if subprotocol == "" {
			return errors.New("subprotocol is empty")
		}
		cfg.subprotocol = subprotocol

		return nil
	})
}

// WithEventQueueSize sets the number of events buffered between two Poll calls. It should be between 1 and 65536.
//
// The default value is 256.
func WithEventQueueSize(size int) Option {
	return newOptFunc("WithEventQueueSize", func(cfg *Config) error {
		if size < 1 || size > 65536 {
			return fmt.Errorf("event queue size out of range [1, 65536]: %d", size)
		}
		cfg.eventQueueSize = size

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
