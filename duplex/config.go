package duplex

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-duplex/logger"
)

// Limits of the outbound queue capacity.
const (
	MinQueueSize = 1
	MaxQueueSize = 4096
)

// UnpairHandler is invoked when the endpoint sends an "unpair" frame.
type UnpairHandler func(payload Payload)

// SessionConfig represents the configuration parameters of a duplex Session.
type SessionConfig struct {
	mu sync.RWMutex

	// host specifies the host of the cloud endpoint.
	host string

	// port specifies the port of the cloud endpoint.
	port int

	// apiKey identifies the device type towards the endpoint. It is sent in the open query string.
	apiKey string

	// token is the device credential, handed to the transport as the authorization value.
	token string

	// fingerprint is the expected certificate fingerprint of the endpoint, in hex.
	// An empty fingerprint disables pinning.
	fingerprint string

	// autoKeepalive indicates whether the session sends periodic keepalive requests while connected.
	// Defaults to true.
	autoKeepalive bool

	// keepaliveInterval defines the time between keepalive requests.
	// Defaults to 5 seconds.
	keepaliveInterval time.Duration

	// maxQueueSize bounds the number of unacknowledged outbound intents. It should be between 1 and 4096.
	// Defaults to 64.
	maxQueueSize int

	// overflowPolicy selects what happens to a new intent when the outbound queue is full.
	// Defaults to RejectNew.
	overflowPolicy OverflowPolicy

	// codec encodes payloads and frames. Defaults to JSONCodec.
	codec Codec

	// pumpInterval defines how often Run pumps the session.
	// Defaults to 50 milliseconds.
	pumpInterval time.Duration

	// clock returns the current time for keepalive scheduling. Defaults to time.Now.
	clock func() time.Time

	// unpairHandler is invoked for inbound "unpair" frames.
	unpairHandler UnpairHandler

	// logger provides a logger instance for logging session events and errors.
	logger logger.Logger
}

// NewSessionConfig creates a new session configuration for the endpoint at host and port, with optional
// functional options.
//
// The opts parameter is a variadic argument that accepts a list of SessionOption functions to customize
// the configuration. See the various WithXXX functions for the available options.
//
// Returns a pointer to the initialized SessionConfig and an error if any occurred during the configuration process.
func NewSessionConfig(host string, port int, opts ...SessionOption) (*SessionConfig, error) {
	cfg := &SessionConfig{
		autoKeepalive:     true,
		keepaliveInterval: 5 * time.Second,
		maxQueueSize:      64,
		overflowPolicy:    RejectNew,
		codec:             JSONCodec{},
		pumpInterval:      50 * time.Millisecond,
		clock:             time.Now,
		logger:            logger.GetLogger(),
	}

	if err := withHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Host returns the endpoint host.
func (cfg *SessionConfig) Host() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.host
}

// Port returns the endpoint port.
func (cfg *SessionConfig) Port() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.port
}

// Token returns the device credential.
func (cfg *SessionConfig) Token() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.token
}

// Fingerprint returns the pinned certificate fingerprint.
func (cfg *SessionConfig) Fingerprint() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.fingerprint
}

// Query returns the path and query string used to open the channel, "/?type=device&apiKey=<apiKey>".
func (cfg *SessionConfig) Query() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return "/?type=device&apiKey=" + url.QueryEscape(cfg.apiKey)
}

func (cfg *SessionConfig) AutoKeepalive() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.autoKeepalive
}

func (cfg *SessionConfig) KeepaliveInterval() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.keepaliveInterval
}

func (cfg *SessionConfig) MaxQueueSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxQueueSize
}

func (cfg *SessionConfig) OverflowPolicy() OverflowPolicy {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.overflowPolicy
}

func (cfg *SessionConfig) Codec() Codec {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.codec
}

func (cfg *SessionConfig) PumpInterval() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.pumpInterval
}

func (cfg *SessionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

func (cfg *SessionConfig) now() time.Time {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.clock()
}

func (cfg *SessionConfig) getUnpairHandler() UnpairHandler {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.unpairHandler
}

// Update applies runtime changeable options to the configuration.
//
// Only options documented as changeable at runtime are accepted; others yield an error and
// leave the configuration untouched from that option on.
func (cfg *SessionConfig) Update(opts ...SessionOption) error {
	for _, opt := range opts {
		of, ok := opt.(*sessionOptFunc)
		if !ok || !of.runtime {
			return fmt.Errorf("option %s can't be changed at runtime", optName(opt))
		}

		if err := opt.apply(cfg); err != nil {
			return err
		}
	}

	return nil
}

// SessionOption represents a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*SessionConfig) error
}

func (o *sessionOptFunc) apply(cfg *SessionConfig) error {
	if cfg == nil {
		return ErrConfigNil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return o.applyFunc(cfg)
}

func newSessionOptFunc(name string, runtime bool, f func(*SessionConfig) error) *sessionOptFunc {
	return &sessionOptFunc{
		name:      name,
		runtime:   runtime,
		applyFunc: f,
	}
}

func optName(opt SessionOption) string {
	if of, ok := opt.(*sessionOptFunc); ok {
		return of.name
	}

	return fmt.Sprintf("%T", opt)
}

// withHost validates and sets the endpoint host.
// Any non-empty host without whitespace is accepted; name resolution is left to the transport.
func withHost(host string) SessionOption {
	return newSessionOptFunc("withHost", false, func(cfg *SessionConfig) error {
		host = strings.TrimSuffix(strings.TrimSpace(host), ".")
		if host == "" || strings.ContainsAny(host, " \t/") {
			return errors.New("invalid host")
		}
		cfg.host = host

		return nil
	})
}

// withPort validates and sets the endpoint port.
// An error is returned if the port number is out of the valid range (1-65535).
func withPort(port int) SessionOption {
	return newSessionOptFunc("withPort", false, func(cfg *SessionConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port is out of range [1, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithAPIKey sets the api key placed in the open query string.
//
// This option can't be changed at runtime.
func WithAPIKey(apiKey string) SessionOption {
	return newSessionOptFunc("WithAPIKey", false, func(cfg *SessionConfig) error {
		cfg.apiKey = apiKey
		return nil
	})
}

// WithToken sets the device credential passed to the transport as authorization.
//
// This option can be changed at runtime; the new token is used on the next Connect.
func WithToken(token string) SessionOption {
	return newSessionOptFunc("WithToken", true, func(cfg *SessionConfig) error {
		cfg.token = token
		return nil
	})
}

// WithFingerprint sets the expected certificate fingerprint of the endpoint, as a hex string with
// optional colon separators. A SHA-1 (40 hex digits) or SHA-256 (64 hex digits) fingerprint is accepted.
//
// This option can be changed at runtime; the new fingerprint is used on the next Connect.
func WithFingerprint(fingerprint string) SessionOption {
	return newSessionOptFunc("WithFingerprint", true, func(cfg *SessionConfig) error {
		fp := NormalizeFingerprint(fingerprint)
		if fp != "" && len(fp) != 40 && len(fp) != 64 {
			return fmt.Errorf("invalid fingerprint length %d, expects 40 or 64 hex digits", len(fp))
		}
		for _, r := range fp {
			if !strings.ContainsRune("0123456789abcdef", r) {
				return fmt.Errorf("invalid fingerprint character %q", r)
			}
		}
		cfg.fingerprint = fp

		return nil
	})
}

// WithAutoKeepalive enables or disables the periodic keepalive request.
//
// The default value is true.
//
// This option can be changed at runtime.
func WithAutoKeepalive(val bool) SessionOption {
	return newSessionOptFunc("WithAutoKeepalive", true, func(cfg *SessionConfig) error {
		cfg.autoKeepalive = val
		return nil
	})
}

// WithKeepaliveInterval sets the time between keepalive requests. It should be between 100 milliseconds and 1 hour.
//
// The default value is 5 seconds.
//
// This option can be changed at runtime.
func WithKeepaliveInterval(interval time.Duration) SessionOption {
	return newSessionOptFunc("WithKeepaliveInterval", true, func(cfg *SessionConfig) error {
		if interval < 100*time.Millisecond || interval > time.Hour {
			return errors.New("keepalive interval out of range [100ms, 1h]")
		}
		cfg.keepaliveInterval = interval

		return nil
	})
}

// WithMaxQueueSize sets the capacity of the outbound queue. It should be between 1 and 4096.
//
// The default value is 64.
//
// This option can't be changed at runtime.
func WithMaxQueueSize(size int) SessionOption {
	return newSessionOptFunc("WithMaxQueueSize", false, func(cfg *SessionConfig) error {
		if size < MinQueueSize || size > MaxQueueSize {
			return fmt.Errorf("queue size out of range [%d, %d]", MinQueueSize, MaxQueueSize)
		}
		cfg.maxQueueSize = size

		return nil
	})
}

// WithOverflowPolicy sets what happens to a new intent when the outbound queue is full.
//
// The default value is RejectNew.
//
// This option can't be changed at runtime.
func WithOverflowPolicy(policy OverflowPolicy) SessionOption {
	return newSessionOptFunc("WithOverflowPolicy", false, func(cfg *SessionConfig) error {
		if policy != RejectNew && policy != DropOldest {
			return fmt.Errorf("invalid overflow policy: %d", policy)
		}
		cfg.overflowPolicy = policy

		return nil
	})
}

// WithCodec sets the payload and frame codec.
//
// The default codec is JSONCodec.
//
// This option can't be changed at runtime.
func WithCodec(codec Codec) SessionOption {
	return newSessionOptFunc("WithCodec", false, func(cfg *SessionConfig) error {
		if codec == nil {
			return ErrCodecNil
		}
		cfg.codec = codec

		return nil
	})
}

// WithPumpInterval sets how often Session.Run pumps the session. It should be between 1 millisecond and 1 second.
//
// The default value is 50 milliseconds.
//
// This option can't be changed at runtime.
func WithPumpInterval(interval time.Duration) SessionOption {
	return newSessionOptFunc("WithPumpInterval", false, func(cfg *SessionConfig) error {
		if interval < time.Millisecond || interval > time.Second {
			return errors.New("pump interval out of range [1ms, 1s]")
		}
		cfg.pumpInterval = interval

		return nil
	})
}

// WithClock sets the time source used for keepalive scheduling.
//
// This option can't be changed at runtime.
func WithClock(clock func() time.Time) SessionOption {
	return newSessionOptFunc("WithClock", false, func(cfg *SessionConfig) error {
		if clock == nil {
			return errors.New("clock is nil")
		}
		cfg.clock = clock

		return nil
	})
}

// WithUnpairHandler sets the handler invoked for inbound "unpair" frames.
//
// This option can be changed at runtime.
func WithUnpairHandler(handler UnpairHandler) SessionOption {
	return newSessionOptFunc("WithUnpairHandler", true, func(cfg *SessionConfig) error {
		cfg.unpairHandler = handler
		return nil
	})
}

// WithLogger sets the logger.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) SessionOption {
	return newSessionOptFunc("WithLogger", false, func(cfg *SessionConfig) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// NormalizeFingerprint lowercases a hex fingerprint and strips colon and space separators.
func NormalizeFingerprint(fingerprint string) string {
	fp := strings.ToLower(strings.TrimSpace(fingerprint))
	return strings.NewReplacer(":", "", " ", "").Replace(fp)
}
