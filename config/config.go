// Package config loads the device configuration file and translates it into duplex session and
// websocket transport options.
//
// A minimal file:
//
//	host: api.example.com
//	port: 443
//	apiKey: my-api-key
//	token: ${DEVICE_TOKEN}
//	deviceID: device-1
//
// Environment variables named <prefix>_HOST, <prefix>_PORT, <prefix>_API_KEY, <prefix>_TOKEN and
// <prefix>_DEVICE_ID override the file values; the default prefix is DUPLEX.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-duplex/duplex"
	"github.com/arloliu/go-duplex/logger"
	"github.com/arloliu/go-duplex/wstransport"
)

// DefaultEnvPrefix is the prefix of the environment overrides.
const DefaultEnvPrefix = "DUPLEX"

// File is the device configuration file.
type File struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"apiKey"`
	Token       string `yaml:"token"`
	DeviceID    string `yaml:"deviceID"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	Codec       string `yaml:"codec,omitempty"`

	Keepalive Keepalive `yaml:"keepalive"`
	Queue     Queue     `yaml:"queue"`
	Transport Transport `yaml:"transport"`
	Log       Log       `yaml:"log"`

	// PumpInterval overrides how often the session is pumped.
	PumpInterval time.Duration `yaml:"pumpInterval,omitempty"`
}

// Keepalive configures the keepalive request.
type Keepalive struct {
	Enabled  *bool         `yaml:"enabled,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Queue configures the outbound queue.
type Queue struct {
	Size   int    `yaml:"size,omitempty"`
	Policy string `yaml:"policy,omitempty"`
}

// Transport configures the websocket transport.
type Transport struct {
	ReconnectInterval time.Duration `yaml:"reconnectInterval,omitempty"`
	HandshakeTimeout  time.Duration `yaml:"handshakeTimeout,omitempty"`
	WriteTimeout      time.Duration `yaml:"writeTimeout,omitempty"`
	Plaintext         bool          `yaml:"plaintext,omitempty"`
	Subprotocol       string        `yaml:"subprotocol,omitempty"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level,omitempty"`
}

// Load reads the configuration file at path, applies the DUPLEX_* environment overrides and validates it.
func Load(path string) (*File, error) {
	return LoadWithPrefix(path, DefaultEnvPrefix)
}

// LoadWithPrefix is like Load with a custom environment variable prefix.
func LoadWithPrefix(path string, envPrefix string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := f.applyEnvOverrides(envPrefix); err != nil {
		return nil, err
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// Parse decodes a YAML document. ${VAR} references are expanded from the environment first.
// Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	var f File
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &f, nil
}

// Validate checks the fields that have no usable default.
func (f *File) Validate() error {
	var errs []error

	if f.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}

	if f.Port < 1 || f.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range [1, 65535]", f.Port))
	}

	if f.DeviceID == "" {
		errs = append(errs, errors.New("deviceID is required"))
	}

	if f.Codec != "" && f.Codec != "json" && f.Codec != "cbor" {
		errs = append(errs, fmt.Errorf("unknown codec %q", f.Codec))
	}

	if _, err := duplex.ParseOverflowPolicy(f.Queue.Policy); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LogLevel returns the configured log level, info by default.
func (f *File) LogLevel() logger.LogLevel {
	return logger.ParseLevel(f.Log.Level)
}

// SessionOptions returns the duplex session options described by the file.
func (f *File) SessionOptions() []duplex.SessionOption {
	opts := []duplex.SessionOption{
		duplex.WithAPIKey(f.APIKey),
		duplex.WithToken(f.Token),
	}

	if f.Fingerprint != "" {
		opts = append(opts, duplex.WithFingerprint(f.Fingerprint))
	}

	if f.Keepalive.Enabled != nil {
		opts = append(opts, duplex.WithAutoKeepalive(*f.Keepalive.Enabled))
	}

	if f.Keepalive.Interval > 0 {
		opts = append(opts, duplex.WithKeepaliveInterval(f.Keepalive.Interval))
	}

	if f.Queue.Size > 0 {
		opts = append(opts, duplex.WithMaxQueueSize(f.Queue.Size))
	}

	if policy, err := duplex.ParseOverflowPolicy(f.Queue.Policy); err == nil {
		opts = append(opts, duplex.WithOverflowPolicy(policy))
	}

	if f.Codec == "cbor" {
		opts = append(opts, duplex.WithCodec(duplex.CBORCodec{}))
	}

	if f.PumpInterval > 0 {
		opts = append(opts, duplex.WithPumpInterval(f.PumpInterval))
	}

	return opts
}

// TransportOptions returns the websocket transport options described by the file.
func (f *File) TransportOptions() []wstransport.Option {
	opts := []wstransport.Option{
		wstransport.WithPlaintext(f.Transport.Plaintext),
		wstransport.WithBinaryMessages(f.Codec == "cbor"),
	}

	if f.Transport.ReconnectInterval > 0 {
		opts = append(opts, wstransport.WithReconnectInterval(f.Transport.ReconnectInterval))
	}

	if f.Transport.HandshakeTimeout > 0 {
		opts = append(opts, wstransport.WithHandshakeTimeout(f.Transport.HandshakeTimeout))
	}

	if f.Transport.WriteTimeout > 0 {
		opts = append(opts, wstransport.WithWriteTimeout(f.Transport.WriteTimeout))
	}

	if f.Transport.Subprotocol != "" {
		opts = append(opts, wstransport.WithSubprotocol(f.Transport.Subprotocol))
	}

	return opts
}

// SessionConfig builds the duplex session configuration, with l as the session logger when not nil.
func (f *File) SessionConfig(l logger.Logger) (*duplex.SessionConfig, error) {
	opts := f.SessionOptions()
	if l != nil {
		opts = append(opts, duplex.WithLogger(l))
	}

	return duplex.NewSessionConfig(f.Host, f.Port, opts...)
}

func (f *File) applyEnvOverrides(prefix string) error {
	if val := os.Getenv(prefix + "_HOST"); val != "" {
		f.Host = val
	}

	if val := os.Getenv(prefix + "_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s_PORT: %w", prefix, err)
		}
		f.Port = port
	}

	if val := os.Getenv(prefix + "_API_KEY"); val != "" {
		f.APIKey = val
	}

	if val := os.Getenv(prefix + "_TOKEN"); val != "" {
		f.Token = val
	}

	if val := os.Getenv(prefix + "_DEVICE_ID"); val != "" {
		f.DeviceID = val
	}

	return nil
}
