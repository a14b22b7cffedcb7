package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-duplex/duplex"
	"github.com/arloliu/go-duplex/logger"
	"github.com/arloliu/go-duplex/wstransport"
)

const fullConfig = `
host: api.example.com
port: 443
apiKey: key-1
token: ${TEST_DEVICE_TOKEN}
deviceID: device-1
fingerprint: "AB:CD:EF:01:23:45:67:89:AB:CD:EF:01:23:45:67:89:AB:CD:EF:01"
codec: cbor
pumpInterval: 20ms
keepalive:
  enabled: true
  interval: 10s
queue:
  size: 128
  policy: drop-oldest
transport:
  reconnectInterval: 2s
  handshakeTimeout: 5s
  writeTimeout: 3s
  subprotocol: node
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	require := require.New(t)

	t.Setenv("TEST_DEVICE_TOKEN", "secret-token")

	f, err := Load(writeConfig(t, fullConfig))
	require.NoError(err)

	require.Equal("api.example.com", f.Host)
	require.Equal(443, f.Port)
	require.Equal("key-1", f.APIKey)
	require.Equal("secret-token", f.Token)
	require.Equal("device-1", f.DeviceID)
	require.Equal("cbor", f.Codec)
	require.Equal(20*time.Millisecond, f.PumpInterval)
	require.NotNil(f.Keepalive.Enabled)
	require.True(*f.Keepalive.Enabled)
	require.Equal(10*time.Second, f.Keepalive.Interval)
	require.Equal(128, f.Queue.Size)
	require.Equal("drop-oldest", f.Queue.Policy)
	require.Equal(2*time.Second, f.Transport.ReconnectInterval)
	require.Equal(logger.DebugLevel, f.LogLevel())

	cfg, err := f.SessionConfig(nil)
	require.NoError(err)
	require.Equal("api.example.com", cfg.Host())
	require.Equal("/?type=device&apiKey=key-1", cfg.Query())
	require.Equal("secret-token", cfg.Token())
	require.Equal("abcdef0123456789abcdef0123456789abcdef01", cfg.Fingerprint())
	require.Equal(10*time.Second, cfg.KeepaliveInterval())
	require.Equal(128, cfg.MaxQueueSize())
	require.Equal(duplex.DropOldest, cfg.OverflowPolicy())
	require.Equal("cbor", cfg.Codec().Name())
	require.Equal(20*time.Millisecond, cfg.PumpInterval())

	tcfg, err := wstransport.NewConfig(f.TransportOptions()...)
	require.NoError(err)
	require.Equal(2*time.Second, tcfg.ReconnectInterval())
}

func TestLoad_EnvOverrides(t *testing.T) {
	require := require.New(t)

	t.Setenv("DUPLEX_HOST", "staging.example.com")
	t.Setenv("DUPLEX_PORT", "8443")
	t.Setenv("DUPLEX_TOKEN", "env-token")
	t.Setenv("DUPLEX_DEVICE_ID", "device-2")

	f, err := Load(writeConfig(t, "host: api.example.com\nport: 443\ndeviceID: device-1\ntoken: file-token\n"))
	require.NoError(err)
	require.Equal("staging.example.com", f.Host)
	require.Equal(8443, f.Port)
	require.Equal("env-token", f.Token)
	require.Equal("device-2", f.DeviceID)

	t.Setenv("DUPLEX_PORT", "https")
	_, err = Load(writeConfig(t, "host: api.example.com\nport: 443\ndeviceID: device-1\n"))
	require.Error(err)
}

func TestLoad_Defaults(t *testing.T) {
	require := require.New(t)

	f, err := LoadWithPrefix(writeConfig(t, "host: localhost\nport: 8080\ndeviceID: d1\ntransport:\n  plaintext: true\n"), "TEST_NO_OVERRIDES")
	require.NoError(err)
	require.Equal(logger.InfoLevel, f.LogLevel())

	cfg, err := f.SessionConfig(logger.GetLogger())
	require.NoError(err)
	require.True(cfg.AutoKeepalive())
	require.Equal(5*time.Second, cfg.KeepaliveInterval())
	require.Equal(64, cfg.MaxQueueSize())
	require.Equal(duplex.RejectNew, cfg.OverflowPolicy())
	require.Equal("json", cfg.Codec().Name())
	require.Empty(cfg.Fingerprint())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing host", "port: 443\ndeviceID: d1\n"},
		{"port out of range", "host: h\nport: 70000\ndeviceID: d1\n"},
		{"missing device id", "host: h\nport: 443\n"},
		{"unknown codec", "host: h\nport: 443\ndeviceID: d1\ncodec: xml\n"},
		{"unknown policy", "host: h\nport: 443\ndeviceID: d1\nqueue:\n  policy: fifo\n"},
		{"unknown field", "host: h\nport: 443\ndeviceID: d1\nhostname: x\n"},
		{"bad duration", "host: h\nport: 443\ndeviceID: d1\nkeepalive:\n  interval: soon\n"},
		{"not yaml", "host: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithPrefix(writeConfig(t, tt.content), "TEST_NO_OVERRIDES")
			require.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
