package duplex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONCodec_EncodeFrame(t *testing.T) {
	require := require.New(t)

	codec := JSONCodec{}
	payload, err := codec.Marshal(map[string]any{"deviceID": "d1"})
	require.NoError(err)

	data, err := codec.EncodeFrame(Header{ID: 42, Task: "/device/summary/get"}, payload)
	require.NoError(err)
	require.JSONEq(`{"header":{"id":42,"task":"/device/summary/get"},"payload":{"deviceID":"d1"}}`, string(data))

	// a keepalive has no payload member at all
	data, err = codec.EncodeFrame(Header{ID: 7, Task: TaskPing}, nil)
	require.NoError(err)
	require.JSONEq(`{"header":{"id":7,"task":"ping"}}`, string(data))
}

func TestJSONCodec_DecodeFrame(t *testing.T) {
	codec := JSONCodec{}

	t.Run("valid", func(t *testing.T) {
		require := require.New(t)

		frame, err := codec.DecodeFrame([]byte(`{"header":{"id":4294967297,"task":"/device/summary/get"},"payload":{"ok":true}}`))
		require.NoError(err)
		require.Equal(ID(4294967297), frame.Header.ID)
		require.Equal("/device/summary/get", frame.Header.Task)
		require.JSONEq(`{"ok":true}`, string(frame.Payload))
	})

	t.Run("missing or null payload", func(t *testing.T) {
		require := require.New(t)

		frame, err := codec.DecodeFrame([]byte(`{"header":{"id":1,"task":"ping"}}`))
		require.NoError(err)
		require.Nil(frame.Payload)

		frame, err = codec.DecodeFrame([]byte(`{"header":{"id":1,"task":"ping"},"payload":null}`))
		require.NoError(err)
		require.Nil(frame.Payload)
	})

	malformed := map[string]string{
		"not json":        `{"header":`,
		"not an object":   `[1,2,3]`,
		"no header":       `{"payload":{}}`,
		"no id":           `{"header":{"task":"x"}}`,
		"string id":       `{"header":{"id":"1","task":"x"}}`,
		"negative id":     `{"header":{"id":-1,"task":"x"}}`,
		"fractional id":   `{"header":{"id":1.5,"task":"x"}}`,
		"no task":         `{"header":{"id":1}}`,
		"empty task":      `{"header":{"id":1,"task":""}}`,
		"non-string task": `{"header":{"id":1,"task":5}}`,
	}
	for name, input := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := codec.DecodeFrame([]byte(input))
			require.ErrorIs(t, err, ErrDecodeFailure)
		})
	}
}

func TestJSONCodec_Split(t *testing.T) {
	require := require.New(t)

	codec := JSONCodec{}
	members, err := codec.Split([]byte(`{"event":"deviceSummary","path":"p1","update":{"x":1}}`))
	require.NoError(err)
	require.JSONEq(`{"x":1}`, string(members["update"]))

	var event string
	require.NoError(codec.Unmarshal(members["event"], &event))
	require.Equal("deviceSummary", event)

	members, err = codec.Split(nil)
	require.NoError(err)
	require.Empty(members)

	_, err = codec.Split([]byte(`"text"`))
	require.Error(err)
}

func TestCBORCodec_RoundTrip(t *testing.T) {
	require := require.New(t)

	codec := CBORCodec{}
	require.True(codec.Binary())

	payload, err := codec.Marshal(map[string]any{"deviceID": "d1"})
	require.NoError(err)

	data, err := codec.EncodeFrame(Header{ID: 99, Task: "/device/parms/get"}, payload)
	require.NoError(err)

	frame, err := codec.DecodeFrame(data)
	require.NoError(err)
	require.Equal(Header{ID: 99, Task: "/device/parms/get"}, frame.Header)

	var decoded map[string]string
	require.NoError(codec.Unmarshal(frame.Payload, &decoded))
	require.Equal("d1", decoded["deviceID"])

	data, err = codec.EncodeFrame(Header{ID: 100, Task: TaskPing}, nil)
	require.NoError(err)
	frame, err = codec.DecodeFrame(data)
	require.NoError(err)
	require.Nil(frame.Payload)

	_, err = codec.DecodeFrame([]byte{0xff, 0x00})
	require.ErrorIs(err, ErrDecodeFailure)

	noHeader, err := codec.Marshal(map[string]any{"payload": 1})
	require.NoError(err)
	_, err = codec.DecodeFrame(noHeader)
	require.ErrorIs(err, ErrDecodeFailure)
}

func TestPayload(t *testing.T) {
	require := require.New(t)

	var zero Payload
	require.True(zero.IsEmpty())
	require.ErrorIs(zero.Decode(&struct{}{}), ErrEmptyPayload)

	p := NewPayload(JSONCodec{}, json.RawMessage(`{"event":"data","update":{"x":1}}`))
	require.False(p.IsEmpty())

	update, ok := p.Field("update")
	require.True(ok)
	require.JSONEq(`{"x":1}`, update.String())

	var v struct{ X int }
	require.NoError(update.Decode(&v))
	require.Equal(1, v.X)

	_, ok = p.Field("missing")
	require.False(ok)

	require.True(NewPayload(JSONCodec{}, []byte("null")).IsEmpty())
	require.Equal("f6", NewPayload(CBORCodec{}, []byte{0xf6}).String())
}
