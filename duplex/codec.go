package duplex

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Header is the routing part of every frame.
type Header struct {
	ID   ID     `json:"id" cbor:"id"`
	Task string `json:"task" cbor:"task"`
}

// Frame is a decoded envelope. Payload holds the raw, still encoded, payload value.
type Frame struct {
	Header  Header
	Payload []byte
}

// Codec encodes payload values and frames for the wire.
//
// Raw payload bytes produced by Marshal are embedded as-is by EncodeFrame, and DecodeFrame hands back
// the raw payload bytes of an inbound frame without decoding them.
type Codec interface {
	// Name returns the codec name, e.g. "json".
	Name() string
	// Binary reports whether encoded frames are binary rather than text.
	Binary() bool
	// Marshal encodes a payload value. A nil value encodes to nil, meaning "no payload".
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes a raw payload into v.
	Unmarshal(data []byte, v any) error
	// Split decodes a raw object payload into its raw members.
	Split(data []byte) (map[string][]byte, error)
	// IsNull reports whether a raw payload is empty or the encoded null value.
	IsNull(data []byte) bool
	// EncodeFrame encodes the envelope around an already encoded payload.
	EncodeFrame(header Header, payload []byte) ([]byte, error)
	// DecodeFrame decodes an envelope. Malformed frames yield an error wrapping ErrDecodeFailure.
	DecodeFrame(data []byte) (*Frame, error)
}

// JSONCodec is the default Codec. It produces the text envelope the endpoint expects.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

type jsonEnvelope struct {
	Header  Header          `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type jsonInbound struct {
	Header *struct {
		ID   *ID     `json:"id"`
		Task *string `json:"task"`
	} `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c JSONCodec) Split(data []byte) (map[string][]byte, error) {
	if c.IsNull(data) {
		return map[string][]byte{}, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(members))
	for k, v := range members {
		out[k] = v
	}

	return out, nil
}

func (JSONCodec) IsNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (JSONCodec) EncodeFrame(header Header, payload []byte) ([]byte, error) {
	return json.Marshal(jsonEnvelope{Header: header, Payload: payload})
}

func (c JSONCodec) DecodeFrame(data []byte) (*Frame, error) {
	var in jsonInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	if in.Header == nil || in.Header.ID == nil || in.Header.Task == nil || *in.Header.Task == "" {
		return nil, fmt.Errorf("%w: header requires id and task", ErrDecodeFailure)
	}

	frame := &Frame{Header: Header{ID: *in.Header.ID, Task: *in.Header.Task}}
	if !c.IsNull(in.Payload) {
		frame.Payload = in.Payload
	}

	return frame, nil
}

// CBORCodec carries the same envelope as JSONCodec in CBOR (RFC 8949), for endpoints reached over a
// binary capable transport.
type CBORCodec struct{}

var _ Codec = CBORCodec{}

type cborEnvelope struct {
	Header  Header          `cbor:"header"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

type cborInbound struct {
	Header *struct {
		ID   *ID     `cbor:"id"`
		Task *string `cbor:"task"`
	} `cbor:"header"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// cborNull is the encoded CBOR null simple value.
const cborNull = 0xf6

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Binary() bool { return true }

func (CBORCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return cbor.Marshal(v)
}

func (CBORCodec) Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func (c CBORCodec) Split(data []byte) (map[string][]byte, error) {
	if c.IsNull(data) {
		return map[string][]byte{}, nil
	}

	var members map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &members); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(members))
	for k, v := range members {
		out[k] = v
	}

	return out, nil
}

func (CBORCodec) IsNull(data []byte) bool {
	return len(data) == 0 || (len(data) == 1 && data[0] == cborNull)
}

func (CBORCodec) EncodeFrame(header Header, payload []byte) ([]byte, error) {
	return cbor.Marshal(cborEnvelope{Header: header, Payload: payload})
}

func (c CBORCodec) DecodeFrame(data []byte) (*Frame, error) {
	var in cborInbound
	if err := cbor.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	if in.Header == nil || in.Header.ID == nil || in.Header.Task == nil || *in.Header.Task == "" {
		return nil, fmt.Errorf("%w: header requires id and task", ErrDecodeFailure)
	}

	frame := &Frame{Header: Header{ID: *in.Header.ID, Task: *in.Header.Task}}
	if !c.IsNull(in.Payload) {
		frame.Payload = in.Payload
	}

	return frame, nil
}

// Payload is an encoded payload value together with the codec that can decode it.
// The zero Payload is empty.
type Payload struct {
	raw   []byte
	codec Codec
}

// NewPayload wraps raw bytes encoded by codec.
func NewPayload(codec Codec, raw []byte) Payload {
	return Payload{raw: raw, codec: codec}
}

// Raw returns the encoded bytes.
func (p Payload) Raw() []byte { return p.raw }

// IsEmpty reports whether the payload is absent or null.
func (p Payload) IsEmpty() bool {
	if p.codec == nil {
		return len(p.raw) == 0
	}

	return p.codec.IsNull(p.raw)
}

// Decode decodes the payload into v.
func (p Payload) Decode(v any) error {
	if p.IsEmpty() {
		return ErrEmptyPayload
	}

	return p.codec.Unmarshal(p.raw, v)
}

// Field returns the member name of an object payload.
func (p Payload) Field(name string) (Payload, bool) {
	if p.IsEmpty() {
		return Payload{}, false
	}

	members, err := p.codec.Split(p.raw)
	if err != nil {
		return Payload{}, false
	}

	raw, ok := members[name]
	if !ok {
		return Payload{}, false
	}

	return Payload{raw: raw, codec: p.codec}, true
}

// String returns the payload as text; binary payloads are hex encoded.
func (p Payload) String() string {
	if p.codec != nil && p.codec.Binary() {
		return hex.EncodeToString(p.raw)
	}

	return string(p.raw)
}
