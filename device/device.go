// Package device provides the device level API of the duplex channel: reading and updating the device
// summary and parms, and subscribing to their updates.
package device

import (
	"context"
	"errors"

	"github.com/arloliu/go-duplex/duplex"
)

// Device tasks.
const (
	TaskGetSummary = "/device/summary/get"
	TaskSetSummary = "/device/summary/set"
	TaskGetParms   = "/device/parms/get"
	TaskSetParms   = "/device/parms/set"
)

// Update events, as announced in subscribe payloads.
const (
	EventSummary = "deviceSummary"
	EventParms   = "deviceParms"
)

// ErrDeviceIDEmpty indicates that a Device was created without a device id.
var ErrDeviceIDEmpty = errors.New("device id is empty")

// Device issues the requests of one device over a duplex Session.
type Device struct {
	session  *duplex.Session
	deviceID string
}

// New creates a Device identified by deviceID on session.
func New(session *duplex.Session, deviceID string) (*Device, error) {
	if session == nil {
		return nil, errors.New("session is nil")
	}

	if deviceID == "" {
		return nil, ErrDeviceIDEmpty
	}

	return &Device{session: session, deviceID: deviceID}, nil
}

// ID returns the device id.
func (d *Device) ID() string {
	return d.deviceID
}

// Session returns the underlying session.
func (d *Device) Session() *duplex.Session {
	return d.session
}

type request struct {
	DeviceID string `json:"deviceID" cbor:"deviceID"`
	Summary  any    `json:"summary,omitempty" cbor:"summary,omitempty"`
	Parms    any    `json:"parms,omitempty" cbor:"parms,omitempty"`
}

type subscribeRequest struct {
	DeviceID string `json:"deviceID" cbor:"deviceID"`
	Event    string `json:"event" cbor:"event"`
	Path     string `json:"path,omitempty" cbor:"path,omitempty"`
}

// GetSummary requests the device summary; handler receives the response.
func (d *Device) GetSummary(handler duplex.ResponseHandler) (duplex.ID, error) {
	return d.session.Send(TaskGetSummary, request{DeviceID: d.deviceID}, handler)
}

// GetParms requests the device parms; handler receives the response.
func (d *Device) GetParms(handler duplex.ResponseHandler) (duplex.ID, error) {
	return d.session.Send(TaskGetParms, request{DeviceID: d.deviceID}, handler)
}

// SetSummary updates the device summary; handler receives the response.
func (d *Device) SetSummary(summary any, handler duplex.ResponseHandler) (duplex.ID, error) {
	return d.session.Send(TaskSetSummary, request{DeviceID: d.deviceID, Summary: summary}, handler)
}

// SetParms updates the device parms; handler receives the response.
func (d *Device) SetParms(parms any, handler duplex.ResponseHandler) (duplex.ID, error) {
	return d.session.Send(TaskSetParms, request{DeviceID: d.deviceID, Parms: parms}, handler)
}

// FetchSummary requests the device summary and waits for the response.
// The session must be pumped by another goroutine.
func (d *Device) FetchSummary(ctx context.Context) (duplex.Payload, error) {
	return d.session.Request(ctx, TaskGetSummary, request{DeviceID: d.deviceID})
}

// FetchParms requests the device parms and waits for the response.
// The session must be pumped by another goroutine.
func (d *Device) FetchParms(ctx context.Context) (duplex.Payload, error) {
	return d.session.Request(ctx, TaskGetParms, request{DeviceID: d.deviceID})
}

// OnSummary subscribes handler to updates of the summary at path; an empty path subscribes to updates
// without a path. The subscription survives reconnects.
func (d *Device) OnSummary(path string, handler duplex.UpdateHandler) (duplex.ID, error) {
	return d.subscribe(EventSummary, path, handler)
}

// OnParms subscribes handler to updates of the parms at path; an empty path subscribes to updates
// without a path. The subscription survives reconnects.
func (d *Device) OnParms(path string, handler duplex.UpdateHandler) (duplex.ID, error) {
	return d.subscribe(EventParms, path, handler)
}

// Unsubscribe cancels a subscription made with OnSummary or OnParms.
func (d *Device) Unsubscribe(subscriptionID duplex.ID) (duplex.ID, error) {
	return d.session.Unsubscribe(subscriptionID, request{DeviceID: d.deviceID})
}

func (d *Device) subscribe(event string, path string, handler duplex.UpdateHandler) (duplex.ID, error) {
	payload := subscribeRequest{DeviceID: d.deviceID, Event: event, Path: path}
	return d.session.Subscribe(event, payload, handler)
}
