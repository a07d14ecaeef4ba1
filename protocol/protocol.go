// Package protocol defines the JSON envelope exchanged over a world socket
// and the closed set of messages it can carry.
//
// Every frame holds one envelope of the form
//
//	{"worldId": "asdf", "type": "edgeAdded", "data": {...}}
//
// DecodeFrame also accepts several envelopes separated by newlines. Decode turns an envelope into one of the concrete
// Message types below; a type this package does not know becomes Unknown so
// callers handle it in an explicit default arm.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/wricardo/traffic-editor/model"
)

// ErrMalformedMessage is returned for envelopes that cannot be decoded.
var ErrMalformedMessage = errors.New("malformed message")

// Kind is the envelope's type tag.
type Kind string

const (
	KindSnapshot       Kind = "snapshot"
	KindEdgeAdded      Kind = "edgeAdded"
	KindEdgeRemoved    Kind = "edgeRemoved"
	KindVehicleAdded   Kind = "vehicleAdded"
	KindVehicleUpdated Kind = "vehicleUpdated"
	KindVehicleRemoved Kind = "vehicleRemoved"
)

// Envelope is the raw wire form of a message.
type Envelope struct {
	WorldID string          `json:"worldId"`
	Type    Kind            `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message is implemented only by the types in this package.
type Message interface {
	World() string
	Kind() Kind
	isMessage()
}

// SnapshotData is the payload of a snapshot message.
type SnapshotData struct {
	Edges    []model.EdgeData `json:"edges"`
	Vehicles []model.Vehicle  `json:"vehicles"`
}

// Snapshot replaces the whole world.
type Snapshot struct {
	WorldID string
	SnapshotData
}

// EdgeAdded announces a new edge.
type EdgeAdded struct {
	WorldID string
	Edge    model.EdgeData
}

// EdgeRemoved announces that the edge with these endpoints is gone.
type EdgeRemoved struct {
	WorldID string
	Edge    model.EdgeData
}

// VehicleAdded announces a new vehicle.
type VehicleAdded struct {
	WorldID string
	Vehicle model.Vehicle
}

// VehicleUpdated carries new values for a vehicle's mutable fields.
type VehicleUpdated struct {
	WorldID string
	Patch   model.VehiclePatch
}

// VehicleRemoved announces that a vehicle is gone.
type VehicleRemoved struct {
	WorldID string
	ID      model.VehicleID
}

// Unknown is any envelope whose type is not listed above.
type Unknown struct {
	WorldID string
	Type    Kind
	Data    json.RawMessage
}

func (m Snapshot) World() string       { return m.WorldID }
func (m EdgeAdded) World() string      { return m.WorldID }
func (m EdgeRemoved) World() string    { return m.WorldID }
func (m VehicleAdded) World() string   { return m.WorldID }
func (m VehicleUpdated) World() string { return m.WorldID }
func (m VehicleRemoved) World() string { return m.WorldID }
func (m Unknown) World() string        { return m.WorldID }

func (Snapshot) Kind() Kind       { return KindSnapshot }
func (EdgeAdded) Kind() Kind      { return KindEdgeAdded }
func (EdgeRemoved) Kind() Kind    { return KindEdgeRemoved }
func (VehicleAdded) Kind() Kind   { return KindVehicleAdded }
func (VehicleUpdated) Kind() Kind { return KindVehicleUpdated }
func (VehicleRemoved) Kind() Kind { return KindVehicleRemoved }
func (m Unknown) Kind() Kind      { return m.Type }

func (Snapshot) isMessage()       {}
func (EdgeAdded) isMessage()      {}
func (EdgeRemoved) isMessage()    {}
func (VehicleAdded) isMessage()   {}
func (VehicleUpdated) isMessage() {}
func (VehicleRemoved) isMessage() {}
func (Unknown) isMessage()        {}

// Decode parses a single envelope.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return FromEnvelope(env)
}

// DecodeFrame parses every newline-separated envelope in a socket frame.
// An envelope with a bad payload is skipped and the rest still decode; the
// first such error is returned with the messages. Invalid JSON stops decoding
// because the remaining envelopes cannot be delimited.
func DecodeFrame(frame []byte) ([]Message, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	var (
		msgs  []Message
		first error
	)
	for {
		var env Envelope
		err := dec.Decode(&env)
		if err == io.EOF {
			return msgs, first
		}
		if err != nil {
			if first == nil {
				first = fmt.Errorf("%w: %v", ErrMalformedMessage, err)
			}
			return msgs, first
		}
		msg, err := FromEnvelope(env)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		msgs = append(msgs, msg)
	}
}

// FromEnvelope decodes env's data according to its type.
func FromEnvelope(env Envelope) (Message, error) {
	var (
		msg Message
		err error
	)
	switch env.Type {
	case KindSnapshot:
		m := Snapshot{WorldID: env.WorldID}
		err = decodeData(env, &m.SnapshotData)
		msg = m
	case KindEdgeAdded:
		m := EdgeAdded{WorldID: env.WorldID}
		err = decodeData(env, &m.Edge)
		msg = m
	case KindEdgeRemoved:
		m := EdgeRemoved{WorldID: env.WorldID}
		err = decodeData(env, &m.Edge)
		msg = m
	case KindVehicleAdded:
		m := VehicleAdded{WorldID: env.WorldID}
		err = decodeData(env, &m.Vehicle)
		msg = m
	case KindVehicleUpdated:
		m := VehicleUpdated{WorldID: env.WorldID}
		err = decodeData(env, &m.Patch)
		msg = m
	case KindVehicleRemoved:
		m := VehicleRemoved{WorldID: env.WorldID}
		err = decodeData(env, &m.ID)
		msg = m
	case "":
		err = fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		msg = Unknown{WorldID: env.WorldID, Type: env.Type, Data: env.Data}
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeData(env Envelope, v interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedMessage, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Type, err)
	}
	return nil
}

// Encode renders msg as a single envelope.
func Encode(msg Message) ([]byte, error) {
	var data interface{}
	switch m := msg.(type) {
	case Snapshot:
		sd := m.SnapshotData
		if sd.Edges == nil {
			sd.Edges = []model.EdgeData{}
		}
		if sd.Vehicles == nil {
			sd.Vehicles = []model.Vehicle{}
		}
		data = sd
	case EdgeAdded:
		data = m.Edge
	case EdgeRemoved:
		data = m.Edge
	case VehicleAdded:
		data = m.Vehicle
	case VehicleUpdated:
		data = m.Patch
	case VehicleRemoved:
		data = m.ID
	case Unknown:
		return json.Marshal(Envelope{WorldID: m.WorldID, Type: m.Type, Data: m.Data})
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrMalformedMessage, msg)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{WorldID: msg.World(), Type: msg.Kind(), Data: raw})
}
