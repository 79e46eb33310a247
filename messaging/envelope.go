package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the envelope format version.
const Version = 1

// TypeDeviceAlert is the inbound alarm envelope type.
const TypeDeviceAlert = "device.alert"

// Envelope wraps every message on the bus.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Client    string          `json:"client,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"p"`
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, clientCode string, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return &Envelope{
		Version:   Version,
		Type:      msgType,
		ID:        uuid.New().String(),
		Client:    clientCode,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the raw payload into target.
func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// DecodeEnvelope parses an envelope and checks its version and type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope %s has no type", env.ID)
	}
	return &env, nil
}
