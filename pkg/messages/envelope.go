// Package messages defines the wire types exchanged between the detector,
// the analyzer and the gateway.
package messages

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope contains metadata common to all messages for tracing and security.
type Envelope struct {
	// Identity
	MessageID     string `json:"message_id"`
	CorrelationID string `json:"correlation_id"` // Chain tracking across services
	CausationID   string `json:"causation_id"`   // Parent message that caused this

	// Routing
	Source     string `json:"source"`      // Service ID that sent this message
	SourceType string `json:"source_type"` // Service type (detector, analyzer, ...)

	// Timing
	Timestamp time.Time `json:"timestamp"`

	// Security
	Signature string `json:"signature,omitempty"` // HMAC-SHA256 of payload
}

// NewEnvelope creates a new envelope with a generated message ID.
func NewEnvelope(source, sourceType string) Envelope {
	return Envelope{
		MessageID:  uuid.New().String(),
		Source:     source,
		SourceType: sourceType,
		Timestamp:  time.Now().UTC(),
	}
}

// WithCorrelation sets the correlation and causation IDs.
func (e Envelope) WithCorrelation(correlationID, causationID string) Envelope {
	e.CorrelationID = correlationID
	e.CausationID = causationID
	return e
}

// Sign generates an HMAC signature for the message payload.
func (e *Envelope) Sign(payload []byte, secret []byte) {
	h := hmac.New(sha256.New, secret)
	h.Write(payload)
	e.Signature = hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks the HMAC signature.
func (e *Envelope) VerifySignature(payload []byte, secret []byte) bool {
	expected := hmac.New(sha256.New, secret)
	expected.Write(payload)
	expectedSig := hex.EncodeToString(expected.Sum(nil))
	return hmac.Equal([]byte(e.Signature), []byte(expectedSig))
}

// Message is the interface implemented by all published message types.
type Message interface {
	GetEnvelope() Envelope
	SetEnvelope(Envelope)
	Subject() string
}

// MarshalWithSignature marshals the message and signs it.
func MarshalWithSignature(msg Message, secret []byte) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	env := msg.GetEnvelope()
	env.Sign(data, secret)
	msg.SetEnvelope(env)

	return json.Marshal(msg)
}
