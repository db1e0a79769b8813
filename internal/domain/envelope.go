package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the unit that travels through the work queue: a point-in-time
// copy of what the worker needs to execute. Status and CreatedAt are snapshots
// taken at submission and are never read back as authoritative state.
type Envelope struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Encode serializes the envelope to the UTF-8 JSON wire format.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope parses an envelope from its wire format. An envelope without
// a job id is rejected: there is no record it could ever be matched to.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("envelope has no job id")
	}
	return &env, nil
}
