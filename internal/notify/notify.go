// Package notify broadcasts case state-change events to subscribers of a
// case's channel. The Redis backend fans out across processes; the local
// backend serves single-process deployments and tests.
package notify

import (
	"context"
	"encoding/json"
	"time"
)

// Event names carried on a case channel. These names and the payload shapes
// below are the contract with real-time clients.
const (
	EventNewArgument      = "newArgument"
	EventDocumentUploaded = "documentUploaded"
	EventAIDecision       = "aiDecision"
)

// Envelope wraps an event for transport on a case channel.
type Envelope struct {
	Event   string          `json:"event"`
	CaseID  string          `json:"caseId"`
	Payload json.RawMessage `json:"payload"`
}

// NewArgumentPayload accompanies EventNewArgument.
type NewArgumentPayload struct {
	Side     string `json:"side"`
	Argument string `json:"argument"`
	Count    int    `json:"count"`
}

// DocumentUploadedPayload accompanies EventDocumentUploaded.
type DocumentUploadedPayload struct {
	Side  string   `json:"side"`
	Files []string `json:"files"`
}

// AIDecisionPayload accompanies EventAIDecision.
type AIDecisionPayload struct {
	Round     int       `json:"round"`
	Verdict   string    `json:"decision"`
	Reasoning string    `json:"reasoning"`
	CreatedAt time.Time `json:"timestamp"`
}

// Notifier publishes events to, and subscribes to, per-case channels.
type Notifier interface {
	Publish(ctx context.Context, caseID, event string, payload any) error
	// Subscribe returns a channel of envelopes for one case and a cancel
	// function that releases the subscription. The channel is closed after
	// cancel or when the backend shuts down.
	Subscribe(ctx context.Context, caseID string) (<-chan Envelope, func(), error)
}

func envelope(caseID, event string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, CaseID: caseID, Payload: raw}, nil
}
