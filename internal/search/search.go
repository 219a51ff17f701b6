// Package search finds cases by argument and verdict text. Meilisearch is
// used when configured and healthy; otherwise queries fall back to Postgres.
package search

import "time"

const (
	KindArgument = "argument"
	KindDecision = "decision"
)

// Query is one search request.
type Query struct {
	Text  string
	Limit int
}

// Result is one matching case record fragment.
type Result struct {
	CaseID    string    `json:"caseId"`
	Kind      string    `json:"kind"`
	Side      string    `json:"side,omitempty"`
	Snippet   string    `json:"snippet"`
	CreatedAt time.Time `json:"createdAt"`
}

// Response is the payload returned to the API layer.
type Response struct {
	Results []Result `json:"results"`
	Total   int64    `json:"total"`
	Query   string   `json:"query"`
}

// ArgumentRecord is the indexable form of one submitted argument.
type ArgumentRecord struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId"`
	Side      string    `json:"side"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// DecisionRecord is the indexable form of one judgment decision.
type DecisionRecord struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"caseId"`
	Round     int       `json:"round"`
	Verdict   string    `json:"verdict"`
	Reasoning string    `json:"reasoning"`
	CreatedAt time.Time `json:"createdAt"`
}
