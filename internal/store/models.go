package store

import "time"

// Side identifiers as they appear in case records and API paths.
const (
	SideA = "sideA"
	SideB = "sideB"
)

// ValidSide reports whether s names one of the two parties to a case.
func ValidSide(s string) bool {
	return s == SideA || s == SideB
}

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Argument is one free-text submission by a side. Immutable once recorded.
type Argument struct {
	Side      string    `json:"side"`
	Body      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// DocumentRef is an opaque reference to an uploaded evidence object.
type DocumentRef struct {
	Side      string    `json:"side"`
	ObjectRef string    `json:"ref"`
	CreatedAt time.Time `json:"timestamp"`
}

// Decision is one judgment result. Round is its 1-based position in the
// case's decision history.
type Decision struct {
	Round     int       `json:"round"`
	Verdict   string    `json:"decision"`
	Reasoning string    `json:"reasoning"`
	CreatedAt time.Time `json:"timestamp"`
}

// SideRecord holds one party's accumulated documents and arguments in
// submission order.
type SideRecord struct {
	Documents []DocumentRef `json:"documents"`
	Arguments []Argument    `json:"arguments"`
}

type Case struct {
	CaseID        string     `json:"caseId"`
	OwnerID       string     `json:"-"`
	Status        string     `json:"status"`
	ArgumentCount int        `json:"argumentCount"`
	SideA         SideRecord `json:"sideA"`
	SideB         SideRecord `json:"sideB"`
	Decisions     []Decision `json:"aiDecisions"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CaseSummary is the list-view projection of a case.
type CaseSummary struct {
	CaseID        string    `json:"caseId"`
	Status        string    `json:"status"`
	ArgumentCount int       `json:"argumentCount"`
	DocumentCount int       `json:"documentCount"`
	DecisionCount int       `json:"decisionCount"`
	LastVerdict   string    `json:"lastVerdict,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
