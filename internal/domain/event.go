package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the processing state of an event. NEW is the only initial
// state; ASSESSED and ERROR are terminal and never reopened by the
// pipeline. A re-ingested occurrence creates a new record instead.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAssessed Status = "ASSESSED"
	StatusError    Status = "ERROR"
)

// ParseStatus validates a status string supplied by an external caller.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusNew:
		return StatusNew, nil
	case StatusAssessed:
		return StatusAssessed, nil
	case StatusError:
		return StatusError, nil
	}
	return "", fmt.Errorf("unknown event status %q", s)
}

// Severity is the ordinal label produced by the risk classifier.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalizes a classifier label. Labels outside the known
// set are rejected so classifier drift surfaces as an ERROR transition
// instead of a silently stored unknown value.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	}
	return "", fmt.Errorf("%w: unrecognized severity %q", ErrScorerInvalidResult, s)
}

// RiskAssessment is the enrichment written by the pipeline when an event
// reaches ASSESSED. Present if and only if Status == StatusAssessed.
type RiskAssessment struct {
	Severity  Severity `json:"severity"`
	RiskScore int      `json:"risk_score"` // 0–100
	Reasoning string   `json:"reasoning,omitempty"`
}

// Validate enforces the score range and the label set. Out-of-range
// scores are rejected, never clamped, so scorer misbehavior stays visible.
func (r RiskAssessment) Validate() error {
	if r.RiskScore < 0 || r.RiskScore > 100 {
		return fmt.Errorf("%w: risk_score %d outside [0,100]", ErrScorerInvalidResult, r.RiskScore)
	}
	if _, err := ParseSeverity(string(r.Severity)); err != nil {
		return err
	}
	return nil
}

// Event is a single hazard occurrence moving through the pipeline.
//
// ID is the store record id and is unique. EventID is the source-scoped
// identifier; it may collide across sources, so it is descriptive only
// and never used as a store key.
type Event struct {
	ID          string      `json:"id"`
	EventID     string      `json:"event_id"`
	Type        string      `json:"type"`
	Location    string      `json:"location,omitempty"`
	Description string      `json:"description,omitempty"`
	Source      string      `json:"source"`
	OccurredAt  time.Time   `json:"timestamp"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`

	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	AssessedAt   time.Time `json:"assessed_at,omitzero"`
	ErrorMessage string    `json:"error_message,omitempty"`

	Risk *RiskAssessment `json:"risk_assessment,omitempty"`
}

// RiskScore returns the assessed score, or 0 for unassessed events.
func (e Event) RiskScore() int {
	if e.Risk == nil {
		return 0
	}
	return e.Risk.RiskScore
}

// Sentinel errors for the failure kinds the service distinguishes.
var (
	// ErrEventNotFound indicates a store read for an id that does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrScorerInvalidResult indicates an out-of-range score or an
	// unrecognized severity label from the classifier.
	ErrScorerInvalidResult = errors.New("invalid scorer result")

	// ErrInvalidCoordinate indicates a latitude/longitude pair that is not
	// valid under any ordering convention.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrMapsUnavailable indicates the mapping provider could not serve a
	// places or routing request. Safety queries fail whole rather than
	// returning a partial verdict.
	ErrMapsUnavailable = errors.New("mapping provider unavailable")
)
