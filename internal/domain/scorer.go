package domain

import "context"

// ClassifyRequest carries the descriptive event fields handed to the risk
// classifier. Coordinates are optional context.
type ClassifyRequest struct {
	EventType   string
	Description string
	Location    string
	Coordinates *Coordinate
}

// RiskJudgment is the raw classifier output before validation. The
// pipeline, not the adapter, decides whether a judgment is acceptable.
type RiskJudgment struct {
	Severity  string
	RiskScore int
	Reasoning string
}

// Scorer is the opaque risk-classification capability. Implementations
// must honor the context deadline; an expired deadline is a scorer
// failure, never a hang.
type Scorer interface {
	Classify(ctx context.Context, req ClassifyRequest) (RiskJudgment, error)
}
