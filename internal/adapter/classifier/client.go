// Package classifier is the HTTP adapter for the hosted risk classifier.
// The classifier is an opaque scorer: event description in, severity plus
// score plus rationale out. Validation of the result belongs to the
// pipeline, not here.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

// Client implements domain.Scorer against a JSON-over-HTTP classifier
// endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a classifier client. The timeout bounds the whole
// request; callers may tighten it further per invocation via context.
func NewClient(endpoint, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type classifyRequest struct {
	EventType   string             `json:"event_type"`
	Description string             `json:"event_description"`
	Location    string             `json:"location,omitempty"`
	Coordinates *domain.Coordinate `json:"coordinates,omitempty"`
}

type classifyResponse struct {
	Severity  string `json:"severity"`
	RiskScore int    `json:"risk_score"`
	Reasoning string `json:"reasoning"`
}

// Classify sends the event's descriptive fields to the classifier and
// returns its raw judgment.
func (c *Client) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.RiskJudgment, error) {
	body, err := json.Marshal(classifyRequest{
		EventType:   req.EventType,
		Description: req.Description,
		Location:    req.Location,
		Coordinates: req.Coordinates,
	})
	if err != nil {
		return domain.RiskJudgment{}, fmt.Errorf("marshal classify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.RiskJudgment{}, fmt.Errorf("create classify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.RiskJudgment{}, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RiskJudgment{}, fmt.Errorf("classifier error: status %d: %s", resp.StatusCode, msg)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RiskJudgment{}, fmt.Errorf("decode classifier response: %w", err)
	}

	return domain.RiskJudgment{
		Severity:  out.Severity,
		RiskScore: out.RiskScore,
		Reasoning: out.Reasoning,
	}, nil
}
