package classifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-safety-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Classify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Flood", req.EventType)
		assert.Contains(t, req.Description, "water levels")

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(classifyResponse{
			Severity:  "High",
			RiskScore: 78,
			Reasoning: "Rapidly rising water near a populated area.",
		}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", 5*time.Second, testLogger())
	judgment, err := c.Classify(context.Background(), domain.ClassifyRequest{
		EventType:   "Flood",
		Description: "Rising water levels reported near George Street.",
		Location:    "New Brunswick, NJ",
	})
	require.NoError(t, err)

	assert.Equal(t, "High", judgment.Severity)
	assert.Equal(t, 78, judgment.RiskScore)
	assert.NotEmpty(t, judgment.Reasoning)
}

func TestClient_Classify_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, testLogger())
	_, err := c.Classify(context.Background(), domain.ClassifyRequest{EventType: "Fire"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestClient_Classify_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "", time.Minute, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Classify(ctx, domain.ClassifyRequest{EventType: "Fire"})
	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestClient_Classify_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, testLogger())
	_, err := c.Classify(context.Background(), domain.ClassifyRequest{EventType: "Flood"})
	assert.Error(t, err)
}
