package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

func oracleServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OracleScorer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	scorer := NewOracleScorer(OracleScorerConfig{
		Endpoint: srv.URL,
		ApiKey:   "test-key",
		Model:    "test-model",
		Timeout:  2 * time.Second,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, scorer
}

func chatReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(reply)
	return string(data)
}

func testPair() domain.CandidatePair {
	return domain.CandidatePair{
		A: listing(domain.VenuePolymarket, "1", "Will Bitcoin reach $100k?", "crypto"),
		B: listing(domain.VenueKalshi, "2", "Bitcoin above $100k this year", "financials"),
	}
}

func TestOracleScorerParsesVerdict(t *testing.T) {
	_, scorer := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: model=%q messages=%d", req.Model, len(req.Messages))
		}
		fmt.Fprint(w, chatReply(`{"confidence": 0.85, "reasoning": "same event"}`))
	})

	v := scorer.Score(context.Background(), testPair())
	if v.Confidence != 0.85 || !v.IsEquivalent || v.Reasoning != "same event" {
		t.Errorf("verdict = %+v, want confidence 0.85, equivalent, reasoning %q", v, "same event")
	}
	if v.Degraded {
		t.Error("successful call marked degraded")
	}
}

func TestOracleScorerThreshold(t *testing.T) {
	_, scorer := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`{"confidence": 0.74, "reasoning": "related but not identical"}`))
	})

	v := scorer.Score(context.Background(), testPair())
	if v.IsEquivalent {
		t.Errorf("confidence 0.74 judged equivalent, threshold is 0.75")
	}
	if v.Confidence != 0.74 {
		t.Errorf("Confidence = %v, want 0.74", v.Confidence)
	}
}

func TestOracleScorerTolerantOfCodeFences(t *testing.T) {
	_, scorer := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("```json\n{\"confidence\": 0.9, \"reasoning\": \"identical\"}\n```"))
	})

	v := scorer.Score(context.Background(), testPair())
	if v.Confidence != 0.9 || !v.IsEquivalent {
		t.Errorf("verdict = %+v, want confidence 0.9 equivalent", v)
	}
}

// Every failure mode must degrade to a zero-confidence non-equivalent verdict
// instead of surfacing an error.
func TestOracleScorerFailureContainment(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json at all")
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"choices": []}`)
			},
		},
		{
			name: "unparsable verdict",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chatReply("I think they are probably the same market."))
			},
		},
		{
			name: "missing confidence",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chatReply(`{"reasoning": "no number given"}`))
			},
		},
		{
			name: "confidence out of range",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chatReply(`{"confidence": 1.7, "reasoning": "overconfident"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, scorer := oracleServer(t, tt.handler)
			v := scorer.Score(context.Background(), testPair())
			if v.IsEquivalent {
				t.Error("failed call judged equivalent")
			}
			if v.Confidence != 0 {
				t.Errorf("Confidence = %v, want 0", v.Confidence)
			}
			if !strings.Contains(v.Reasoning, "oracle failure") {
				t.Errorf("Reasoning = %q, want oracle failure diagnostic", v.Reasoning)
			}
			if !v.Degraded {
				t.Error("failed call not marked degraded")
			}
		})
	}
}

func TestOracleScorerTransportFailure(t *testing.T) {
	srv, scorer := oracleServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from now on

	v := scorer.Score(context.Background(), testPair())
	if v.IsEquivalent || v.Confidence != 0 || !v.Degraded {
		t.Errorf("verdict = %+v, want contained degraded failure", v)
	}
}
