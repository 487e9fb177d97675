package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// oracleEquivalenceThreshold is deliberately higher than the heuristic's:
// oracle false positives manufacture phantom arbitrage, so the bar is raised.
const oracleEquivalenceThreshold = 0.75

// oracleRubric is the fixed evaluation rubric sent with every request.
const oracleRubric = `You compare two prediction-market listings from different venues and judge whether they resolve on the same real-world event.

Scoring rubric:
- Identical event, timeframe, and resolution criteria: confidence >= 0.9
- Same core event, different wording: confidence 0.7-0.8
- Related but different timeframe or scope: confidence around 0.7
- Same topic but different outcome being priced: confidence <= 0.5

Respond with ONLY a JSON object: {"confidence": <number 0..1>, "reasoning": "<one sentence>"}`

// OracleScorerConfig configures the remote reasoning scorer.
type OracleScorerConfig struct {
	Endpoint string // chat-completions URL, e.g. "https://api.openai.com/v1/chat/completions"
	ApiKey   string
	Model    string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// OracleScorer delegates equivalence judgment to an external reasoning
// service. One pair in, one verdict out; rate limiting and retries belong to
// the caller. Every failure mode (transport, non-2xx, malformed body,
// out-of-range confidence) degrades to a zero-confidence non-equivalent
// verdict so a flaky oracle can never abort a batch pass.
type OracleScorer struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOracleScorer creates an OracleScorer.
func NewOracleScorer(cfg OracleScorerConfig) *OracleScorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &OracleScorer{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.ApiKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger.With(slog.String("component", "oracle_scorer")),
	}
}

// Name returns the scorer identifier.
func (o *OracleScorer) Name() string { return "oracle" }

// chat-completions wire types.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// oracleVerdict is the structured payload the model must return.
type oracleVerdict struct {
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Score sends both listings and the rubric to the reasoning service and
// parses the structured verdict. It never returns an error: failures yield
// a Degraded verdict with confidence 0, not equivalent, and the diagnostic
// in Reasoning.
func (o *OracleScorer) Score(ctx context.Context, pair domain.CandidatePair) domain.EquivalenceVerdict {
	verdict, err := o.call(ctx, pair)
	if err != nil {
		o.logger.WarnContext(ctx, "oracle call failed, treating pair as not equivalent",
			slog.String("listing_a", string(pair.A.Ref())),
			slog.String("listing_b", string(pair.B.Ref())),
			slog.String("error", err.Error()),
		)
		return domain.EquivalenceVerdict{
			Confidence:   0,
			IsEquivalent: false,
			Reasoning:    fmt.Sprintf("oracle failure: %v", err),
			Degraded:     true,
		}
	}
	return verdict
}

func (o *OracleScorer) call(ctx context.Context, pair domain.CandidatePair) (domain.EquivalenceVerdict, error) {
	reqBody := chatRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: oracleRubric},
			{Role: "user", Content: formatPair(pair)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: response has no choices")
	}

	return parseOracleVerdict(cr.Choices[0].Message.Content)
}

// parseOracleVerdict decodes the model's JSON verdict, tolerating code fences
// around the object but nothing else.
func parseOracleVerdict(content string) (domain.EquivalenceVerdict, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var ov oracleVerdict
	if err := json.Unmarshal([]byte(content), &ov); err != nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: unparsable verdict %q: %w", truncate(content, 200), err)
	}
	if ov.Confidence == nil {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: verdict missing confidence")
	}
	conf := *ov.Confidence
	if conf < 0 || conf > 1 {
		return domain.EquivalenceVerdict{}, fmt.Errorf("oracle: confidence %g out of range", conf)
	}

	return domain.EquivalenceVerdict{
		Confidence:   conf,
		IsEquivalent: conf >= oracleEquivalenceThreshold,
		Reasoning:    ov.Reasoning,
	}, nil
}

// formatPair renders the two listings for the model.
func formatPair(pair domain.CandidatePair) string {
	var b strings.Builder
	writeListing := func(label string, l domain.Listing) {
		fmt.Fprintf(&b, "%s (%s):\n", label, l.Venue)
		fmt.Fprintf(&b, "  Title: %s\n", l.Title)
		if l.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", truncate(l.Description, 500))
		}
		fmt.Fprintf(&b, "  Category: %s\n", l.NormalizedCategory())
		if !l.CloseTime.IsZero() {
			fmt.Fprintf(&b, "  Closes: %s\n", l.CloseTime.UTC().Format(time.RFC3339))
		}
	}
	writeListing("Listing A", pair.A)
	b.WriteString("\n")
	writeListing("Listing B", pair.B)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Compile-time interface check.
var _ Scorer = (*OracleScorer)(nil)
