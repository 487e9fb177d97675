package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

type fakeSender struct {
	name  string
	err   error
	calls []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.calls = append(f.calls, title)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyEventFilter(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{EventOpportunityDetected}, testLogger())

	if err := n.Notify(context.Background(), EventPassFailed, "failed", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.calls) != 0 {
		t.Fatalf("filtered event reached sender: %v", s.calls)
	}

	if err := n.Notify(context.Background(), EventOpportunityDetected, "found", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.calls) != 1 || s.calls[0] != "found" {
		t.Fatalf("calls = %v", s.calls)
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	_ = n.Notify(context.Background(), "anything.at.all", "t", "m")
	if len(s.calls) != 1 {
		t.Fatalf("calls = %v", s.calls)
	}
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil {
		t.Fatal("expected combined error from failing sender")
	}
	if !strings.Contains(err.Error(), "bad: boom") {
		t.Errorf("error = %v", err)
	}
	if len(good.calls) != 1 {
		t.Error("healthy sender skipped after earlier failure")
	}
}

func TestFormatOpportunity(t *testing.T) {
	opp := domain.ArbitrageOpportunity{
		GroupID:       "g42",
		Kind:          domain.OpportunitySameSide,
		BuyListingID:  "polymarket:m1",
		SellListingID: "kalshi:TICKER",
		BuyOutcome:    "yes",
		SellOutcome:   "yes",
		BuyPrice:      0.40,
		SellPrice:     0.45,
		ProfitMargin:  0.125,
		Confidence:    0.9,
		ExpiresAt:     time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC),
	}

	title, message := FormatOpportunity(opp)
	if !strings.Contains(title, "12.50%") || !strings.Contains(title, "same_side") {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{"polymarket:m1", "kalshi:TICKER", "0.400", "0.450", "g42", "0.90", "12:30:00"} {
		if !strings.Contains(message, want) {
			t.Errorf("message missing %q:\n%s", want, message)
		}
	}
}
