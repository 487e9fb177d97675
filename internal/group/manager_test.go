package group

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listing(venue domain.Venue, id string) domain.Listing {
	return domain.Listing{ID: id, Venue: venue, Category: "politics", IsActive: true}
}

func equivalent(confidence float64) domain.EquivalenceVerdict {
	return domain.EquivalenceVerdict{Confidence: confidence, IsEquivalent: true, Reasoning: "test"}
}

func TestApplyCreate(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")

	gid := m.Apply(a, b, equivalent(0.9))
	if gid == "" {
		t.Fatal("Apply returned no group id")
	}

	for _, ref := range []domain.ListingRef{a.Ref(), b.Ref()} {
		got, ok := m.Find(ref)
		if !ok || got != gid {
			t.Errorf("Find(%s) = %q, %v, want %q", ref, got, ok, gid)
		}
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Memberships) != 2 {
		t.Fatalf("snapshot = %+v, want one group of two", snap)
	}
	if snap[0].Confidence != 0.9 {
		t.Errorf("group confidence = %v, want 0.9", snap[0].Confidence)
	}
}

func TestApplyNotEquivalentIsIgnored(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")

	verdict := domain.EquivalenceVerdict{Confidence: 0.5, IsEquivalent: false}
	if gid := m.Apply(a, b, verdict); gid != "" {
		t.Errorf("Apply returned %q for a non-equivalent verdict", gid)
	}
	if len(m.Snapshot()) != 0 {
		t.Error("non-equivalent verdict created a group")
	}
}

func TestApplyJoin(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")
	c := listing(domain.VenueKalshi, "c")

	gid := m.Apply(a, b, equivalent(0.9))
	joined := m.Apply(a, c, equivalent(0.8))
	if joined != gid {
		t.Fatalf("join produced group %q, want existing %q", joined, gid)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Memberships) != 3 {
		t.Fatalf("snapshot = %+v, want one group of three", snap)
	}
}

func TestApplySameGroupIsNoop(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")

	gid := m.Apply(a, b, equivalent(0.9))
	again := m.Apply(b, a, equivalent(0.8))
	if again != gid {
		t.Errorf("re-apply returned %q, want %q", again, gid)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Memberships) != 2 {
		t.Fatalf("duplicate apply changed membership: %+v", snap)
	}
}

func TestApplyMergeAbsorbsLowerConfidence(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")
	c := listing(domain.VenuePolymarket, "c")
	d := listing(domain.VenueKalshi, "d")

	strong := m.Apply(a, b, equivalent(0.95))
	weak := m.Apply(c, d, equivalent(0.70))

	merged := m.Apply(b, c, equivalent(0.85))
	if merged != strong {
		t.Errorf("merge survivor = %q, want higher-confidence group %q", merged, strong)
	}

	if _, ok := m.Find(c.Ref()); !ok {
		t.Error("absorbed member lost from index")
	}
	if gid, _ := m.Find(d.Ref()); gid != strong {
		t.Errorf("absorbed member points at %q, want %q", gid, strong)
	}

	deleted := m.DrainDeleted()
	if len(deleted) != 1 || deleted[0] != weak {
		t.Errorf("DrainDeleted() = %v, want [%s]", deleted, weak)
	}
	if again := m.DrainDeleted(); len(again) != 0 {
		t.Errorf("second drain = %v, want empty", again)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Memberships) != 4 {
		t.Fatalf("snapshot = %+v, want one group of four", snap)
	}
	if snap[0].Confidence != 0.85 {
		t.Errorf("merged confidence = %v, want verdict's 0.85", snap[0].Confidence)
	}
}

func TestApplyMergeTieBreakMemberCount(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")
	c := listing(domain.VenueKalshi, "c")
	d := listing(domain.VenuePolymarket, "d")
	e := listing(domain.VenueKalshi, "e")

	big := m.Apply(a, b, equivalent(0.8))
	m.Apply(a, c, equivalent(0.8)) // big now has three members
	small := m.Apply(d, e, equivalent(0.8))

	merged := m.Apply(c, d, equivalent(0.8))
	if merged != big {
		t.Errorf("equal confidence: survivor = %q, want larger group %q (absorbed %q)", merged, big, small)
	}
}

func TestSeedRestoresState(t *testing.T) {
	m := NewManager(testLogger())
	a := listing(domain.VenuePolymarket, "a")
	b := listing(domain.VenueKalshi, "b")
	gid := m.Apply(a, b, equivalent(0.9))

	restored := NewManager(testLogger())
	if err := restored.Seed(m.Snapshot()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if got, ok := restored.Find(a.Ref()); !ok || got != gid {
		t.Errorf("Find after seed = %q, %v, want %q", got, ok, gid)
	}
	if err := restored.Check(); err != nil {
		t.Errorf("Check after seed: %v", err)
	}
}

func TestSeedRejectsBrokenPartition(t *testing.T) {
	now := time.Now().UTC()
	shared := domain.ListingRef("polymarket:x")
	groups := []domain.Group{
		{ID: "g1", Memberships: []domain.Membership{{Listing: shared, JoinedAt: now}, {Listing: "kalshi:y", JoinedAt: now}}},
		{ID: "g2", Memberships: []domain.Membership{{Listing: shared, JoinedAt: now}, {Listing: "kalshi:z", JoinedAt: now}}},
	}

	m := NewManager(testLogger())
	if err := m.Seed(groups); !errors.Is(err, domain.ErrPartitionBroken) {
		t.Errorf("Seed = %v, want ErrPartitionBroken", err)
	}
}

// Random sequences of equivalence verdicts must always leave the groups a
// partition: every listing in exactly one group, index consistent.
func TestPartitionInvariantUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := range 20 {
		m := NewManager(testLogger())

		var listings []domain.Listing
		for i := range 12 {
			listings = append(listings, listing(domain.VenuePolymarket, fmt.Sprintf("p%d", i)))
			listings = append(listings, listing(domain.VenueKalshi, fmt.Sprintf("k%d", i)))
		}

		for step := range 200 {
			a := listings[rng.Intn(len(listings))]
			b := listings[rng.Intn(len(listings))]
			if a.Ref() == b.Ref() {
				continue
			}
			m.Apply(a, b, equivalent(0.70+rng.Float64()*0.3))

			if err := m.Check(); err != nil {
				t.Fatalf("trial %d step %d: %v", trial, step, err)
			}
		}

		// Re-applying the whole history in any order must keep the
		// partition; a second pass can only trigger no-ops or merges.
		for range 50 {
			a := listings[rng.Intn(len(listings))]
			b := listings[rng.Intn(len(listings))]
			if a.Ref() == b.Ref() {
				continue
			}
			m.Apply(a, b, equivalent(0.75))
		}
		if err := m.Check(); err != nil {
			t.Fatalf("trial %d replay: %v", trial, err)
		}
	}
}
