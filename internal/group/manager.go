// Package group maintains equivalence classes of cross-venue listings. It is
// an online union-find with payload: each class carries a category and the
// confidence that justified its most recent merge, and every membership
// remembers the confidence at which the listing joined.
package group

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// Manager owns the group partition. All mutations go through Apply so the
// partition invariant (a listing belongs to at most one group) is enforced in
// one place. Apply is not safe for concurrent use and the pipeline calls it
// from a single goroutine; the internal mutex protects readers (Find,
// Snapshot) that may run concurrently with persistence.
type Manager struct {
	mu        sync.RWMutex
	groups    map[string]*domain.Group
	byListing map[domain.ListingRef]string
	deleted   []string
	logger    *slog.Logger
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		groups:    make(map[string]*domain.Group),
		byListing: make(map[domain.ListingRef]string),
		logger:    logger.With(slog.String("component", "group_manager")),
	}
}

// Seed loads previously persisted groups, e.g. at the start of a pass.
// Memberships found in more than one seeded group surface ErrPartitionBroken.
func (m *Manager) Seed(groups []domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range groups {
		g := groups[i]
		for _, mem := range g.Memberships {
			if prev, ok := m.byListing[mem.Listing]; ok && prev != g.ID {
				return fmt.Errorf("seed group %s: listing %s already in group %s: %w",
					g.ID, mem.Listing, prev, domain.ErrPartitionBroken)
			}
			m.byListing[mem.Listing] = g.ID
		}
		m.groups[g.ID] = &g
	}
	return nil
}

// Find returns the id of the group containing the listing, if any.
func (m *Manager) Find(ref domain.ListingRef) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byListing[ref]
	return id, ok
}

// Apply folds one equivalent pair into the partition and returns the id of
// the resulting group. Non-equivalent verdicts are ignored and return "".
//
// Precedence: neither grouped -> new group; one grouped -> join; same
// group -> no-op; different groups -> merge, absorbing the lower-confidence
// group into the higher (tie: larger member count, then lower id).
func (m *Manager) Apply(a, b domain.Listing, verdict domain.EquivalenceVerdict) string {
	if !verdict.IsEquivalent {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	refA, refB := a.Ref(), b.Ref()
	gidA, okA := m.byListing[refA]
	gidB, okB := m.byListing[refB]

	switch {
	case !okA && !okB:
		return m.create(a, refA, refB, verdict, now)
	case okA && !okB:
		m.join(gidA, refB, verdict, now)
		return gidA
	case !okA && okB:
		m.join(gidB, refA, verdict, now)
		return gidB
	case gidA == gidB:
		return gidA
	default:
		return m.merge(gidA, gidB, verdict, now)
	}
}

func (m *Manager) create(a domain.Listing, refA, refB domain.ListingRef, verdict domain.EquivalenceVerdict, now time.Time) string {
	g := &domain.Group{
		ID:         uuid.New().String(),
		Category:   a.NormalizedCategory(),
		Confidence: verdict.Confidence,
		Memberships: []domain.Membership{
			{Listing: refA, Confidence: verdict.Confidence, JoinedAt: now},
			{Listing: refB, Confidence: verdict.Confidence, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.groups[g.ID] = g
	m.byListing[refA] = g.ID
	m.byListing[refB] = g.ID
	m.logger.Debug("created group",
		slog.String("group_id", g.ID),
		slog.String("listing_a", string(refA)),
		slog.String("listing_b", string(refB)),
		slog.Float64("confidence", verdict.Confidence),
	)
	return g.ID
}

func (m *Manager) join(gid string, ref domain.ListingRef, verdict domain.EquivalenceVerdict, now time.Time) {
	g := m.groups[gid]
	g.Memberships = append(g.Memberships, domain.Membership{
		Listing:    ref,
		Confidence: verdict.Confidence,
		JoinedAt:   now,
	})
	g.Confidence = verdict.Confidence
	g.UpdatedAt = now
	m.byListing[ref] = gid
}

// merge absorbs one group into the other and returns the survivor's id. Cost
// is proportional to the absorbed group's membership, not the whole dataset.
func (m *Manager) merge(gidA, gidB string, verdict domain.EquivalenceVerdict, now time.Time) string {
	survivor, absorbed := m.groups[gidA], m.groups[gidB]
	if absorbs(absorbed, survivor) {
		survivor, absorbed = absorbed, survivor
	}

	for _, mem := range absorbed.Memberships {
		m.byListing[mem.Listing] = survivor.ID
		survivor.Memberships = append(survivor.Memberships, mem)
	}
	survivor.Confidence = verdict.Confidence
	survivor.UpdatedAt = now

	delete(m.groups, absorbed.ID)
	m.deleted = append(m.deleted, absorbed.ID)

	m.logger.Debug("merged groups",
		slog.String("survivor", survivor.ID),
		slog.String("absorbed", absorbed.ID),
		slog.Int("members", len(survivor.Memberships)),
	)
	return survivor.ID
}

// absorbs reports whether group x wins the merge against y: higher
// confidence, then larger membership, then lower id for determinism.
func absorbs(x, y *domain.Group) bool {
	if x.Confidence != y.Confidence {
		return x.Confidence > y.Confidence
	}
	if len(x.Memberships) != len(y.Memberships) {
		return len(x.Memberships) > len(y.Memberships)
	}
	return x.ID < y.ID
}

// Snapshot returns a copy of every group, sorted by id, for persistence.
func (m *Manager) Snapshot() []domain.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Group, 0, len(m.groups))
	for _, g := range m.groups {
		cp := *g
		cp.Memberships = append([]domain.Membership(nil), g.Memberships...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DrainDeleted returns the ids of groups absorbed since the last drain, so
// the persistence layer can remove their rows.
func (m *Manager) DrainDeleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.deleted
	m.deleted = nil
	return out
}

// Check verifies the partition invariant. A failure indicates a programmer
// error in this package and is surfaced loudly rather than repaired.
func (m *Manager) Check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[domain.ListingRef]string)
	for id, g := range m.groups {
		for _, mem := range g.Memberships {
			if prev, ok := seen[mem.Listing]; ok {
				return fmt.Errorf("listing %s in groups %s and %s: %w",
					mem.Listing, prev, id, domain.ErrPartitionBroken)
			}
			seen[mem.Listing] = id
			if m.byListing[mem.Listing] != id {
				return fmt.Errorf("listing %s index points at %s, membership in %s: %w",
					mem.Listing, m.byListing[mem.Listing], id, domain.ErrPartitionBroken)
			}
		}
	}
	if len(seen) != len(m.byListing) {
		return fmt.Errorf("index size %d != membership total %d: %w",
			len(m.byListing), len(seen), domain.ErrPartitionBroken)
	}
	return nil
}
