package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// GroupStore implements domain.GroupStore using PostgreSQL. Each Upsert
// replaces the group's membership set atomically, so a half-written merge can
// never be observed.
type GroupStore struct {
	pool *pgxpool.Pool
}

// NewGroupStore creates a new GroupStore.
func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

// Upsert inserts or updates a group and replaces its memberships in one
// transaction.
func (s *GroupStore) Upsert(ctx context.Context, g domain.Group) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin upsert group %s: %w", g.ID, err)
	}
	defer tx.Rollback(ctx)

	const upsertGroup = `
		INSERT INTO groups (id, category, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			category   = EXCLUDED.category,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, upsertGroup, g.ID, g.Category, g.Confidence, g.CreatedAt, g.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: upsert group %s: %w", g.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("postgres: clear memberships for group %s: %w", g.ID, err)
	}

	const insertMembership = `
		INSERT INTO group_memberships (listing_ref, group_id, confidence, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_ref) DO UPDATE SET
			group_id   = EXCLUDED.group_id,
			confidence = EXCLUDED.confidence,
			joined_at  = EXCLUDED.joined_at`
	for _, m := range g.Memberships {
		if _, err := tx.Exec(ctx, insertMembership, string(m.Listing), g.ID, m.Confidence, m.JoinedAt); err != nil {
			return fmt.Errorf("postgres: insert membership %s in group %s: %w", m.Listing, g.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit upsert group %s: %w", g.ID, err)
	}
	return nil
}

// Delete removes a group; its memberships cascade.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete group %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns a group with its memberships.
func (s *GroupStore) GetByID(ctx context.Context, id string) (domain.Group, error) {
	const query = `SELECT id, category, confidence, created_at, updated_at FROM groups WHERE id = $1`

	var g domain.Group
	err := s.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.Category, &g.Confidence, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Group{}, domain.ErrNotFound
		}
		return domain.Group{}, fmt.Errorf("postgres: get group %s: %w", id, err)
	}

	memberships, err := s.listMemberships(ctx, id)
	if err != nil {
		return domain.Group{}, err
	}
	g.Memberships = memberships
	return g, nil
}

// List returns all groups with their memberships.
func (s *GroupStore) List(ctx context.Context) ([]domain.Group, error) {
	const query = `SELECT id, category, confidence, created_at, updated_at FROM groups ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Category, &g.Confidence, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list groups rows: %w", err)
	}

	for i := range groups {
		memberships, err := s.listMemberships(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Memberships = memberships
	}
	return groups, nil
}

func (s *GroupStore) listMemberships(ctx context.Context, groupID string) ([]domain.Membership, error) {
	const query = `
		SELECT listing_ref, confidence, joined_at
		FROM group_memberships WHERE group_id = $1 ORDER BY listing_ref`

	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list memberships for group %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		var ref string
		if err := rows.Scan(&ref, &m.Confidence, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan membership: %w", err)
		}
		m.Listing = domain.ListingRef(ref)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.GroupStore = (*GroupStore)(nil)
