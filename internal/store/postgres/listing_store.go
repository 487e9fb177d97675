package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// listingRow is the typed scan target for listing queries.
type listingRow struct {
	Ref         string
	ID          string
	Venue       string
	Title       string
	Description string
	Category    string
	Outcomes    []byte
	Volume      float64
	Liquidity   float64
	CloseTime   *time.Time
	IsActive    bool
}

func (r listingRow) toDomain() (domain.Listing, error) {
	var outcomes []domain.Outcome
	if err := json.Unmarshal(r.Outcomes, &outcomes); err != nil {
		return domain.Listing{}, fmt.Errorf("postgres: decode outcomes for %s: %w", r.Ref, err)
	}
	l := domain.Listing{
		ID:          r.ID,
		Venue:       domain.Venue(r.Venue),
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Outcomes:    outcomes,
		Volume:      r.Volume,
		Liquidity:   r.Liquidity,
		IsActive:    r.IsActive,
	}
	if r.CloseTime != nil {
		l.CloseTime = *r.CloseTime
	}
	return l, nil
}

const listingSelectCols = `ref, id, venue, title, description, category, outcomes,
	volume, liquidity, close_time, is_active`

// UpsertBatch inserts or refreshes a batch of listing snapshots. Listings on
// file but absent from the batch keep their previous state; the caller marks
// staleness by upserting with IsActive=false.
func (s *ListingStore) UpsertBatch(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	const query = `
		INSERT INTO listings (ref, id, venue, title, description, category, outcomes,
			volume, liquidity, close_time, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (ref) DO UPDATE SET
			title       = EXCLUDED.title,
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			outcomes    = EXCLUDED.outcomes,
			volume      = EXCLUDED.volume,
			liquidity   = EXCLUDED.liquidity,
			close_time  = EXCLUDED.close_time,
			is_active   = EXCLUDED.is_active,
			updated_at  = NOW()`

	batch := &pgx.Batch{}
	for _, l := range listings {
		outcomes, err := json.Marshal(l.Outcomes)
		if err != nil {
			return fmt.Errorf("postgres: marshal outcomes for %s: %w", l.Ref(), err)
		}
		var closeTime *time.Time
		if !l.CloseTime.IsZero() {
			t := l.CloseTime
			closeTime = &t
		}
		batch.Queue(query,
			string(l.Ref()), l.ID, string(l.Venue), l.Title, l.Description, l.Category,
			outcomes, l.Volume, l.Liquidity, closeTime, l.IsActive,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range listings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert listing batch: %w", err)
		}
	}
	return nil
}

// GetByRef returns a listing by its globally unique reference.
func (s *ListingStore) GetByRef(ctx context.Context, ref domain.ListingRef) (domain.Listing, error) {
	query := `SELECT ` + listingSelectCols + ` FROM listings WHERE ref = $1`

	var r listingRow
	err := s.pool.QueryRow(ctx, query, string(ref)).Scan(
		&r.Ref, &r.ID, &r.Venue, &r.Title, &r.Description, &r.Category,
		&r.Outcomes, &r.Volume, &r.Liquidity, &r.CloseTime, &r.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s: %w", ref, err)
	}
	return r.toDomain()
}

// ListActive returns all active listings.
func (s *ListingStore) ListActive(ctx context.Context) ([]domain.Listing, error) {
	query := `SELECT ` + listingSelectCols + ` FROM listings WHERE is_active ORDER BY ref`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		var r listingRow
		if err := rows.Scan(
			&r.Ref, &r.ID, &r.Venue, &r.Title, &r.Description, &r.Category,
			&r.Outcomes, &r.Volume, &r.Liquidity, &r.CloseTime, &r.IsActive,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		l, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count returns the total number of stored listings.
func (s *ListingStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count listings: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.ListingStore = (*ListingStore)(nil)
