package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// partial unique index on (group_id, buy_listing_ref, sell_listing_ref,
// buy_outcome) WHERE status='active' gives the upsert key its one-active-row
// semantics; expired rows fall outside the index and stay as history.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, group_id, kind, buy_listing_ref, sell_listing_ref,
	buy_outcome, sell_outcome, buy_price, sell_price, profit_margin,
	confidence, detected_at, expires_at, status`

// Upsert refreshes the active record with the same key, or inserts a new one.
// The returned flag reports whether a new row was created.
func (s *OpportunityStore) Upsert(ctx context.Context, opp domain.ArbitrageOpportunity) (bool, error) {
	const query = `
		INSERT INTO opportunities (
			id, group_id, kind, buy_listing_ref, sell_listing_ref,
			buy_outcome, sell_outcome, buy_price, sell_price, profit_margin,
			confidence, detected_at, expires_at, status
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
		ON CONFLICT (group_id, buy_listing_ref, sell_listing_ref, buy_outcome)
			WHERE status = 'active'
		DO UPDATE SET
			kind          = EXCLUDED.kind,
			sell_outcome  = EXCLUDED.sell_outcome,
			buy_price     = EXCLUDED.buy_price,
			sell_price    = EXCLUDED.sell_price,
			profit_margin = EXCLUDED.profit_margin,
			confidence    = EXCLUDED.confidence,
			detected_at   = EXCLUDED.detected_at,
			expires_at    = EXCLUDED.expires_at
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		opp.ID, opp.GroupID, string(opp.Kind), string(opp.BuyListingID), string(opp.SellListingID),
		opp.BuyOutcome, opp.SellOutcome, opp.BuyPrice, opp.SellPrice, opp.ProfitMargin,
		opp.Confidence, opp.DetectedAt, opp.ExpiresAt, string(opp.Status),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert opportunity %s: %w", opp.ID, err)
	}
	return inserted, nil
}

// ListActive returns all currently active opportunities.
func (s *OpportunityStore) ListActive(ctx context.Context) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities WHERE status = 'active' ORDER BY profit_margin DESC`
	return s.query(ctx, query)
}

// ListRecent returns the most recently detected opportunities of any status.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ExpireStale flips active records whose expiry has passed to expired and
// returns how many were flipped. Records are never deleted.
func (s *OpportunityStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE opportunities SET status = 'expired' WHERE status = 'active' AND expires_at < $1`
	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire stale opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) query(ctx context.Context, query string, args ...any) ([]domain.ArbitrageOpportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbitrageOpportunity
	for rows.Next() {
		var o domain.ArbitrageOpportunity
		var kind, buyRef, sellRef, status string
		if err := rows.Scan(
			&o.ID, &o.GroupID, &kind, &buyRef, &sellRef,
			&o.BuyOutcome, &o.SellOutcome, &o.BuyPrice, &o.SellPrice, &o.ProfitMargin,
			&o.Confidence, &o.DetectedAt, &o.ExpiresAt, &status,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		o.Kind = domain.OpportunityKind(kind)
		o.BuyListingID = domain.ListingRef(buyRef)
		o.SellListingID = domain.ListingRef(sellRef)
		o.Status = domain.OpportunityStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
