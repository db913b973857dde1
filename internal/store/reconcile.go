package store

import (
	"context"

	"parc-api/internal/models"
)

// Offline reconciliation: the hot path tolerates drifted counters (release is
// defensive) so that a close or delete never fails on bad data. These jobs
// recompute the truth from the set of open, non-deleted loan lines and
// overwrite whatever drifted. Both are idempotent and touch nothing when the
// invariants already hold.

// StockCorrection reports one repaired loaned counter
type StockCorrection struct {
	StockItemID int64  `json:"stock_item_id"`
	Name        string `json:"name"`
	Stored      int    `json:"stored"`
	Computed    int    `json:"computed"`
}

// AssetCorrection reports one PRETE item reset to EN_STOCK
type AssetCorrection struct {
	AssetItemID int64  `json:"asset_item_id"`
	AssetTag    string `json:"asset_tag"`
}

// ReconcileStock recomputes every stock item's loaned counter as the sum of
// line quantities across open, non-deleted loans. Lines of soft-deleted loans
// never count. With dryRun the drift is reported but not written.
func (s *Store) ReconcileStock(ctx context.Context, dryRun bool) ([]StockCorrection, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT si.id, si.name, si.loaned, COALESCE(open_lines.total, 0) AS computed
		FROM stock_items si
		LEFT JOIN (
			SELECT ll.stock_item_id, SUM(ll.quantity) AS total
			FROM loan_lines ll
			JOIN loans l ON l.id = ll.loan_id
			WHERE l.status = $1 AND l.deleted_at IS NULL AND ll.stock_item_id IS NOT NULL
			GROUP BY ll.stock_item_id
		) open_lines ON open_lines.stock_item_id = si.id
		WHERE si.loaned <> COALESCE(open_lines.total, 0)
		ORDER BY si.id`, models.LoanOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	corrections := []StockCorrection{}
	for rows.Next() {
		var c StockCorrection
		if err := rows.Scan(&c.StockItemID, &c.Name, &c.Stored, &c.Computed); err != nil {
			return nil, err
		}
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if dryRun {
		return corrections, nil
	}
	for _, c := range corrections {
		_, err := tx.ExecContext(ctx, `
			UPDATE stock_items SET loaned = $2, updated_at = now() WHERE id = $1`,
			c.StockItemID, c.Computed)
		if err != nil {
			return nil, err
		}
	}
	return corrections, tx.Commit()
}

// ReconcileAssetStatus resets to EN_STOCK every PRETE asset item that is not
// referenced by a line of an open, non-deleted loan. Items legitimately on
// loan are untouched. With dryRun the drift is reported but not written.
func (s *Store) ReconcileAssetStatus(ctx context.Context, dryRun bool) ([]AssetCorrection, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT ai.id, ai.asset_tag
		FROM asset_items ai
		WHERE ai.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM loan_lines ll
			JOIN loans l ON l.id = ll.loan_id
			WHERE ll.asset_item_id = ai.id AND l.status = $2 AND l.deleted_at IS NULL
		  )
		ORDER BY ai.id`, models.StatusPrete, models.LoanOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	corrections := []AssetCorrection{}
	for rows.Next() {
		var c AssetCorrection
		if err := rows.Scan(&c.AssetItemID, &c.AssetTag); err != nil {
			return nil, err
		}
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if dryRun {
		return corrections, nil
	}
	for _, c := range corrections {
		_, err := tx.ExecContext(ctx, `
			UPDATE asset_items SET status = $2, updated_at = now() WHERE id = $1`,
			c.AssetItemID, models.StatusEnStock)
		if err != nil {
			return nil, err
		}
	}
	return corrections, tx.Commit()
}
