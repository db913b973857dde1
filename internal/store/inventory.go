package store

import (
	"context"
	"database/sql"

	"parc-api/internal/models"
)

// Inventory ledger: the only code path allowed to flip an asset item between
// EN_STOCK and PRETE for loan purposes, and the only path allowed to adjust
// a stock item's loaned counter. Every function here runs on the querier of
// the enclosing loan transaction, and every reservation is a conditional
// update checked by rows-affected so two concurrent requests cannot both
// claim the same item or the last units of a pool.

const assetItemColumns = `id, asset_model_id, asset_tag, serial_number, status, notes, created_at, updated_at`

const stockItemColumns = `id, asset_model_id, name, quantity, loaned, created_at, updated_at`

func scanAssetItem(row *sql.Row) (*models.AssetItem, error) {
	var it models.AssetItem
	err := row.Scan(&it.ID, &it.AssetModelID, &it.AssetTag, &it.SerialNumber,
		&it.Status, &it.Notes, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func scanStockItem(row *sql.Row) (*models.StockItem, error) {
	var st models.StockItem
	err := row.Scan(&st.ID, &st.AssetModelID, &st.Name, &st.Quantity,
		&st.Loaned, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// reserveAssetItem marks an EN_STOCK item as PRETE. The status check and the
// write are one statement, so a concurrent reservation of the same item loses
// the race and surfaces as a validation error.
func reserveAssetItem(ctx context.Context, q querier, assetItemID int64) (*models.AssetItem, error) {
	it, err := scanAssetItem(q.QueryRowContext(ctx, `
		UPDATE asset_items SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING `+assetItemColumns,
		assetItemID, models.StatusPrete, models.StatusEnStock))
	if err == nil {
		return it, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Zero rows: distinguish a missing item from an unavailable one.
	var tag, status string
	err = q.QueryRowContext(ctx, `SELECT asset_tag, status FROM asset_items WHERE id = $1`, assetItemID).
		Scan(&tag, &status)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("asset item %d not found", assetItemID)
	}
	if err != nil {
		return nil, err
	}
	return nil, Validationf("asset item %s is not available (status %s)", tag, status).
		WithDetail("asset_tag", tag).
		WithDetail("status", status)
}

// releaseAssetItem unconditionally puts an item back to EN_STOCK. This is the
// close/delete/return path: it tolerates drifted statuses instead of blocking
// a legitimate release, leaving correctness restoration to reconciliation.
func releaseAssetItem(ctx context.Context, q querier, assetItemID int64) (*models.AssetItem, error) {
	it, err := scanAssetItem(q.QueryRowContext(ctx, `
		UPDATE asset_items SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+assetItemColumns,
		assetItemID, models.StatusEnStock))
	if err == sql.ErrNoRows {
		return nil, NotFoundf("asset item %d not found", assetItemID)
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// reserveStock checks out quantity units from a pool. Sufficiency is enforced
// by the WHERE clause, not by a separate read, to avoid lost updates under
// concurrent requests.
func reserveStock(ctx context.Context, q querier, stockItemID int64, quantity int) (*models.StockItem, error) {
	if quantity < 1 {
		// missing pool still reports not-found, not a quantity error
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM stock_items WHERE id = $1)`, stockItemID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, NotFoundf("stock item %d not found", stockItemID)
		}
		return nil, Validationf("quantity must be at least 1")
	}
	st, err := scanStockItem(q.QueryRowContext(ctx, `
		UPDATE stock_items SET loaned = loaned + $2, updated_at = now()
		WHERE id = $1 AND quantity - loaned >= $2
		RETURNING `+stockItemColumns,
		stockItemID, quantity))
	if err == nil {
		return st, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	var name string
	var total, loaned int
	err = q.QueryRowContext(ctx, `SELECT name, quantity, loaned FROM stock_items WHERE id = $1`, stockItemID).
		Scan(&name, &total, &loaned)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("stock item %d not found", stockItemID)
	}
	if err != nil {
		return nil, err
	}
	return nil, Validationf("insufficient stock for %s: %d requested, %d available", name, quantity, total-loaned).
		WithDetail("stock_item", name).
		WithDetail("requested", quantity).
		WithDetail("available", total - loaned)
}

// releaseStock returns quantity units to a pool. The decrement floors at zero
// so drifted counters do not go negative and do not block a close/delete.
func releaseStock(ctx context.Context, q querier, stockItemID int64, quantity int) (*models.StockItem, error) {
	st, err := scanStockItem(q.QueryRowContext(ctx, `
		UPDATE stock_items SET loaned = GREATEST(loaned - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING `+stockItemColumns,
		stockItemID, quantity))
	if err == sql.ErrNoRows {
		return nil, NotFoundf("stock item %d not found", stockItemID)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
