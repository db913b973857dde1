package store

import (
	"context"
	"testing"

	"parc-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileStock(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(3)})
	require.NoError(t, err)

	// Drift the counter behind the ledger's back
	_, err = s.DB.Exec(`UPDATE stock_items SET loaned = 7 WHERE id = $1`, f.stockID)
	require.NoError(t, err)

	// Dry run reports without writing
	fixes, err := s.ReconcileStock(ctx, true)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, 7, fixes[0].Stored)
	assert.Equal(t, 3, fixes[0].Computed)
	assert.Equal(t, 7, stockLoaned(t, s, f.stockID))

	// Real run corrects
	fixes, err = s.ReconcileStock(ctx, false)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, 3, stockLoaned(t, s, f.stockID))

	// A clean ledger reconciles to nothing
	fixes, err = s.ReconcileStock(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, fixes)
}

func TestReconcileStockIgnoresDeletedLoans(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(4)})
	require.NoError(t, err)
	_, err = s.DeleteLoan(ctx, loan.ID, f.userID)
	require.NoError(t, err)

	// Pretend the delete failed to release
	_, err = s.DB.Exec(`UPDATE stock_items SET loaned = 4 WHERE id = $1`, f.stockID)
	require.NoError(t, err)

	fixes, err := s.ReconcileStock(ctx, false)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, 0, fixes[0].Computed)
	assert.Equal(t, 0, stockLoaned(t, s, f.stockID))
}

func TestReconcileAssetStatus(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	// itemA: legitimately on loan, must not be touched
	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)

	// itemB: stranded PRETE with no open loan behind it
	_, err = s.DB.Exec(`UPDATE asset_items SET status = 'PRETE' WHERE id = $1`, f.itemB)
	require.NoError(t, err)

	fixes, err := s.ReconcileAssetStatus(ctx, true)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, "LT-002", fixes[0].AssetTag)
	assert.Equal(t, models.StatusPrete, assetStatus(t, s, f.itemB)) // dry run

	fixes, err = s.ReconcileAssetStatus(ctx, false)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, models.StatusEnStock, assetStatus(t, s, f.itemB))
	assert.Equal(t, models.StatusPrete, assetStatus(t, s, f.itemA))
}
