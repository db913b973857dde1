package store

import (
	"context"
	"testing"

	"parc-api/internal/models"
	"parc-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture seeds one user, one employee, one asset model with two serialized
// items, and a stock pool of 10 cables. Returns the ids in insertion order.
type fixture struct {
	userID     int64
	employeeID int64
	modelID    int64
	itemA      int64
	itemB      int64
	stockID    int64
}

func setupStore(t *testing.T) (*Store, fixture) {
	t.Helper()
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	testutil.ResetSchema(t, db)

	var f fixture
	ctx := context.Background()

	err := db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, roles)
		VALUES ('tester@parc.local', 'x', ARRAY['GESTIONNAIRE']) RETURNING id`).Scan(&f.userID)
	require.NoError(t, err)

	err = db.QueryRowContext(ctx, `
		INSERT INTO employees (first_name, last_name) VALUES ('Ada', 'Lovelace') RETURNING id`).Scan(&f.employeeID)
	require.NoError(t, err)

	err = db.QueryRowContext(ctx, `
		INSERT INTO asset_models (name) VALUES ('ThinkPad T14') RETURNING id`).Scan(&f.modelID)
	require.NoError(t, err)

	err = db.QueryRowContext(ctx, `
		INSERT INTO asset_items (asset_model_id, asset_tag) VALUES ($1, 'LT-001') RETURNING id`, f.modelID).Scan(&f.itemA)
	require.NoError(t, err)
	err = db.QueryRowContext(ctx, `
		INSERT INTO asset_items (asset_model_id, asset_tag) VALUES ($1, 'LT-002') RETURNING id`, f.modelID).Scan(&f.itemB)
	require.NoError(t, err)

	err = db.QueryRowContext(ctx, `
		INSERT INTO stock_items (name, quantity) VALUES ('HDMI cable', 10) RETURNING id`).Scan(&f.stockID)
	require.NoError(t, err)

	return New(db), f
}

func assetStatus(t *testing.T, s *Store, id int64) string {
	t.Helper()
	var status string
	require.NoError(t, s.DB.QueryRow(`SELECT status FROM asset_items WHERE id = $1`, id).Scan(&status))
	return status
}

func stockLoaned(t *testing.T, s *Store, id int64) int {
	t.Helper()
	var loaned int
	require.NoError(t, s.DB.QueryRow(`SELECT loaned FROM stock_items WHERE id = $1`, id).Scan(&loaned))
	return loaned
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func TestReserveAssetItem(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	item, err := reserveAssetItem(ctx, s.DB, f.itemA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPrete, item.Status)

	// Second reservation of the same unit loses
	_, err = reserveAssetItem(ctx, s.DB, f.itemA)
	require.True(t, IsValidation(err))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "LT-001", se.Details["asset_tag"])
	assert.Equal(t, models.StatusPrete, se.Details["status"])

	_, err = reserveAssetItem(ctx, s.DB, 99999)
	assert.True(t, IsNotFound(err))

	item, err = releaseAssetItem(ctx, s.DB, f.itemA)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnStock, item.Status)
}

func TestReserveStock(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	st, err := reserveStock(ctx, s.DB, f.stockID, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, st.Loaned)
	assert.Equal(t, 2, st.Available())

	// Asking for more than what remains fails atomically
	_, err = reserveStock(ctx, s.DB, f.stockID, 3)
	require.True(t, IsValidation(err))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Details["requested"])
	assert.Equal(t, 2, se.Details["available"])
	assert.Equal(t, 8, stockLoaned(t, s, f.stockID))

	_, err = reserveStock(ctx, s.DB, f.stockID, 0)
	assert.True(t, IsValidation(err))

	// An unknown pool is a not-found even when the quantity is bad too
	_, err = reserveStock(ctx, s.DB, 999999, 0)
	assert.True(t, IsNotFound(err))
	_, err = reserveStock(ctx, s.DB, 999999, 1)
	assert.True(t, IsNotFound(err))

	// Release floors at zero even when over-credited
	st, err = releaseStock(ctx, s.DB, f.stockID, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Loaned)
}

func TestLoanLifecycleRoundTrip(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanOpen, loan.Status)
	assert.Empty(t, loan.Lines)

	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(4)})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPrete, assetStatus(t, s, f.itemA))
	assert.Equal(t, 4, stockLoaned(t, s, f.stockID))

	closed, err := s.CloseLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Len(t, closed.Lines, 2)

	// Everything released
	assert.Equal(t, models.StatusEnStock, assetStatus(t, s, f.itemA))
	assert.Equal(t, 0, stockLoaned(t, s, f.stockID))

	// Closing twice is a business error
	_, err = s.CloseLoan(ctx, loan.ID)
	assert.True(t, IsValidation(err))
}

func TestAddLoanLineRules(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)

	// Exactly one of asset/stock
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{})
	assert.True(t, IsValidation(err))
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{
		AssetItemID: int64Ptr(f.itemA), StockItemID: int64Ptr(f.stockID)})
	assert.True(t, IsValidation(err))

	// Stock lines need a quantity
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID)})
	assert.True(t, IsValidation(err))

	// Closed loans refuse new lines
	_, err = s.CloseLoan(ctx, loan.ID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	assert.True(t, IsValidation(err))
}

func TestAddLoanLineDoubleBooking(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan1, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	loan2, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)

	_, err = s.AddLoanLine(ctx, loan1.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)

	// Same unit on a second loan is refused, and the failed
	// transaction leaves no orphan line behind
	_, err = s.AddLoanLine(ctx, loan2.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.True(t, IsValidation(err))

	var count int
	require.NoError(t, s.DB.QueryRow(
		`SELECT COUNT(*) FROM loan_lines WHERE loan_id = $1`, loan2.ID).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestRemoveLoanLine(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	line, err := s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)

	require.NoError(t, s.RemoveLoanLine(ctx, loan.ID, line.ID))
	assert.Equal(t, models.StatusEnStock, assetStatus(t, s, f.itemA))

	// Gone now
	err = s.RemoveLoanLine(ctx, loan.ID, line.ID)
	assert.True(t, IsNotFound(err))

	// A line never belongs to another loan
	other, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	line2, err := s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemB)})
	require.NoError(t, err)
	err = s.RemoveLoanLine(ctx, other.ID, line2.ID)
	assert.True(t, IsNotFound(err))
}

func TestDeleteLoanReleasesOpenClaims(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(5)})
	require.NoError(t, err)

	deleted, err := s.DeleteLoan(ctx, loan.ID, f.userID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, models.LoanOpen, deleted.Status) // status label survives

	assert.Equal(t, models.StatusEnStock, assetStatus(t, s, f.itemA))
	assert.Equal(t, 0, stockLoaned(t, s, f.stockID))

	// Hidden from normal reads and from a second delete
	_, err = s.GetLoanByID(ctx, loan.ID)
	assert.True(t, IsNotFound(err))
	_, err = s.DeleteLoan(ctx, loan.ID, f.userID)
	assert.True(t, IsNotFound(err))
}

func TestDeleteClosedLoanReleasesNothing(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(3)})
	require.NoError(t, err)
	_, err = s.CloseLoan(ctx, loan.ID)
	require.NoError(t, err)

	// Keep some units loaned elsewhere so a double release would show
	_, err = reserveStock(ctx, s.DB, f.stockID, 2)
	require.NoError(t, err)

	_, err = s.DeleteLoan(ctx, loan.ID, f.userID)
	require.NoError(t, err)

	// Closing already released the 3 units; delete must not credit again
	assert.Equal(t, 2, stockLoaned(t, s, f.stockID))
}

func TestListLoansFilters(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	open, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	closed, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.CloseLoan(ctx, closed.ID)
	require.NoError(t, err)
	gone, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.DeleteLoan(ctx, gone.ID, f.userID)
	require.NoError(t, err)

	loans, total, err := s.ListLoans(ctx, LoanFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	status := models.LoanOpen
	loans, total, err = s.ListLoans(ctx, LoanFilter{Status: &status})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, open.ID, loans[0].ID)

	_, total, err = s.ListLoans(ctx, LoanFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	other := int64(99999)
	_, total, err = s.ListLoans(ctx, LoanFilter{EmployeeID: &other})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestAttachSignatures(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)

	pickup := "https://parc.local/signatures/pickup-1.png"
	got, err := s.AttachSignatures(ctx, loan.ID, models.AttachSignaturesRequest{PickupSignatureURL: &pickup})
	require.NoError(t, err)
	require.NotNil(t, got.PickupSignatureURL)
	assert.Equal(t, pickup, *got.PickupSignatureURL)
	assert.NotNil(t, got.PickupSignedAt)
	assert.Nil(t, got.ReturnSignatureURL)

	ret := "https://parc.local/signatures/return-1.png"
	got, err = s.AttachSignatures(ctx, loan.ID, models.AttachSignaturesRequest{ReturnSignatureURL: &ret})
	require.NoError(t, err)
	assert.NotNil(t, got.PickupSignatureURL) // earlier signature survives
	require.NotNil(t, got.ReturnSignatureURL)

	_, err = s.AttachSignatures(ctx, loan.ID, models.AttachSignaturesRequest{})
	assert.True(t, IsValidation(err))

	_, err = s.DeleteLoan(ctx, loan.ID, f.userID)
	require.NoError(t, err)
	_, err = s.AttachSignatures(ctx, loan.ID, models.AttachSignaturesRequest{PickupSignatureURL: &pickup})
	assert.True(t, IsNotFound(err))
}

func TestCreateLoanUnknownEmployee(t *testing.T) {
	s, f := setupStore(t)

	_, err := s.CreateLoan(context.Background(), 99999, f.userID)
	assert.True(t, IsNotFound(err))
}

func TestGetLoanByIDLoadsJoinedLines(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{AssetItemID: int64Ptr(f.itemA)})
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(f.stockID), Quantity: intPtr(2)})
	require.NoError(t, err)

	got, err := s.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)

	require.NotNil(t, got.Lines[0].AssetItem)
	assert.Equal(t, "LT-001", got.Lines[0].AssetItem.AssetTag)
	assert.Nil(t, got.Lines[0].StockItem)
	require.NotNil(t, got.Lines[0].AssetModel)
	assert.Equal(t, "ThinkPad T14", got.Lines[0].AssetModel.Name)

	require.NotNil(t, got.Lines[1].StockItem)
	assert.Equal(t, "HDMI cable", got.Lines[1].StockItem.Name)
	assert.Equal(t, 2, got.Lines[1].Quantity)
	// the fixture pool has no model attached
	assert.Nil(t, got.Lines[1].AssetModel)
}

func TestGetLoanByIDJoinsStockPoolModel(t *testing.T) {
	s, f := setupStore(t)
	ctx := context.Background()

	var pooledID int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO stock_items (name, quantity, asset_model_id)
		VALUES ('Spare battery', 4, $1) RETURNING id`, f.modelID).Scan(&pooledID)
	require.NoError(t, err)

	loan, err := s.CreateLoan(ctx, f.employeeID, f.userID)
	require.NoError(t, err)
	_, err = s.AddLoanLine(ctx, loan.ID, models.AddLoanLineRequest{StockItemID: int64Ptr(pooledID), Quantity: intPtr(1)})
	require.NoError(t, err)

	got, err := s.GetLoanByID(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.NotNil(t, got.Lines[0].AssetModel)
	assert.Equal(t, "ThinkPad T14", got.Lines[0].AssetModel.Name)
}
