package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"parc-api/internal/models"
)

// Loan aggregate: owns the loan lifecycle (open → closed, orthogonal soft
// delete) and its lines. Every mutating operation opens exactly one
// transaction spanning the loan/line rows and the inventory rows it touches;
// a failed reservation rolls the whole thing back, so no line ever exists
// without its paired inventory claim.

const loanColumns = `id, employee_id, created_by_id, status, opened_at, closed_at,
	pickup_signature_url, pickup_signed_at, return_signature_url, return_signed_at,
	deleted_at, deleted_by_id, created_at, updated_at`

func scanLoan(row *sql.Row) (*models.Loan, error) {
	var l models.Loan
	err := row.Scan(&l.ID, &l.EmployeeID, &l.CreatedByID, &l.Status, &l.OpenedAt, &l.ClosedAt,
		&l.PickupSignatureURL, &l.PickupSignedAt, &l.ReturnSignatureURL, &l.ReturnSignedAt,
		&l.DeletedAt, &l.DeletedByID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoan opens a loan for an employee with zero lines. An empty loan
// reserves nothing, so there are no inventory side effects here.
func (s *Store) CreateLoan(ctx context.Context, employeeID, createdByID int64) (*models.Loan, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM employees WHERE id = $1)`, employeeID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, NotFoundf("employee %d not found", employeeID)
	}

	loan, err := scanLoan(tx.QueryRowContext(ctx, `
		INSERT INTO loans (employee_id, created_by_id, status, opened_at)
		VALUES ($1, $2, $3, now())
		RETURNING `+loanColumns,
		employeeID, createdByID, models.LoanOpen))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	loan.Lines = []models.LoanLine{}
	return loan, nil
}

// lockLoan reads a loan's lifecycle fields under FOR UPDATE so concurrent
// close/delete/add-line calls on the same loan serialize.
func lockLoan(ctx context.Context, tx *sql.Tx, loanID int64) (status string, deletedAt *time.Time, err error) {
	err = tx.QueryRowContext(ctx, `SELECT status, deleted_at FROM loans WHERE id = $1 FOR UPDATE`, loanID).
		Scan(&status, &deletedAt)
	if err == sql.ErrNoRows {
		return "", nil, NotFoundf("loan %d not found", loanID)
	}
	return status, deletedAt, err
}

// AddLoanLine attaches a line to an open loan, pairing the line insert with
// its inventory reservation in one transaction.
func (s *Store) AddLoanLine(ctx context.Context, loanID int64, req models.AddLoanLineRequest) (*models.LoanLine, error) {
	if (req.AssetItemID == nil) == (req.StockItemID == nil) {
		return nil, Validationf("exactly one of asset_item_id or stock_item_id must be supplied")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	status, deletedAt, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if deletedAt != nil {
		return nil, NotFoundf("loan %d not found", loanID)
	}
	if status != models.LoanOpen {
		return nil, Validationf("loan %d is not open", loanID)
	}

	var line models.LoanLine
	switch {
	case req.AssetItemID != nil:
		item, err := reserveAssetItem(ctx, tx, *req.AssetItemID)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO loan_lines (loan_id, asset_item_id, quantity)
			VALUES ($1, $2, 1)
			RETURNING id, loan_id, asset_item_id, stock_item_id, quantity, created_at`,
			loanID, *req.AssetItemID).
			Scan(&line.ID, &line.LoanID, &line.AssetItemID, &line.StockItemID, &line.Quantity, &line.CreatedAt)
		if err != nil {
			return nil, err
		}
		line.AssetItem = item

	default:
		if req.Quantity == nil {
			return nil, Validationf("quantity is required for stock lines")
		}
		stock, err := reserveStock(ctx, tx, *req.StockItemID, *req.Quantity)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO loan_lines (loan_id, stock_item_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id, loan_id, asset_item_id, stock_item_id, quantity, created_at`,
			loanID, *req.StockItemID, *req.Quantity).
			Scan(&line.ID, &line.LoanID, &line.AssetItemID, &line.StockItemID, &line.Quantity, &line.CreatedAt)
		if err != nil {
			return nil, err
		}
		line.StockItem = stock
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveLoanLine detaches a line from an open loan and releases its claim.
// Quantity changes are modeled as remove + re-add, so this is the only way a
// line ever goes away outside of close/delete.
func (s *Store) RemoveLoanLine(ctx context.Context, loanID, lineID int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	status, deletedAt, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return err
	}
	if deletedAt != nil {
		return NotFoundf("loan %d not found", loanID)
	}
	if status != models.LoanOpen {
		return Validationf("loan %d is not open", loanID)
	}

	var assetItemID, stockItemID *int64
	var quantity int
	err = tx.QueryRowContext(ctx, `
		SELECT asset_item_id, stock_item_id, quantity FROM loan_lines
		WHERE id = $1 AND loan_id = $2`, lineID, loanID).
		Scan(&assetItemID, &stockItemID, &quantity)
	if err == sql.ErrNoRows {
		return NotFoundf("loan line %d not found on loan %d", lineID, loanID)
	}
	if err != nil {
		return err
	}

	if err := releaseLine(ctx, tx, assetItemID, stockItemID, quantity); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_lines WHERE id = $1`, lineID); err != nil {
		return err
	}
	return tx.Commit()
}

// releaseLine reverses one line's inventory claim. Shared by line removal,
// close and delete so all three paths release identically.
func releaseLine(ctx context.Context, tx *sql.Tx, assetItemID, stockItemID *int64, quantity int) error {
	if assetItemID != nil {
		_, err := releaseAssetItem(ctx, tx, *assetItemID)
		return err
	}
	if stockItemID != nil {
		_, err := releaseStock(ctx, tx, *stockItemID, quantity)
		return err
	}
	return nil
}

// releaseAllLines reverses every line of a loan inside the caller's transaction
func releaseAllLines(ctx context.Context, tx *sql.Tx, loanID int64) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT asset_item_id, stock_item_id, quantity FROM loan_lines WHERE loan_id = $1`, loanID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type lineClaim struct {
		assetItemID *int64
		stockItemID *int64
		quantity    int
	}
	var claims []lineClaim
	for rows.Next() {
		var c lineClaim
		if err := rows.Scan(&c.assetItemID, &c.stockItemID, &c.quantity); err != nil {
			return err
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range claims {
		if err := releaseLine(ctx, tx, c.assetItemID, c.stockItemID, c.quantity); err != nil {
			return err
		}
	}
	return nil
}

// CloseLoan releases every claim on the loan and flips it to CLOSED. Closing
// an already-closed loan is a user error, not a no-op.
func (s *Store) CloseLoan(ctx context.Context, loanID int64) (*models.Loan, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	status, deletedAt, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if deletedAt != nil {
		return nil, NotFoundf("loan %d not found", loanID)
	}
	if status == models.LoanClosed {
		return nil, Validationf("loan %d is already closed", loanID)
	}

	if err := releaseAllLines(ctx, tx, loanID); err != nil {
		return nil, err
	}

	loan, err := scanLoan(tx.QueryRowContext(ctx, `
		UPDATE loans SET status = $2, closed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+loanColumns,
		loanID, models.LoanClosed))
	if err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	loan.Lines = lines
	return loan, nil
}

// DeleteLoan soft-deletes a loan. If the loan is still open its claims are
// released exactly as on close; a closed loan already released them, so no
// inventory is touched (releasing twice would over-credit the pools). The
// loan keeps its original status label and gains deleted_at/deleted_by_id.
func (s *Store) DeleteLoan(ctx context.Context, loanID, deletedByID int64) (*models.Loan, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	status, deletedAt, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if deletedAt != nil {
		return nil, NotFoundf("loan %d not found", loanID)
	}

	if status == models.LoanOpen {
		if err := releaseAllLines(ctx, tx, loanID); err != nil {
			return nil, err
		}
	}

	loan, err := scanLoan(tx.QueryRowContext(ctx, `
		UPDATE loans SET deleted_at = now(), deleted_by_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+loanColumns,
		loanID, deletedByID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loan, nil
}

// AttachSignatures records pickup and/or return signature file URLs on a loan
func (s *Store) AttachSignatures(ctx context.Context, loanID int64, req models.AttachSignaturesRequest) (*models.Loan, error) {
	if req.PickupSignatureURL == nil && req.ReturnSignatureURL == nil {
		return nil, Validationf("at least one signature URL must be supplied")
	}

	sets := []string{"updated_at = now()"}
	args := []any{loanID}
	arg := 2
	if req.PickupSignatureURL != nil {
		sets = append(sets, fmt.Sprintf("pickup_signature_url = $%d, pickup_signed_at = now()", arg))
		args = append(args, *req.PickupSignatureURL)
		arg++
	}
	if req.ReturnSignatureURL != nil {
		sets = append(sets, fmt.Sprintf("return_signature_url = $%d, return_signed_at = now()", arg))
		args = append(args, *req.ReturnSignatureURL)
		arg++
	}

	loan, err := scanLoan(s.DB.QueryRowContext(ctx, `
		UPDATE loans SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+loanColumns, args...))
	if err == sql.ErrNoRows {
		return nil, NotFoundf("loan %d not found", loanID)
	}
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// loadLines reads a loan's lines with joined asset-item, stock-item and
// asset-model data
func loadLines(ctx context.Context, q querier, loanID int64) ([]models.LoanLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ll.id, ll.loan_id, ll.asset_item_id, ll.stock_item_id, ll.quantity, ll.created_at,
		       ai.id, ai.asset_model_id, ai.asset_tag, ai.serial_number, ai.status, ai.notes, ai.created_at, ai.updated_at,
		       si.id, si.asset_model_id, si.name, si.quantity, si.loaned, si.created_at, si.updated_at,
		       am.id, am.name, am.manufacturer, am.category, am.notes, am.created_at, am.updated_at
		FROM loan_lines ll
		LEFT JOIN asset_items ai ON ai.id = ll.asset_item_id
		LEFT JOIN stock_items si ON si.id = ll.stock_item_id
		LEFT JOIN asset_models am ON am.id = COALESCE(ai.asset_model_id, si.asset_model_id)
		WHERE ll.loan_id = $1
		ORDER BY ll.id`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.LoanLine{}
	for rows.Next() {
		var line models.LoanLine
		var ai struct {
			id           sql.NullInt64
			assetModelID sql.NullInt64
			assetTag     sql.NullString
			serialNumber sql.NullString
			status       sql.NullString
			notes        sql.NullString
			createdAt    sql.NullTime
			updatedAt    sql.NullTime
		}
		var si struct {
			id           sql.NullInt64
			assetModelID sql.NullInt64
			name         sql.NullString
			quantity     sql.NullInt64
			loaned       sql.NullInt64
			createdAt    sql.NullTime
			updatedAt    sql.NullTime
		}
		var am struct {
			id           sql.NullInt64
			name         sql.NullString
			manufacturer sql.NullString
			category     sql.NullString
			notes        sql.NullString
			createdAt    sql.NullTime
			updatedAt    sql.NullTime
		}
		err := rows.Scan(&line.ID, &line.LoanID, &line.AssetItemID, &line.StockItemID, &line.Quantity, &line.CreatedAt,
			&ai.id, &ai.assetModelID, &ai.assetTag, &ai.serialNumber, &ai.status, &ai.notes, &ai.createdAt, &ai.updatedAt,
			&si.id, &si.assetModelID, &si.name, &si.quantity, &si.loaned, &si.createdAt, &si.updatedAt,
			&am.id, &am.name, &am.manufacturer, &am.category, &am.notes, &am.createdAt, &am.updatedAt)
		if err != nil {
			return nil, err
		}
		if ai.id.Valid {
			item := models.AssetItem{
				ID:           ai.id.Int64,
				AssetModelID: ai.assetModelID.Int64,
				AssetTag:     ai.assetTag.String,
				Status:       ai.status.String,
				CreatedAt:    ai.createdAt.Time,
				UpdatedAt:    ai.updatedAt.Time,
			}
			if ai.serialNumber.Valid {
				item.SerialNumber = &ai.serialNumber.String
			}
			if ai.notes.Valid {
				item.Notes = &ai.notes.String
			}
			line.AssetItem = &item
		}
		if si.id.Valid {
			stock := models.StockItem{
				ID:        si.id.Int64,
				Name:      si.name.String,
				Quantity:  int(si.quantity.Int64),
				Loaned:    int(si.loaned.Int64),
				CreatedAt: si.createdAt.Time,
				UpdatedAt: si.updatedAt.Time,
			}
			if si.assetModelID.Valid {
				stock.AssetModelID = &si.assetModelID.Int64
			}
			line.StockItem = &stock
		}
		if am.id.Valid {
			model := models.AssetModel{
				ID:        am.id.Int64,
				Name:      am.name.String,
				CreatedAt: am.createdAt.Time,
				UpdatedAt: am.updatedAt.Time,
			}
			if am.manufacturer.Valid {
				model.Manufacturer = &am.manufacturer.String
			}
			if am.category.Valid {
				model.Category = &am.category.String
			}
			if am.notes.Valid {
				model.Notes = &am.notes.String
			}
			line.AssetModel = &model
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetLoanByID reads a loan with its lines and joined inventory data.
// Soft-deleted loans are excluded; audit tooling reads them via ListLoans
// with IncludeDeleted.
func (s *Store) GetLoanByID(ctx context.Context, loanID int64) (*models.Loan, error) {
	loan, err := scanLoan(s.DB.QueryRowContext(ctx, `
		SELECT `+loanColumns+` FROM loans WHERE id = $1 AND deleted_at IS NULL`, loanID))
	if err == sql.ErrNoRows {
		return nil, NotFoundf("loan %d not found", loanID)
	}
	if err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, s.DB, loanID)
	if err != nil {
		return nil, err
	}
	loan.Lines = lines
	return loan, nil
}

// LoanFilter narrows ListLoans results
type LoanFilter struct {
	EmployeeID     *int64
	Status         *string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ListLoans returns loans (without lines) plus the unpaginated total count
func (s *Store) ListLoans(ctx context.Context, f LoanFilter) ([]models.Loan, int, error) {
	clauses := []string{}
	args := []any{}
	arg := 1

	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if f.EmployeeID != nil {
		clauses = append(clauses, fmt.Sprintf("employee_id = $%d", arg))
		args = append(args, *f.EmployeeID)
		arg++
	}
	if f.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, *f.Status)
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	sqlStr := fmt.Sprintf(`
		SELECT `+loanColumns+`, COUNT(*) OVER() AS total_count
		FROM loans%s
		ORDER BY opened_at DESC, id DESC
		LIMIT %d OFFSET %d`, whereClause, f.Limit, f.Offset)

	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	loans := []models.Loan{}
	var totalCount int
	for rows.Next() {
		var l models.Loan
		err := rows.Scan(&l.ID, &l.EmployeeID, &l.CreatedByID, &l.Status, &l.OpenedAt, &l.ClosedAt,
			&l.PickupSignatureURL, &l.PickupSignedAt, &l.ReturnSignatureURL, &l.ReturnSignedAt,
			&l.DeletedAt, &l.DeletedByID, &l.CreatedAt, &l.UpdatedAt, &totalCount)
		if err != nil {
			return nil, 0, err
		}
		loans = append(loans, l)
	}
	return loans, totalCount, rows.Err()
}
