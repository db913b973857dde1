package models

import "time"

// Loan statuses
const (
	LoanOpen   = "OPEN"
	LoanClosed = "CLOSED"
)

// Loan is the aggregate root of a borrowing transaction. closedAt is non-null
// iff status is CLOSED. A non-null deletedAt marks the loan as soft-deleted:
// its lines no longer count toward any inventory reservation.
type Loan struct {
	ID                 int64      `json:"id"`
	EmployeeID         int64      `json:"employee_id"`
	CreatedByID        int64      `json:"created_by_id"`
	Status             string     `json:"status"`
	OpenedAt           time.Time  `json:"opened_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	PickupSignatureURL *string    `json:"pickup_signature_url,omitempty"`
	PickupSignedAt     *time.Time `json:"pickup_signed_at,omitempty"`
	ReturnSignatureURL *string    `json:"return_signature_url,omitempty"`
	ReturnSignedAt     *time.Time `json:"return_signed_at,omitempty"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
	DeletedByID        *int64     `json:"deleted_by_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Lines []LoanLine `json:"lines,omitempty"`
}

// LoanLine is one reserved unit or quantity within a loan. Exactly one of
// AssetItemID / StockItemID is set; Quantity is meaningful only for stock
// lines (asset item lines implicitly reserve one unit).
type LoanLine struct {
	ID          int64     `json:"id"`
	LoanID      int64     `json:"loan_id"`
	AssetItemID *int64    `json:"asset_item_id,omitempty"`
	StockItemID *int64    `json:"stock_item_id,omitempty"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined data, populated on reads. AssetModel is the model of whichever
	// side the line references, when that side carries one.
	AssetItem  *AssetItem  `json:"asset_item,omitempty"`
	StockItem  *StockItem  `json:"stock_item,omitempty"`
	AssetModel *AssetModel `json:"asset_model,omitempty"`
}

// CreateLoanRequest represents the request body for opening a loan
type CreateLoanRequest struct {
	EmployeeID int64 `json:"employee_id" validate:"required"`
}

// AddLoanLineRequest represents the request body for adding a line to an open
// loan. Exactly one of AssetItemID / StockItemID must be supplied; Quantity
// is required (>= 1) for stock lines.
type AddLoanLineRequest struct {
	AssetItemID *int64 `json:"asset_item_id,omitempty"`
	StockItemID *int64 `json:"stock_item_id,omitempty"`
	Quantity    *int   `json:"quantity,omitempty"`
}

// AttachSignaturesRequest represents the request body for attaching pickup or
// return signature files to a loan
type AttachSignaturesRequest struct {
	PickupSignatureURL *string `json:"pickup_signature_url,omitempty"`
	ReturnSignatureURL *string `json:"return_signature_url,omitempty"`
}
