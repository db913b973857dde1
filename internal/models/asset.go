package models

import "time"

// Asset item statuses. PRETE is reserved to the loan path: an item is PRETE
// if and only if it sits on a line of an open, non-deleted loan.
const (
	StatusEnStock    = "EN_STOCK"
	StatusPrete      = "PRETE"
	StatusHS         = "HS"
	StatusReparation = "REPARATION"
)

// AssetItemStatuses lists every valid asset item status
var AssetItemStatuses = []string{
	StatusEnStock,
	StatusPrete,
	StatusHS,
	StatusReparation,
}

// IsValidAssetItemStatus checks if a status is one of the known values
func IsValidAssetItemStatus(status string) bool {
	for _, s := range AssetItemStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// AssetModel represents a model of equipment (e.g. "ThinkPad T14 Gen 4")
type AssetModel struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Manufacturer *string   `json:"manufacturer,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssetItem represents one serialized physical unit of an asset model
type AssetItem struct {
	ID           int64     `json:"id"`
	AssetModelID int64     `json:"asset_model_id"`
	AssetTag     string    `json:"asset_tag"`
	SerialNumber *string   `json:"serial_number,omitempty"`
	Status       string    `json:"status"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StockItem represents a consumable pool tracked by count.
// available = quantity - loaned, and 0 <= loaned <= quantity at all times.
type StockItem struct {
	ID           int64     `json:"id"`
	AssetModelID *int64    `json:"asset_model_id,omitempty"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	Loaned       int       `json:"loaned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Available returns the number of units not currently checked out
func (s *StockItem) Available() int {
	return s.Quantity - s.Loaned
}

// CreateAssetModelRequest represents the request body for creating an asset model
type CreateAssetModelRequest struct {
	Name         string  `json:"name" validate:"required"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Category     *string `json:"category,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// UpdateAssetModelRequest represents the request body for updating an asset model
type UpdateAssetModelRequest struct {
	Name         *string `json:"name,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Category     *string `json:"category,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// CreateAssetItemRequest represents the request body for creating an asset item
type CreateAssetItemRequest struct {
	AssetModelID int64   `json:"asset_model_id" validate:"required"`
	AssetTag     string  `json:"asset_tag" validate:"required"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Status       *string `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// UpdateAssetItemRequest represents the request body for updating an asset item.
// Status PRETE is rejected here; only the loan path may set it.
type UpdateAssetItemRequest struct {
	AssetTag     *string `json:"asset_tag,omitempty"`
	SerialNumber *string `json:"serial_number,omitempty"`
	Status       *string `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// GenerateAssetItemsRequest represents the request body for bulk-generating
// serialized items under an asset model
type GenerateAssetItemsRequest struct {
	Count     int    `json:"count" validate:"required,min=1"`
	TagPrefix string `json:"tag_prefix" validate:"required"`
}

// CreateStockItemRequest represents the request body for creating a stock item
type CreateStockItemRequest struct {
	AssetModelID *int64 `json:"asset_model_id,omitempty"`
	Name         string `json:"name" validate:"required"`
	Quantity     int    `json:"quantity" validate:"min=0"`
}

// UpdateStockItemRequest represents the request body for updating a stock item
type UpdateStockItemRequest struct {
	Name     *string `json:"name,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
}

// RestockRequest represents the request body for adding units to a stock pool
type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
