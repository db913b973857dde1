package models

import "testing"

func TestIsValidAssetItemStatus(t *testing.T) {
	for _, status := range AssetItemStatuses {
		if !IsValidAssetItemStatus(status) {
			t.Errorf("Expected %s to be valid", status)
		}
	}

	for _, status := range []string{"", "prete", "LOST", "EN STOCK"} {
		if IsValidAssetItemStatus(status) {
			t.Errorf("Expected %q to be invalid", status)
		}
	}
}

func TestStockItemAvailable(t *testing.T) {
	s := StockItem{Quantity: 10, Loaned: 3}
	if got := s.Available(); got != 7 {
		t.Errorf("Expected 7 available, got %d", got)
	}

	s = StockItem{Quantity: 4, Loaned: 4}
	if got := s.Available(); got != 0 {
		t.Errorf("Expected 0 available, got %d", got)
	}
}
