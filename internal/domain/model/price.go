package model

import "time"

// PriceOverride — цена слота, заданная для конкретной страницы.
// Хранится в таблице price_overrides, ключ (page_id, slot).
type PriceOverride struct {
	PageID string
	Slot   int
	// Price — цена в минимальных единицах валюты
	Price     int64
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
