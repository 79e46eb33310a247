package inventory

import (
	"ticketops/rights"
	"ticketops/store"
)

// Emitter is the interface adapters must satisfy to bridge inventory events to the engine.
type Emitter interface {
	EmitStockAdjusted(item *store.StockItem, delta int, reason string, actor rights.Actor)
	EmitTransferStatusChanged(tr *store.StockTransfer, oldStatus, newStatus string, actor rights.Actor)
	EmitStockCleared(clientID, siteID int64, items int, actor rights.Actor)
}
