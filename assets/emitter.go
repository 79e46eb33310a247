package assets

import (
	"ticketops/rights"
	"ticketops/store"
)

// Emitter is the interface adapters must satisfy to bridge asset events to the engine.
type Emitter interface {
	EmitAssetChanged(a *store.Asset, action string, actor rights.Actor)
	EmitAssetRequestSubmitted(r *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor)
	EmitAssetRequestReviewed(r *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor)
}
