package rma

import (
	"ticketops/rights"
	"ticketops/store"
)

// Emitter is the interface adapters must satisfy to bridge RMA events to the engine.
type Emitter interface {
	EmitRMACreated(r *store.RMA, actor rights.Actor)
	EmitRMAMoved(r *store.RMA, track, from, to, detail string, actor rights.Actor)
}
