package tickets

import (
	"ticketops/rights"
	"ticketops/store"
)

// Emitter is the interface adapters must satisfy to bridge ticket events to the engine.
type Emitter interface {
	EmitTicketCreated(t *store.Ticket, actor rights.Actor)
	EmitTicketAssigned(t *store.Ticket, assigneeID int64, actor rights.Actor)
	EmitTicketStatusChanged(t *store.Ticket, oldStatus, newStatus, note string, actor rights.Actor)
	EmitTicketCommented(t *store.Ticket, c *store.TicketComment, actor rights.Actor)
	EmitTicketOverdue(t *store.Ticket)
}
