package engine

import (
	"ticketops/rights"
	"ticketops/store"
)

// ticketEmitter implements tickets.Emitter by publishing to the EventBus.
type ticketEmitter struct {
	bus *EventBus
}

func (e *ticketEmitter) EmitTicketCreated(t *store.Ticket, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventTicketCreated, ClientID: t.ClientID, Actor: actor, Payload: TicketCreatedEvent{Ticket: t}})
}

func (e *ticketEmitter) EmitTicketAssigned(t *store.Ticket, assigneeID int64, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventTicketAssigned, ClientID: t.ClientID, Actor: actor, Payload: TicketAssignedEvent{Ticket: t, AssigneeID: assigneeID}})
}

func (e *ticketEmitter) EmitTicketStatusChanged(t *store.Ticket, oldStatus, newStatus, note string, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventTicketStatusChanged, ClientID: t.ClientID, Actor: actor, Payload: TicketStatusChangedEvent{
		Ticket: t, OldStatus: oldStatus, NewStatus: newStatus, Note: note,
	}})
}

func (e *ticketEmitter) EmitTicketCommented(t *store.Ticket, c *store.TicketComment, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventTicketCommented, ClientID: t.ClientID, Actor: actor, Payload: TicketCommentedEvent{Ticket: t, Comment: c}})
}

func (e *ticketEmitter) EmitTicketOverdue(t *store.Ticket) {
	e.bus.Emit(Event{Type: EventTicketOverdue, ClientID: t.ClientID, Actor: rights.System, Payload: TicketOverdueEvent{Ticket: t}})
}

// assetEmitter implements assets.Emitter.
type assetEmitter struct {
	bus *EventBus
}

func (e *assetEmitter) EmitAssetChanged(a *store.Asset, action string, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventAssetChanged, ClientID: a.ClientID, Actor: actor, Payload: AssetChangedEvent{Asset: a, Action: action}})
}

func (e *assetEmitter) EmitAssetRequestSubmitted(r *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventAssetRequestSubmitted, ClientID: r.ClientID, Actor: actor, Payload: AssetRequestEvent{Request: r, Asset: a}})
}

func (e *assetEmitter) EmitAssetRequestReviewed(r *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventAssetRequestReviewed, ClientID: r.ClientID, Actor: actor, Payload: AssetRequestEvent{Request: r, Asset: a}})
}

// inventoryEmitter implements inventory.Emitter.
type inventoryEmitter struct {
	bus *EventBus
}

func (e *inventoryEmitter) EmitStockAdjusted(item *store.StockItem, delta int, reason string, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventStockAdjusted, ClientID: item.ClientID, Actor: actor, Payload: StockAdjustedEvent{Item: item, Delta: delta, Reason: reason}})
}

func (e *inventoryEmitter) EmitTransferStatusChanged(tr *store.StockTransfer, oldStatus, newStatus string, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventTransferStatusChanged, ClientID: tr.ClientID, Actor: actor, Payload: TransferStatusChangedEvent{
		Transfer: tr, OldStatus: oldStatus, NewStatus: newStatus,
	}})
}

func (e *inventoryEmitter) EmitStockCleared(clientID, siteID int64, items int, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventStockCleared, ClientID: clientID, Actor: actor, Payload: StockClearedEvent{SiteID: siteID, Items: items}})
}

// rmaEmitter implements rma.Emitter.
type rmaEmitter struct {
	bus *EventBus
}

func (e *rmaEmitter) EmitRMACreated(r *store.RMA, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventRMACreated, ClientID: r.ClientID, Actor: actor, Payload: RMACreatedEvent{RMA: r}})
}

func (e *rmaEmitter) EmitRMAMoved(r *store.RMA, track, from, to, detail string, actor rights.Actor) {
	e.bus.Emit(Event{Type: EventRMAMoved, ClientID: r.ClientID, Actor: actor, Payload: RMAMovedEvent{
		RMA: r, Track: track, From: from, To: to, Detail: detail,
	}})
}

// clientEmitter implements clients.Emitter. Registration has no logged-in
// actor; status changes carry the actor's name only.
type clientEmitter struct {
	bus *EventBus
}

func (e *clientEmitter) EmitClientRegistered(clientID int64, code, name string) {
	e.bus.Emit(Event{Type: EventClientRegistered, ClientID: clientID, Actor: rights.Actor{Username: "registration"}, Payload: ClientRegisteredEvent{
		ClientID: clientID, Code: code, Name: name,
	}})
}

func (e *clientEmitter) EmitClientStatusChanged(clientID int64, code, oldStatus, newStatus, actor string) {
	e.bus.Emit(Event{Type: EventClientStatusChanged, ClientID: clientID, Actor: rights.Actor{Username: actor}, Payload: ClientStatusChangedEvent{
		ClientID: clientID, Code: code, OldStatus: oldStatus, NewStatus: newStatus, Actor: actor,
	}})
}
