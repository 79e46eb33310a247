package engine

import (
	"ticketops/store"
)

// EventType doubles as the outbox message type and the SSE event name.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketAssigned      EventType = "ticket.assigned"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketCommented     EventType = "ticket.commented"
	EventTicketOverdue       EventType = "ticket.overdue"

	EventAssetChanged          EventType = "asset.changed"
	EventAssetRequestSubmitted EventType = "asset.request_submitted"
	EventAssetRequestReviewed  EventType = "asset.request_reviewed"

	EventStockAdjusted         EventType = "stock.adjusted"
	EventStockCleared          EventType = "stock.cleared"
	EventTransferStatusChanged EventType = "transfer.status_changed"

	EventRMACreated EventType = "rma.created"
	EventRMAMoved   EventType = "rma.moved"

	EventClientRegistered    EventType = "client.registered"
	EventClientStatusChanged EventType = "client.status_changed"

	EventMessagingConnected    EventType = "messaging.connected"
	EventMessagingDisconnected EventType = "messaging.disconnected"
)

// --- Event payloads ---

type TicketCreatedEvent struct {
	Ticket *store.Ticket `json:"ticket"`
}

type TicketAssignedEvent struct {
	Ticket     *store.Ticket `json:"ticket"`
	AssigneeID int64         `json:"assignee_id"`
}

type TicketStatusChangedEvent struct {
	Ticket    *store.Ticket `json:"ticket"`
	OldStatus string        `json:"old_status"`
	NewStatus string        `json:"new_status"`
	Note      string        `json:"note,omitempty"`
}

type TicketCommentedEvent struct {
	Ticket  *store.Ticket        `json:"ticket"`
	Comment *store.TicketComment `json:"comment"`
}

type TicketOverdueEvent struct {
	Ticket *store.Ticket `json:"ticket"`
}

type AssetChangedEvent struct {
	Asset  *store.Asset `json:"asset"`
	Action string       `json:"action"`
}

type AssetRequestEvent struct {
	Request *store.AssetUpdateRequest `json:"request"`
	Asset   *store.Asset              `json:"asset"`
}

type StockAdjustedEvent struct {
	Item   *store.StockItem `json:"item"`
	Delta  int              `json:"delta"`
	Reason string           `json:"reason"`
}

type StockClearedEvent struct {
	SiteID int64 `json:"site_id"`
	Items  int   `json:"items"`
}

type TransferStatusChangedEvent struct {
	Transfer  *store.StockTransfer `json:"transfer"`
	OldStatus string               `json:"old_status"`
	NewStatus string               `json:"new_status"`
}

type RMACreatedEvent struct {
	RMA *store.RMA `json:"rma"`
}

type RMAMovedEvent struct {
	RMA    *store.RMA `json:"rma"`
	Track  string     `json:"track"`
	From   string     `json:"from"`
	To     string     `json:"to"`
	Detail string     `json:"detail,omitempty"`
}

type ClientRegisteredEvent struct {
	ClientID int64  `json:"client_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
}

type ClientStatusChangedEvent struct {
	ClientID  int64  `json:"client_id"`
	Code      string `json:"code"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Actor     string `json:"actor"`
}

type ConnectionEvent struct {
	Detail string `json:"detail"`
}
