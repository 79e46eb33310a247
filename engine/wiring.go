package engine

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ticketops/messaging"
)

func (e *Engine) wireEventHandlers() {
	e.wireAudit()
	e.wireWorkLog()
	if e.notifier != nil {
		e.wireNotifications()
	}
	if e.metrics != nil {
		e.wireMetrics()
	}
	e.Events.Subscribe(e.enqueueOutbox)
	e.Events.Subscribe(e.broadcast)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		if evt.Type == EventMessagingConnected {
			e.log.Info("messaging up", zap.String("detail", ev.Detail))
		} else {
			e.log.Warn("messaging down", zap.String("detail", ev.Detail))
		}
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) audit(evt Event, entityType string, entityID int64, action, oldValue, newValue string) {
	if err := e.db.AppendAudit(evt.ClientID, entityType, entityID, action, oldValue, newValue, evt.Actor.Name()); err != nil {
		e.log.Error("append audit", zap.String("event", string(evt.Type)), zap.String("entity", entityType), zap.Int64("id", entityID), zap.Error(err))
	}
}

// wireAudit records domain events in the cross-entity audit log. Asset
// request approvals and stock clears write their own per-row audit inside
// the transaction and are not repeated here.
func (e *Engine) wireAudit() {
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketCreatedEvent)
		e.audit(evt, "ticket", ev.Ticket.ID, "created", "", ev.Ticket.Status)
	}, EventTicketCreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketAssignedEvent)
		e.audit(evt, "ticket", ev.Ticket.ID, "assigned", "", strconv.FormatInt(ev.AssigneeID, 10))
	}, EventTicketAssigned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketStatusChangedEvent)
		e.audit(evt, "ticket", ev.Ticket.ID, "status", ev.OldStatus, ev.NewStatus)
	}, EventTicketStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketOverdueEvent)
		due := ""
		if ev.Ticket.DueAt != nil {
			due = ev.Ticket.DueAt.UTC().Format("2006-01-02 15:04")
		}
		e.audit(evt, "ticket", ev.Ticket.ID, "overdue", "", due)
	}, EventTicketOverdue)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssetChangedEvent)
		e.audit(evt, "asset", ev.Asset.ID, ev.Action, "", ev.Asset.Code)
	}, EventAssetChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssetRequestEvent)
		e.audit(evt, "asset_update_request", ev.Request.ID, "submitted", "", ev.Request.ChangesJSON)
	}, EventAssetRequestSubmitted)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssetRequestEvent)
		e.audit(evt, "asset_update_request", ev.Request.ID, "reviewed", "pending", ev.Request.Status)
	}, EventAssetRequestReviewed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(StockAdjustedEvent)
		e.audit(evt, "stock_item", ev.Item.ID, "adjusted",
			strconv.Itoa(ev.Item.Quantity-ev.Delta), fmt.Sprintf("%d (%s)", ev.Item.Quantity, ev.Reason))
	}, EventStockAdjusted)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransferStatusChangedEvent)
		e.audit(evt, "transfer", ev.Transfer.ID, "status", ev.OldStatus, ev.NewStatus)
	}, EventTransferStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RMACreatedEvent)
		e.audit(evt, "rma", ev.RMA.ID, "created", "", ev.RMA.Status)
	}, EventRMACreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RMAMovedEvent)
		e.audit(evt, "rma", ev.RMA.ID, ev.Track, ev.From, ev.To)
	}, EventRMAMoved)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ClientRegisteredEvent)
		e.audit(evt, "client", ev.ClientID, "registered", "", ev.Code)
	}, EventClientRegistered)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ClientStatusChangedEvent)
		e.audit(evt, "client", ev.ClientID, "status", ev.OldStatus, ev.NewStatus)
	}, EventClientStatusChanged)
}

// wireWorkLog journals what users did. The system actor is skipped by Record.
func (e *Engine) wireWorkLog() {
	e.Events.SubscribeTypes(func(evt Event) {
		switch ev := evt.Payload.(type) {
		case TicketCreatedEvent:
			e.worklog.Record(evt.Actor, "ticket", "ticket", ev.Ticket.ID, fmt.Sprintf("Opened %s: %s", ev.Ticket.Number, ev.Ticket.Title))
		case TicketAssignedEvent:
			e.worklog.Record(evt.Actor, "ticket", "ticket", ev.Ticket.ID, fmt.Sprintf("Assigned %s", ev.Ticket.Number))
		case TicketStatusChangedEvent:
			e.worklog.Record(evt.Actor, "ticket", "ticket", ev.Ticket.ID, fmt.Sprintf("Moved %s from %s to %s", ev.Ticket.Number, ev.OldStatus, ev.NewStatus))
		case TicketCommentedEvent:
			e.worklog.Record(evt.Actor, "ticket", "ticket", ev.Ticket.ID, fmt.Sprintf("Commented on %s", ev.Ticket.Number))
		}
	}, EventTicketCreated, EventTicketAssigned, EventTicketStatusChanged, EventTicketCommented)

	e.Events.SubscribeTypes(func(evt Event) {
		switch ev := evt.Payload.(type) {
		case AssetChangedEvent:
			e.worklog.Record(evt.Actor, "asset", "asset", ev.Asset.ID, fmt.Sprintf("%s asset %s", capitalize(ev.Action), ev.Asset.Code))
		case AssetRequestEvent:
			if evt.Type == EventAssetRequestSubmitted {
				e.worklog.Record(evt.Actor, "asset", "asset", ev.Asset.ID, fmt.Sprintf("Requested changes to asset %s", ev.Asset.Code))
			} else {
				e.worklog.Record(evt.Actor, "asset", "asset", ev.Asset.ID, fmt.Sprintf("Reviewed change request for %s: %s", ev.Asset.Code, ev.Request.Status))
			}
		}
	}, EventAssetChanged, EventAssetRequestSubmitted, EventAssetRequestReviewed)

	e.Events.SubscribeTypes(func(evt Event) {
		switch ev := evt.Payload.(type) {
		case StockAdjustedEvent:
			e.worklog.Record(evt.Actor, "stock", "stock_item", ev.Item.ID, fmt.Sprintf("Adjusted %s by %+d (%s)", ev.Item.ItemCode, ev.Delta, ev.Reason))
		case StockClearedEvent:
			e.worklog.Record(evt.Actor, "stock", "site", ev.SiteID, fmt.Sprintf("Cleared %d stock items", ev.Items))
		case TransferStatusChangedEvent:
			e.worklog.Record(evt.Actor, "transfer", "transfer", ev.Transfer.ID, fmt.Sprintf("Transfer %s now %s", ev.Transfer.Number, ev.NewStatus))
		}
	}, EventStockAdjusted, EventStockCleared, EventTransferStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		switch ev := evt.Payload.(type) {
		case RMACreatedEvent:
			e.worklog.Record(evt.Actor, "rma", "rma", ev.RMA.ID, fmt.Sprintf("Raised %s", ev.RMA.Number))
		case RMAMovedEvent:
			e.worklog.Record(evt.Actor, "rma", "rma", ev.RMA.ID, fmt.Sprintf("%s %s: %s -> %s", ev.RMA.Number, ev.Track, ev.From, ev.To))
		}
	}, EventRMACreated, EventRMAMoved)
}

func (e *Engine) wireNotifications() {
	n := e.notifier
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketAssignedEvent)
		n.TicketAssigned(ev.Ticket, ev.AssigneeID, evt.Actor)
	}, EventTicketAssigned)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TicketStatusChangedEvent)
		n.TicketStatusChanged(ev.Ticket, ev.OldStatus, ev.NewStatus, evt.Actor)
	}, EventTicketStatusChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		n.TicketOverdue(evt.Payload.(TicketOverdueEvent).Ticket)
	}, EventTicketOverdue)

	e.Events.SubscribeTypes(func(evt Event) {
		n.RMACreated(evt.Payload.(RMACreatedEvent).RMA, evt.Actor)
	}, EventRMACreated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RMAMovedEvent)
		n.RMAMoved(ev.RMA, ev.Track, ev.From, ev.To, evt.Actor)
	}, EventRMAMoved)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(AssetRequestEvent)
		if evt.Type == EventAssetRequestSubmitted {
			n.AssetRequestSubmitted(ev.Request, ev.Asset, evt.Actor)
		} else {
			n.AssetRequestReviewed(ev.Request, ev.Asset, evt.Actor)
		}
	}, EventAssetRequestSubmitted, EventAssetRequestReviewed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransferStatusChangedEvent)
		n.TransferChanged(ev.Transfer, ev.NewStatus, evt.Actor)
	}, EventTransferStatusChanged)
}

func (e *Engine) wireMetrics() {
	m := e.metrics
	e.Events.SubscribeTypes(func(evt Event) {
		switch ev := evt.Payload.(type) {
		case TicketCreatedEvent:
			m.TicketCreated(ev.Ticket.Source)
		case RMAMovedEvent:
			m.RMAMoved(ev.Track, ev.To)
		case TransferStatusChangedEvent:
			m.TransferMoved(ev.NewStatus)
		}
	}, EventTicketCreated, EventRMAMoved, EventTransferStatusChanged)
}

func isConnectionEvent(t EventType) bool {
	return strings.HasPrefix(string(t), "messaging.")
}

// enqueueOutbox stages domain events for publication on the events topic,
// keyed by tenant code so one tenant's events stay ordered.
func (e *Engine) enqueueOutbox(evt Event) {
	if isConnectionEvent(evt.Type) {
		return
	}
	e.cfg.Lock()
	enabled, topic := e.cfg.Messaging.Enabled, e.cfg.Messaging.EventsTopic
	e.cfg.Unlock()
	if !enabled || topic == "" {
		return
	}
	code := e.clientCode(evt.ClientID)
	env, err := messaging.NewEnvelope(string(evt.Type), code, evt.Payload)
	if err != nil {
		e.log.Error("build envelope", zap.String("event", string(evt.Type)), zap.Error(err))
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.log.Error("encode envelope", zap.String("event", string(evt.Type)), zap.Error(err))
		return
	}
	if err := e.db.EnqueueOutbox(topic, data, string(evt.Type), code); err != nil {
		e.log.Error("enqueue outbox", zap.String("event", string(evt.Type)), zap.Error(err))
	}
}

func (e *Engine) broadcast(evt Event) {
	hub := e.broadcaster()
	if hub == nil {
		return
	}
	hub.Broadcast(evt.ClientID, string(evt.Type), evt.Payload)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
