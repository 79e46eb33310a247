package notify

import (
	"fmt"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/store"
)

// clientAdmins returns the active admins of a client.
func (n *Notifier) clientAdmins(clientID int64) []int64 {
	users, err := n.db.ListUsersByRole(clientID, rights.RoleAdmin)
	if err != nil {
		n.log.Error("list client admins", zap.Int64("client", clientID), zap.Error(err))
		return nil
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func ids(ptrs ...*int64) []int64 {
	var out []int64
	for _, p := range ptrs {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func (n *Notifier) TicketAssigned(t *store.Ticket, assigneeID int64, actor rights.Actor) {
	n.Send(Message{
		ClientID: t.ClientID, Type: "ticket_assigned",
		Title:      fmt.Sprintf("%s assigned to you", t.Number),
		Body:       fmt.Sprintf("%s assigned %s (%s priority): %s", actor.Name(), t.Number, t.Priority, t.Title),
		EntityType: "ticket", EntityID: t.ID,
	}, actor.UserID, assigneeID)
}

func (n *Notifier) TicketStatusChanged(t *store.Ticket, oldStatus, newStatus string, actor rights.Actor) {
	n.Send(Message{
		ClientID: t.ClientID, Type: "ticket_status",
		Title:      fmt.Sprintf("%s is now %s", t.Number, newStatus),
		Body:       fmt.Sprintf("%s moved %s from %s to %s: %s", actor.Name(), t.Number, oldStatus, newStatus, t.Title),
		EntityType: "ticket", EntityID: t.ID,
	}, actor.UserID, ids(t.ReportedBy, t.AssignedTo)...)
}

func (n *Notifier) TicketOverdue(t *store.Ticket) {
	sev := SeverityWarning
	if t.Priority == "critical" {
		sev = SeverityCritical
	}
	recipients := append(ids(t.AssignedTo), n.clientAdmins(t.ClientID)...)
	n.Send(Message{
		ClientID: t.ClientID, Type: "ticket_overdue", Severity: sev,
		Title:      fmt.Sprintf("%s is overdue", t.Number),
		Body:       fmt.Sprintf("%s (%s priority) passed its due time: %s", t.Number, t.Priority, t.Title),
		EntityType: "ticket", EntityID: t.ID,
	}, 0, recipients...)
}

func (n *Notifier) RMACreated(r *store.RMA, actor rights.Actor) {
	n.Send(Message{
		ClientID: r.ClientID, Type: "rma_created",
		Title:      fmt.Sprintf("%s opened (%s)", r.Number, r.Type),
		Body:       fmt.Sprintf("%s opened %s: %s", actor.Name(), r.Number, r.FaultDescription),
		EntityType: "rma", EntityID: r.ID,
	}, actor.UserID, n.clientAdmins(r.ClientID)...)
}

func (n *Notifier) RMAMoved(r *store.RMA, track, from, to string, actor rights.Actor) {
	sev := SeverityInfo
	if to == "beyond_repair" || to == "scrapped" {
		sev = SeverityWarning
	}
	recipients := append(ids(r.CreatedBy), n.clientAdmins(r.ClientID)...)
	n.Send(Message{
		ClientID: r.ClientID, Type: "rma_moved", Severity: sev,
		Title:      fmt.Sprintf("%s %s: %s", r.Number, track, to),
		Body:       fmt.Sprintf("%s moved the %s track of %s from %s to %s (overall %s)", actor.Name(), track, r.Number, from, to, r.Status),
		EntityType: "rma", EntityID: r.ID,
	}, actor.UserID, recipients...)
}

func (n *Notifier) AssetRequestSubmitted(req *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor) {
	n.Send(Message{
		ClientID: req.ClientID, Type: "asset_request",
		Title:      fmt.Sprintf("Update requested for %s", a.Code),
		Body:       fmt.Sprintf("%s requested changes to %s: %s", actor.Name(), a.Code, req.Reason),
		EntityType: "asset_update_request", EntityID: req.ID,
	}, actor.UserID, n.clientAdmins(req.ClientID)...)
}

func (n *Notifier) AssetRequestReviewed(req *store.AssetUpdateRequest, a *store.Asset, actor rights.Actor) {
	sev := SeverityInfo
	if req.Status == store.RequestRejected {
		sev = SeverityWarning
	}
	body := fmt.Sprintf("%s %s your changes to %s", actor.Name(), req.Status, a.Code)
	if req.ReviewNote != "" {
		body += ": " + req.ReviewNote
	}
	n.Send(Message{
		ClientID: req.ClientID, Type: "asset_request_reviewed", Severity: sev,
		Title:      fmt.Sprintf("Update for %s %s", a.Code, req.Status),
		Body:       body,
		EntityType: "asset_update_request", EntityID: req.ID,
	}, actor.UserID, req.RequestedBy)
}

// TransferChanged only announces dispatch and completion.
func (n *Notifier) TransferChanged(tr *store.StockTransfer, newStatus string, actor rights.Actor) {
	if newStatus != store.TransferDispatched && newStatus != store.TransferCompleted {
		return
	}
	n.Send(Message{
		ClientID: tr.ClientID, Type: "transfer_" + newStatus,
		Title:      fmt.Sprintf("%s %s", tr.Number, newStatus),
		Body:       fmt.Sprintf("%s marked transfer %s as %s (%d lines)", actor.Name(), tr.Number, newStatus, len(tr.Items)),
		EntityType: "transfer", EntityID: tr.ID,
	}, actor.UserID, n.clientAdmins(tr.ClientID)...)
}
