package inventory

import (
	"fmt"
	"slices"
	"time"

	"ticketops/rights"
	"ticketops/store"
)

var transferTransitions = map[string][]string{
	store.TransferPending:    {store.TransferDispatched, store.TransferCancelled},
	store.TransferDispatched: {store.TransferInTransit, store.TransferCancelled},
	store.TransferInTransit:  {store.TransferCompleted},
}

func CanTransferTransition(from, to string) bool {
	return slices.Contains(transferTransitions[from], to)
}

type TransferLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type TransferInput struct {
	FromSiteID int64          `json:"from_site_id"`
	ToSiteID   int64          `json:"to_site_id"`
	Notes      string         `json:"notes"`
	Lines      []TransferLine `json:"lines"`
}

// Shipping carries courier details recorded at dispatch.
type Shipping struct {
	Courier    string `json:"courier"`
	TrackingNo string `json:"tracking_no"`
}

func (s *Service) Transfer(actor rights.Actor, id int64) (*store.StockTransfer, error) {
	tr, err := s.db.GetTransfer(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(tr.ClientID) {
		return nil, store.ErrNotFound
	}
	return tr, nil
}

func (s *Service) Transfers(actor rights.Actor, f store.TransferFilter) ([]*store.StockTransfer, error) {
	if !actor.IsSuperAdmin() {
		f.ClientID = actor.ClientID
	}
	return s.db.ListTransfers(f)
}

// CreateTransfer records a pending transfer between two sites of one client.
// Lines for the same item are merged. Stock is not moved until dispatch.
func (s *Service) CreateTransfer(actor rights.Actor, in TransferInput) (*store.StockTransfer, error) {
	if in.FromSiteID == in.ToSiteID {
		return nil, fmt.Errorf("%w: source and destination must differ", ErrInvalid)
	}
	from, err := s.site(actor, in.FromSiteID)
	if err != nil {
		return nil, err
	}
	to, err := s.site(actor, in.ToSiteID)
	if err != nil {
		return nil, err
	}
	if from.ClientID != to.ClientID {
		return nil, fmt.Errorf("%w: sites belong to different clients", ErrInvalid)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalid)
	}

	qty := make(map[int64]int)
	var order []int64
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line quantity must be positive", ErrInvalid)
		}
		if _, seen := qty[l.ItemID]; !seen {
			order = append(order, l.ItemID)
		}
		qty[l.ItemID] += l.Quantity
	}

	var items []*store.StockTransferItem
	for _, id := range order {
		item, err := s.db.GetStockItem(id)
		if err != nil || item.SiteID != from.ID {
			return nil, fmt.Errorf("%w: item %d is not stocked at %s", ErrInvalid, id, from.Code)
		}
		if item.Quantity < qty[id] {
			return nil, fmt.Errorf("%w: %s has %d, %d requested", ErrInsufficientStock, item.ItemCode, item.Quantity, qty[id])
		}
		items = append(items, &store.StockTransferItem{
			SourceItemID: item.ID,
			ItemCode:     item.ItemCode,
			Condition:    item.Condition,
			Quantity:     qty[id],
		})
	}

	number, err := s.db.NextNumber(store.PrefixTransfer)
	if err != nil {
		return nil, err
	}
	tr := &store.StockTransfer{
		Number:     number,
		ClientID:   from.ClientID,
		FromSiteID: from.ID,
		ToSiteID:   to.ID,
		Status:     store.TransferPending,
		Notes:      in.Notes,
		Items:      items,
	}
	if actor.UserID > 0 {
		tr.RequestedBy = &actor.UserID
	}
	if err := s.db.CreateTransfer(tr); err != nil {
		return nil, err
	}
	s.emitter.EmitTransferStatusChanged(tr, "", tr.Status, actor)
	return tr, nil
}

// move runs a status change and its stock effect in one transaction.
func (s *Service) move(actor rights.Actor, id int64, to string, effect func(tx *store.DB, tr *store.StockTransfer) error) (*store.StockTransfer, error) {
	tr, err := s.Transfer(actor, id)
	if err != nil {
		return nil, err
	}
	from := tr.Status
	if !CanTransferTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := time.Now().UTC()
	switch to {
	case store.TransferDispatched:
		tr.DispatchedAt = &now
	case store.TransferCompleted:
		tr.CompletedAt = &now
	case store.TransferCancelled:
		tr.CancelledAt = &now
	}
	tr.Status = to
	err = s.db.WithTx(func(tx *store.DB) error {
		if effect != nil {
			if err := effect(tx, tr); err != nil {
				return err
			}
		}
		return tx.SaveTransferState(tr)
	})
	if err != nil {
		return nil, err
	}
	s.emitter.EmitTransferStatusChanged(tr, from, to, actor)
	return tr, nil
}

// Dispatch deducts every line from the source site. If any line is short
// nothing is deducted.
func (s *Service) Dispatch(actor rights.Actor, id int64, ship Shipping) (*store.StockTransfer, error) {
	return s.move(actor, id, store.TransferDispatched, func(tx *store.DB, tr *store.StockTransfer) error {
		tr.Courier, tr.TrackingNo = ship.Courier, ship.TrackingNo
		for _, it := range tr.Items {
			if err := tx.AdjustStock(it.SourceItemID, -it.Quantity); err != nil {
				return fmt.Errorf("deduct %s: %w", it.ItemCode, err)
			}
		}
		return nil
	})
}

func (s *Service) MarkInTransit(actor rights.Actor, id int64) (*store.StockTransfer, error) {
	return s.move(actor, id, store.TransferInTransit, nil)
}

// Complete credits the destination site, creating stock lines as needed.
func (s *Service) Complete(actor rights.Actor, id int64) (*store.StockTransfer, error) {
	return s.move(actor, id, store.TransferCompleted, func(tx *store.DB, tr *store.StockTransfer) error {
		for _, it := range tr.Items {
			src, err := tx.GetStockItem(it.SourceItemID)
			if err != nil {
				return fmt.Errorf("source item %s: %w", it.ItemCode, err)
			}
			if _, err := tx.CreditStock(src, tr.ToSiteID, it.Condition, it.Quantity); err != nil {
				return fmt.Errorf("credit %s: %w", it.ItemCode, err)
			}
		}
		return nil
	})
}

// Cancel aborts a transfer; after dispatch the quantities go back to the source.
func (s *Service) Cancel(actor rights.Actor, id int64, reason string) (*store.StockTransfer, error) {
	return s.move(actor, id, store.TransferCancelled, func(tx *store.DB, tr *store.StockTransfer) error {
		if reason != "" {
			tr.Notes = reason
		}
		if tr.DispatchedAt == nil {
			return nil
		}
		for _, it := range tr.Items {
			if err := tx.AdjustStock(it.SourceItemID, it.Quantity); err != nil {
				return fmt.Errorf("return %s: %w", it.ItemCode, err)
			}
		}
		return nil
	})
}
