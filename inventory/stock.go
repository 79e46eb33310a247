// Package inventory manages spare stock per site and inter-site transfers.
package inventory

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"ticketops/rights"
	"ticketops/store"
)

var (
	ErrInvalid           = errors.New("invalid stock operation")
	ErrInvalidTransition = errors.New("invalid transfer transition")
	ErrConflict          = errors.New("conflict")

	ErrInsufficientStock = store.ErrInsufficientStock
)

var Conditions = []string{store.ConditionNew, store.ConditionRefurbished, store.ConditionFaulty}

type Service struct {
	db      *store.DB
	emitter Emitter
}

func NewService(db *store.DB, emitter Emitter) *Service {
	return &Service{db: db, emitter: emitter}
}

// site returns a site the actor may use.
func (s *Service) site(actor rights.Actor, id int64) (*store.Site, error) {
	site, err := s.db.GetSite(id)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown site %d", ErrInvalid, id)
	}
	if !actor.CanAccess(site.ClientID) {
		return nil, fmt.Errorf("%w: unknown site %d", ErrInvalid, id)
	}
	return site, nil
}

func (s *Service) Item(actor rights.Actor, id int64) (*store.StockItem, error) {
	item, err := s.db.GetStockItem(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(item.ClientID) {
		return nil, store.ErrNotFound
	}
	return item, nil
}

func (s *Service) Items(actor rights.Actor, f store.StockFilter) ([]*store.StockItem, error) {
	if !actor.IsSuperAdmin() {
		f.ClientID = actor.ClientID
	}
	return s.db.ListStock(f)
}

// CreateItem adds a stock line at a site. The opening quantity is audited as an adjustment.
func (s *Service) CreateItem(actor rights.Actor, item *store.StockItem) error {
	site, err := s.site(actor, item.SiteID)
	if err != nil {
		return err
	}
	item.ClientID = site.ClientID
	item.ItemCode = strings.TrimSpace(item.ItemCode)
	if item.ItemCode == "" {
		return fmt.Errorf("%w: item code is required", ErrInvalid)
	}
	if item.Condition == "" {
		item.Condition = store.ConditionNew
	}
	if !slices.Contains(Conditions, item.Condition) {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalid, item.Condition)
	}
	if item.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalid)
	}
	if _, err := s.db.FindStockItem(item.SiteID, item.ItemCode, item.Condition); err == nil {
		return fmt.Errorf("%w: %s (%s) already stocked at %s", ErrConflict, item.ItemCode, item.Condition, site.Code)
	}
	if err := s.db.CreateStockItem(item); err != nil {
		return err
	}
	if item.Quantity > 0 {
		s.emitter.EmitStockAdjusted(item, item.Quantity, "opening balance", actor)
	}
	return nil
}

func (s *Service) UpdateItem(actor rights.Actor, item *store.StockItem) error {
	if _, err := s.Item(actor, item.ID); err != nil {
		return err
	}
	return s.db.UpdateStockItem(item)
}

func (s *Service) DeleteItem(actor rights.Actor, id int64) error {
	item, err := s.Item(actor, id)
	if err != nil {
		return err
	}
	if item.Quantity > 0 {
		return fmt.Errorf("%w: %s still holds %d units", ErrConflict, item.ItemCode, item.Quantity)
	}
	return s.db.DeleteStockItem(id)
}

// Adjust changes a quantity by delta; it never drops below zero.
func (s *Service) Adjust(actor rights.Actor, id int64, delta int, reason string) (*store.StockItem, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", ErrInvalid)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: a reason is required", ErrInvalid)
	}
	item, err := s.Item(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.AdjustStock(id, delta); err != nil {
		return nil, err
	}
	item.Quantity += delta
	s.emitter.EmitStockAdjusted(item, delta, reason, actor)
	return item, nil
}

// ClearStock zeroes every item at a site, writing one audit entry per item.
func (s *Service) ClearStock(actor rights.Actor, siteID int64) (int, error) {
	if !actor.IsAdmin() {
		return 0, rights.ErrForbidden
	}
	site, err := s.site(actor, siteID)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.WithTx(func(tx *store.DB) error {
		cleared, err := tx.ClearSiteStock(siteID)
		if err != nil {
			return err
		}
		for _, item := range cleared {
			if err := tx.AppendAudit(item.ClientID, "stock_item", item.ID, "cleared",
				strconv.Itoa(item.Quantity), "0", actor.Name()); err != nil {
				return err
			}
		}
		n = len(cleared)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.emitter.EmitStockCleared(site.ClientID, siteID, n, actor)
	return n, nil
}
