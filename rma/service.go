package rma

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"ticketops/rights"
	"ticketops/store"
)

var (
	ErrInvalid           = errors.New("invalid rma")
	ErrInvalidTransition = errors.New("invalid rma transition")
	ErrConflict          = errors.New("asset already under rma")
	ErrClosed            = errors.New("rma is closed")
)

type Input struct {
	AssetID           int64  `json:"asset_id"`
	TicketID          *int64 `json:"ticket_id,omitempty"`
	Type              string `json:"rma_type"`
	Vendor            string `json:"vendor"`
	FaultDescription  string `json:"fault_description"`
	ReplacementItemID *int64 `json:"replacement_item_id,omitempty"`
}

// Move carries the optional details recorded with a track step.
type Move struct {
	Detail   string `json:"detail"`
	Courier  string `json:"courier"`
	Tracking string `json:"tracking"`
	ItemID   *int64 `json:"item_id,omitempty"`
}

type Service struct {
	db      *store.DB
	emitter Emitter
	now     func() time.Time
}

func NewService(db *store.DB, emitter Emitter) *Service {
	return &Service{db: db, emitter: emitter, now: time.Now}
}

func (s *Service) Get(actor rights.Actor, id int64) (*store.RMA, error) {
	r, err := s.db.GetRMA(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(r.ClientID) {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (s *Service) List(actor rights.Actor, f store.RMAFilter) ([]*store.RMA, error) {
	if !actor.IsSuperAdmin() {
		f.ClientID = actor.ClientID
	}
	return s.db.ListRMAs(f)
}

func (s *Service) History(actor rights.Actor, id int64) ([]*store.RMAHistory, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.db.ListRMAHistory(id)
}

// Create opens an RMA on a faulty asset and takes the asset out of service.
func (s *Service) Create(actor rights.Actor, in Input) (*store.RMA, error) {
	if !slices.Contains(Types, in.Type) {
		return nil, fmt.Errorf("%w: type must be repair or replace", ErrInvalid)
	}
	if strings.TrimSpace(in.FaultDescription) == "" {
		return nil, fmt.Errorf("%w: fault description is required", ErrInvalid)
	}
	asset, err := s.db.GetAsset(in.AssetID)
	if err != nil || !actor.CanAccess(asset.ClientID) {
		return nil, fmt.Errorf("%w: unknown asset %d", ErrInvalid, in.AssetID)
	}
	if asset.Status == store.AssetDecommissioned {
		return nil, fmt.Errorf("%w: asset %s is decommissioned", ErrInvalid, asset.Code)
	}
	if open, err := s.db.FindActiveRMAForAsset(asset.ID); err == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrConflict, open.Number, asset.Code)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if in.TicketID != nil {
		t, err := s.db.GetTicket(*in.TicketID)
		if err != nil || t.ClientID != asset.ClientID {
			return nil, fmt.Errorf("%w: unknown ticket %d", ErrInvalid, *in.TicketID)
		}
	}
	if in.ReplacementItemID != nil {
		if in.Type != TypeReplace {
			return nil, fmt.Errorf("%w: replacement item given for a repair rma", ErrInvalid)
		}
		if _, err := spareItem(s.db, asset.ClientID, *in.ReplacementItemID); err != nil {
			return nil, err
		}
	}

	r := &store.RMA{
		ClientID:          asset.ClientID,
		SiteID:            asset.SiteID,
		AssetID:           asset.ID,
		TicketID:          in.TicketID,
		Type:              in.Type,
		Vendor:            strings.TrimSpace(in.Vendor),
		FaultDescription:  in.FaultDescription,
		RepairStatus:      RepairPending,
		ReplacementStatus: ReplacementNotRequired,
		ReplacementItemID: in.ReplacementItemID,
	}
	if in.Type == TypeReplace {
		r.ReplacementStatus = ReplacementRequested
	}
	r.Status = overall(r.RepairStatus, r.ReplacementStatus)
	if actor.UserID > 0 {
		r.CreatedBy = &actor.UserID
	}

	err = s.db.WithTx(func(tx *store.DB) error {
		number, err := tx.NextNumber(store.PrefixRMA)
		if err != nil {
			return err
		}
		r.Number = number
		if err := tx.CreateRMA(r); err != nil {
			return err
		}
		if err := tx.SetAssetStatus(asset.ID, store.AssetUnderRMA); err != nil {
			return err
		}
		if err := tx.AppendRMAHistory(r.ID, TrackRepair, "", r.RepairStatus, "created", actor.Name()); err != nil {
			return err
		}
		return tx.AppendRMAHistory(r.ID, TrackReplacement, "", r.ReplacementStatus, "created", actor.Name())
	})
	if err != nil {
		return nil, err
	}
	s.emitter.EmitRMACreated(r, actor)
	return r, nil
}

// UpdateDetails edits the vendor, fault text and shipping references.
func (s *Service) UpdateDetails(actor rights.Actor, r *store.RMA) error {
	cur, err := s.Get(actor, r.ID)
	if err != nil {
		return err
	}
	if cur.Status == StatusClosed || cur.Status == StatusCancelled {
		return ErrClosed
	}
	cur.Vendor = r.Vendor
	cur.FaultDescription = r.FaultDescription
	cur.Courier = r.Courier
	cur.OutboundTracking = r.OutboundTracking
	cur.ReturnTracking = r.ReturnTracking
	if r.ReplacementItemID != nil && cur.ReplacementStatus == ReplacementRequested {
		if _, err := spareItem(s.db, cur.ClientID, *r.ReplacementItemID); err != nil {
			return err
		}
		cur.ReplacementItemID = r.ReplacementItemID
	}
	if err := s.db.UpdateRMADetails(cur); err != nil {
		return err
	}
	*r = *cur
	return nil
}

func spareItem(db *store.DB, clientID, itemID int64) (*store.StockItem, error) {
	item, err := db.GetStockItem(itemID)
	if err != nil || item.ClientID != clientID {
		return nil, fmt.Errorf("%w: unknown stock item %d", ErrInvalid, itemID)
	}
	return item, nil
}

// MoveRepair advances the faulty unit's track.
func (s *Service) MoveRepair(actor rights.Actor, id int64, to string, m Move) (*store.RMA, error) {
	return s.move(actor, id, TrackRepair, to, m)
}

// MoveReplacement advances the spare's track.
func (s *Service) MoveReplacement(actor rights.Actor, id int64, to string, m Move) (*store.RMA, error) {
	return s.move(actor, id, TrackReplacement, to, m)
}

func (s *Service) move(actor rights.Actor, id int64, track, to string, m Move) (*store.RMA, error) {
	r, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusClosed || r.Status == StatusCancelled {
		return nil, ErrClosed
	}
	from := r.RepairStatus
	if track == TrackReplacement {
		from = r.ReplacementStatus
	}
	if !CanMove(track, from, to) {
		return nil, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, track, from, to)
	}

	err = s.db.WithTx(func(tx *store.DB) error {
		var err error
		if track == TrackRepair {
			r.RepairStatus = to
			err = s.repairEffect(tx, r, to, m)
		} else {
			r.ReplacementStatus = to
			err = s.replacementEffect(tx, r, to, m)
		}
		if err != nil {
			return err
		}
		r.Status = overall(r.RepairStatus, r.ReplacementStatus)
		if r.Status == StatusClosed {
			now := s.now().UTC()
			r.ClosedAt = &now
		}
		if err := tx.SaveRMAState(r); err != nil {
			return err
		}
		return tx.AppendRMAHistory(r.ID, track, from, to, m.Detail, actor.Name())
	})
	if err != nil {
		return nil, err
	}
	s.emitter.EmitRMAMoved(r, track, from, to, m.Detail, actor)
	return r, nil
}

func (s *Service) repairEffect(tx *store.DB, r *store.RMA, to string, m Move) error {
	switch to {
	case RepairDispatched:
		if m.Courier != "" {
			r.Courier = m.Courier
		}
		if m.Tracking != "" {
			r.OutboundTracking = m.Tracking
		}
	case RepairReturnTransit:
		if m.Tracking != "" {
			r.ReturnTracking = m.Tracking
		}
	case RepairReceived:
		if r.ReplacementStatus != ReplacementInstalled {
			return tx.SetAssetStatus(r.AssetID, store.AssetActive)
		}
		// The spare took the unit's place, so the repaired unit goes to stock.
		return creditRefurbished(tx, r)
	case RepairScrapped:
		return tx.SetAssetStatus(r.AssetID, store.AssetDecommissioned)
	}
	return nil
}

func (s *Service) replacementEffect(tx *store.DB, r *store.RMA, to string, m Move) error {
	switch to {
	case ReplacementDispatched:
		if m.ItemID != nil {
			if _, err := spareItem(tx, r.ClientID, *m.ItemID); err != nil {
				return err
			}
			r.ReplacementItemID = m.ItemID
		}
		if r.ReplacementItemID == nil {
			return fmt.Errorf("%w: choose a replacement stock item before dispatch", ErrInvalid)
		}
		if m.Courier != "" {
			r.Courier = m.Courier
		}
		return tx.AdjustStock(*r.ReplacementItemID, -1)
	case ReplacementInstalled:
		switch r.RepairStatus {
		case RepairScrapped:
			// Already decommissioned.
			return nil
		case RepairReceived:
			// The unit came back before the spare went in.
			if err := retireToSpare(tx, r.AssetID); err != nil {
				return err
			}
			return creditRefurbished(tx, r)
		default:
			return retireToSpare(tx, r.AssetID)
		}
	}
	return nil
}

// retireToSpare takes the faulty asset off its site once a spare replaced it.
func retireToSpare(tx *store.DB, assetID int64) error {
	asset, err := tx.GetAsset(assetID)
	if err != nil {
		return err
	}
	asset.Status = store.AssetSpare
	asset.SiteID = nil
	asset.Location = ""
	return tx.UpdateAsset(asset)
}

// creditRefurbished books the repaired unit into stock at the RMA's site,
// alongside the item used as its replacement.
func creditRefurbished(tx *store.DB, r *store.RMA) error {
	like, err := tx.GetStockItem(*r.ReplacementItemID)
	if err != nil {
		return fmt.Errorf("replacement item: %w", err)
	}
	site := like.SiteID
	if r.SiteID != nil {
		site = *r.SiteID
	}
	_, err = tx.CreditStock(like, site, store.ConditionRefurbished, 1)
	return err
}

// Cancel withdraws an RMA before the faulty unit has left. A requested
// replacement is cancelled with it and the asset goes back to faulty.
func (s *Service) Cancel(actor rights.Actor, id int64, reason string) (*store.RMA, error) {
	r, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusClosed || r.Status == StatusCancelled {
		return nil, ErrClosed
	}
	if r.RepairStatus != RepairPending {
		return nil, fmt.Errorf("%w: repair already %s", ErrInvalidTransition, r.RepairStatus)
	}
	if r.ReplacementStatus != ReplacementRequested && r.ReplacementStatus != ReplacementNotRequired {
		return nil, fmt.Errorf("%w: replacement already %s", ErrInvalidTransition, r.ReplacementStatus)
	}

	from := r.Status
	err = s.db.WithTx(func(tx *store.DB) error {
		if r.ReplacementStatus == ReplacementRequested {
			if err := tx.AppendRMAHistory(r.ID, TrackReplacement, r.ReplacementStatus, ReplacementCancelled, reason, actor.Name()); err != nil {
				return err
			}
			r.ReplacementStatus = ReplacementCancelled
		}
		r.Status = StatusCancelled
		now := s.now().UTC()
		r.ClosedAt = &now
		if err := tx.SaveRMAState(r); err != nil {
			return err
		}
		if err := tx.SetAssetStatus(r.AssetID, store.AssetFaulty); err != nil {
			return err
		}
		return tx.AppendRMAHistory(r.ID, TrackOverall, from, StatusCancelled, reason, actor.Name())
	})
	if err != nil {
		return nil, err
	}
	s.emitter.EmitRMAMoved(r, TrackOverall, from, StatusCancelled, reason, actor)
	return r, nil
}
