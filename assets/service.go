// Package assets manages the asset register and approval-gated update requests.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"ticketops/rights"
	"ticketops/store"
)

var (
	ErrInvalid        = errors.New("invalid asset")
	ErrConflict       = errors.New("conflict")
	ErrPendingRequest = errors.New("asset already has a pending update request")
)

var Statuses = []string{store.AssetActive, store.AssetFaulty, store.AssetUnderRMA, store.AssetSpare, store.AssetDecommissioned}

type Service struct {
	db      *store.DB
	emitter Emitter
}

func NewService(db *store.DB, emitter Emitter) *Service {
	return &Service{db: db, emitter: emitter}
}

func (s *Service) Get(actor rights.Actor, id int64) (*store.Asset, error) {
	a, err := s.db.GetAsset(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(a.ClientID) {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (s *Service) List(actor rights.Actor, f store.AssetFilter) ([]*store.Asset, error) {
	if !actor.IsSuperAdmin() {
		f.ClientID = actor.ClientID
	}
	return s.db.ListAssets(f)
}

func (s *Service) validate(a *store.Asset) error {
	a.Code = strings.TrimSpace(a.Code)
	if a.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalid)
	}
	if a.Status == "" {
		a.Status = store.AssetActive
	}
	if !slices.Contains(Statuses, a.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, a.Status)
	}
	if a.SiteID != nil {
		site, err := s.db.GetSite(*a.SiteID)
		if err != nil || site.ClientID != a.ClientID {
			return fmt.Errorf("%w: unknown site %d", ErrInvalid, *a.SiteID)
		}
	}
	if existing, err := s.db.GetAssetByCode(a.ClientID, a.Code); err == nil && existing.ID != a.ID {
		return fmt.Errorf("%w: asset code %s in use", ErrConflict, a.Code)
	}
	return nil
}

// Create registers an asset for the actor's client (any client for super admins).
func (s *Service) Create(actor rights.Actor, a *store.Asset) error {
	if !actor.IsSuperAdmin() {
		a.ClientID = actor.ClientID
	}
	if a.ClientID == 0 {
		return fmt.Errorf("%w: client is required", ErrInvalid)
	}
	if err := s.validate(a); err != nil {
		return err
	}
	if err := s.db.CreateAsset(a); err != nil {
		return err
	}
	s.emitter.EmitAssetChanged(a, "created", actor)
	return nil
}

// Update edits an asset directly; admins only. Other roles submit requests.
func (s *Service) Update(actor rights.Actor, a *store.Asset) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: submit an update request instead", rights.ErrForbidden)
	}
	cur, err := s.Get(actor, a.ID)
	if err != nil {
		return err
	}
	a.ClientID = cur.ClientID
	if err := s.validate(a); err != nil {
		return err
	}
	if err := s.db.UpdateAsset(a); err != nil {
		return err
	}
	s.emitter.EmitAssetChanged(a, "updated", actor)
	return nil
}

func (s *Service) Delete(actor rights.Actor, id int64) error {
	a, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if _, err := s.db.FindActiveRMAForAsset(id); err == nil {
		return fmt.Errorf("%w: asset %s has an active RMA", ErrConflict, a.Code)
	}
	if err := s.db.DeleteAsset(id); err != nil {
		return err
	}
	s.emitter.EmitAssetChanged(a, "deleted", actor)
	return nil
}

// --- Update requests ---

// SubmitRequest proposes field changes for admin approval. Only one request
// per asset may be pending.
func (s *Service) SubmitRequest(actor rights.Actor, assetID int64, changes map[string]string, reason string) (*store.AssetUpdateRequest, error) {
	a, err := s.Get(actor, assetID)
	if err != nil {
		return nil, err
	}
	if err := validateChanges(changes); err != nil {
		return nil, err
	}
	if v, ok := changes["site_id"]; ok && v != "" {
		candidate := *a
		if _, err := applyChanges(&candidate, map[string]string{"site_id": v}); err != nil {
			return nil, err
		}
		if err := s.validate(&candidate); err != nil {
			return nil, err
		}
	}
	if _, err := s.db.PendingRequestForAsset(assetID); err == nil {
		return nil, ErrPendingRequest
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return nil, err
	}
	r := &store.AssetUpdateRequest{
		AssetID:     a.ID,
		ClientID:    a.ClientID,
		RequestedBy: actor.UserID,
		ChangesJSON: string(raw),
		Reason:      reason,
	}
	if err := s.db.CreateAssetUpdateRequest(r); err != nil {
		return nil, err
	}
	s.emitter.EmitAssetRequestSubmitted(r, a, actor)
	return r, nil
}

func (s *Service) Requests(actor rights.Actor, status string) ([]*store.AssetUpdateRequest, error) {
	return s.db.ListAssetUpdateRequests(actor.Scope(), status)
}

func (s *Service) request(actor rights.Actor, id int64) (*store.AssetUpdateRequest, error) {
	if !actor.IsAdmin() {
		return nil, rights.ErrForbidden
	}
	r, err := s.db.GetAssetUpdateRequest(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(r.ClientID) {
		return nil, store.ErrNotFound
	}
	if r.Status != store.RequestPending {
		return nil, fmt.Errorf("%w: request is %s", ErrConflict, r.Status)
	}
	return r, nil
}

// Approve applies every proposed change atomically and audits old/new per field.
func (s *Service) Approve(actor rights.Actor, id int64, note string) (*store.AssetUpdateRequest, error) {
	r, err := s.request(actor, id)
	if err != nil {
		return nil, err
	}
	var changes map[string]string
	if err := json.Unmarshal([]byte(r.ChangesJSON), &changes); err != nil {
		return nil, fmt.Errorf("decode request %d: %w", r.ID, err)
	}

	var asset *store.Asset
	err = s.db.WithTx(func(tx *store.DB) error {
		a, err := tx.GetAsset(r.AssetID)
		if err != nil {
			return err
		}
		diffs, err := applyChanges(a, changes)
		if err != nil {
			return err
		}
		if err := tx.UpdateAsset(a); err != nil {
			return err
		}
		for _, d := range diffs {
			if err := tx.AppendAudit(a.ClientID, "asset", a.ID, "update:"+d.Field, d.Old, d.New, actor.Name()); err != nil {
				return err
			}
		}
		asset = a
		return tx.ReviewAssetUpdateRequest(r.ID, store.RequestApproved, actor.UserID, note)
	})
	if err != nil {
		return nil, err
	}
	r.Status = store.RequestApproved
	r.ReviewNote = note
	s.emitter.EmitAssetRequestReviewed(r, asset, actor)
	return r, nil
}

// Reject closes the request without touching the asset. A note is required.
func (s *Service) Reject(actor rights.Actor, id int64, note string) (*store.AssetUpdateRequest, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("%w: a rejection note is required", ErrInvalid)
	}
	r, err := s.request(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.ReviewAssetUpdateRequest(r.ID, store.RequestRejected, actor.UserID, note); err != nil {
		return nil, err
	}
	r.Status = store.RequestRejected
	r.ReviewNote = note
	a, _ := s.db.GetAsset(r.AssetID)
	s.emitter.EmitAssetRequestReviewed(r, a, actor)
	return r, nil
}
