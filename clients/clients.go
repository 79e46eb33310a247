// Package clients handles tenant registration, approval and sites.
package clients

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ticketops/rights"
	"ticketops/settings"
	"ticketops/store"
)

var (
	ErrRegistrationClosed = errors.New("registration is disabled")
	ErrInvalid            = errors.New("invalid client")
	ErrConflict           = errors.New("already exists")
)

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,19}$`)

type Registration struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	ContactName   string `json:"contact_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`
	Address       string `json:"address"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

type Service struct {
	db       *store.DB
	settings *settings.Service
	emitter  Emitter
}

func NewService(db *store.DB, s *settings.Service, emitter Emitter) *Service {
	return &Service{db: db, settings: s, emitter: emitter}
}

func (s *Service) validate(c *store.Client) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !codePattern.MatchString(c.Code) {
		return fmt.Errorf("%w: code must be 2-20 letters, digits, '-' or '_'", ErrInvalid)
	}
	if _, err := s.db.GetClientByCode(c.Code); err == nil {
		return fmt.Errorf("%w: client code %s", ErrConflict, c.Code)
	}
	return nil
}

// Register creates a pending client and its first admin, inactive until approval.
func (s *Service) Register(r Registration) (*store.Client, *store.User, error) {
	if !s.settings.Bool(settings.RegistrationEnabled) {
		return nil, nil, ErrRegistrationClosed
	}
	c := &store.Client{
		Name:         r.Name,
		Code:         r.Code,
		ContactName:  r.ContactName,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		Address:      r.Address,
		Status:       store.ClientPending,
	}
	if err := s.validate(c); err != nil {
		return nil, nil, err
	}
	if r.AdminUsername == "" {
		return nil, nil, fmt.Errorf("%w: admin username is required", ErrInvalid)
	}
	if _, err := s.db.GetUserByUsername(r.AdminUsername); err == nil {
		return nil, nil, fmt.Errorf("%w: username %s", ErrConflict, r.AdminUsername)
	}
	hash, err := rights.HashPassword(r.AdminPassword)
	if err != nil {
		return nil, nil, err
	}

	var admin *store.User
	err = s.db.WithTx(func(tx *store.DB) error {
		if err := tx.CreateClient(c); err != nil {
			return err
		}
		admin = &store.User{
			ClientID:     &c.ID,
			Username:     r.AdminUsername,
			PasswordHash: hash,
			FullName:     r.ContactName,
			Email:        r.ContactEmail,
			Role:         rights.RoleAdmin,
			Active:       false,
		}
		return tx.CreateUser(admin)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register client: %w", err)
	}
	s.emitter.EmitClientRegistered(c.ID, c.Code, c.Name)
	return c, admin, nil
}

// Create adds an already-approved client; super admin only.
func (s *Service) Create(actor rights.Actor, c *store.Client) error {
	if !actor.IsSuperAdmin() {
		return rights.ErrForbidden
	}
	if c.Status == "" {
		c.Status = store.ClientActive
	}
	if err := s.validate(c); err != nil {
		return err
	}
	return s.db.CreateClient(c)
}

func (s *Service) Approve(actor rights.Actor, id int64) (*store.Client, error) {
	return s.setStatus(actor, id, store.ClientActive, true)
}

func (s *Service) Suspend(actor rights.Actor, id int64) (*store.Client, error) {
	return s.setStatus(actor, id, store.ClientSuspended, false)
}

func (s *Service) setStatus(actor rights.Actor, id int64, status string, usersActive bool) (*store.Client, error) {
	if !actor.IsSuperAdmin() {
		return nil, rights.ErrForbidden
	}
	c, err := s.db.GetClient(id)
	if err != nil {
		return nil, err
	}
	old := c.Status
	if old == status {
		return c, nil
	}
	err = s.db.WithTx(func(tx *store.DB) error {
		if err := tx.SetClientStatus(id, status); err != nil {
			return err
		}
		return tx.SetClientUsersActive(id, usersActive)
	})
	if err != nil {
		return nil, err
	}
	c.Status = status
	s.emitter.EmitClientStatusChanged(c.ID, c.Code, old, status, actor.Name())
	return c, nil
}

func (s *Service) Get(actor rights.Actor, id int64) (*store.Client, error) {
	if !actor.CanAccess(id) {
		return nil, rights.ErrForbidden
	}
	return s.db.GetClient(id)
}

// List returns every client for super admins, otherwise the actor's own.
func (s *Service) List(actor rights.Actor, status string) ([]*store.Client, error) {
	if actor.IsSuperAdmin() {
		return s.db.ListClients(status)
	}
	c, err := s.db.GetClient(actor.ClientID)
	if err != nil {
		return nil, err
	}
	return []*store.Client{c}, nil
}

// Update edits contact details; the code is immutable.
func (s *Service) Update(actor rights.Actor, c *store.Client) error {
	if !actor.CanAccess(c.ID) {
		return rights.ErrForbidden
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	return s.db.UpdateClient(c)
}

func (s *Service) Delete(actor rights.Actor, id int64) error {
	if !actor.IsSuperAdmin() {
		return rights.ErrForbidden
	}
	return s.db.DeleteClient(id)
}

// --- Sites ---

func (s *Service) CreateSite(actor rights.Actor, site *store.Site) error {
	if !actor.CanAccess(site.ClientID) {
		return rights.ErrForbidden
	}
	site.Code = strings.ToUpper(strings.TrimSpace(site.Code))
	if site.Name == "" || site.Code == "" {
		return fmt.Errorf("%w: site name and code are required", ErrInvalid)
	}
	if _, err := s.db.GetSiteByCode(site.ClientID, site.Code); err == nil {
		return fmt.Errorf("%w: site code %s", ErrConflict, site.Code)
	}
	return s.db.CreateSite(site)
}

func (s *Service) Site(actor rights.Actor, id int64) (*store.Site, error) {
	site, err := s.db.GetSite(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(site.ClientID) {
		return nil, store.ErrNotFound
	}
	return site, nil
}

func (s *Service) UpdateSite(actor rights.Actor, site *store.Site) error {
	cur, err := s.Site(actor, site.ID)
	if err != nil {
		return err
	}
	site.ClientID = cur.ClientID
	return s.db.UpdateSite(site)
}

func (s *Service) DeleteSite(actor rights.Actor, id int64) error {
	if _, err := s.Site(actor, id); err != nil {
		return err
	}
	return s.db.DeleteSite(id)
}

func (s *Service) Sites(actor rights.Actor, clientID int64) ([]*store.Site, error) {
	if !actor.CanAccess(clientID) {
		return nil, rights.ErrForbidden
	}
	return s.db.ListSites(clientID)
}
