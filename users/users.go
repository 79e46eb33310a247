// Package users manages accounts, login checks and role permission sets.
package users

import (
	"errors"
	"fmt"
	"strings"

	"ticketops/rights"
	"ticketops/store"
)

var (
	ErrBadCredentials = errors.New("invalid username or password")
	ErrInvalid        = errors.New("invalid user")
	ErrConflict       = errors.New("username already taken")
	ErrSelf           = errors.New("cannot delete or deactivate yourself")
)

type Input struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	ClientID *int64 `json:"client_id,omitempty"`
	SiteID   *int64 `json:"site_id,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

type Service struct {
	db    *store.DB
	perms *rights.PermCache
}

func NewService(db *store.DB, perms *rights.PermCache) *Service {
	return &Service{db: db, perms: perms}
}

// ActorFor builds the request actor for a logged-in user.
func ActorFor(u *store.User) rights.Actor {
	return rights.Actor{UserID: u.ID, Username: u.Username, ClientID: u.TenantID(), Role: u.Role}
}

// Authenticate checks a username/password pair. Inactive users and users of
// a client that is not active are refused with the same error as a bad password.
func (s *Service) Authenticate(username, password string) (*store.User, error) {
	u, err := s.db.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !u.Active || !rights.CheckPassword(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	if u.ClientID != nil {
		c, err := s.db.GetClient(*u.ClientID)
		if err != nil || c.Status != store.ClientActive {
			return nil, ErrBadCredentials
		}
	}
	if err := s.db.TouchUserLogin(u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Get(actor rights.Actor, id int64) (*store.User, error) {
	u, err := s.db.GetUser(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(u.TenantID()) {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// List returns users visible to the actor. A super admin may narrow by clientID.
func (s *Service) List(actor rights.Actor, clientID int64) ([]*store.User, error) {
	scope := actor.Scope()
	if scope == 0 {
		scope = clientID
	}
	return s.db.ListUsers(scope)
}

func (s *Service) checkRole(actor rights.Actor, role string) error {
	if !rights.ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, role)
	}
	if role == rights.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return rights.ErrForbidden
	}
	return nil
}

func (s *Service) Create(actor rights.Actor, in Input) (*store.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalid)
	}
	if err := s.checkRole(actor, in.Role); err != nil {
		return nil, err
	}
	clientID := in.ClientID
	if !actor.IsSuperAdmin() {
		cid := actor.ClientID
		clientID = &cid
	}
	if in.Role != rights.RoleSuperAdmin && (clientID == nil || *clientID == 0) {
		return nil, fmt.Errorf("%w: client is required", ErrInvalid)
	}
	if in.Role == rights.RoleSuperAdmin {
		clientID = nil
	}
	if err := s.checkSite(clientID, in.SiteID); err != nil {
		return nil, err
	}
	if _, err := s.db.GetUserByUsername(in.Username); err == nil {
		return nil, ErrConflict
	}
	hash, err := rights.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	u := &store.User{
		ClientID:     clientID,
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		Role:         in.Role,
		SiteID:       in.SiteID,
		Active:       in.Active == nil || *in.Active,
	}
	if err := s.db.CreateUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) checkSite(clientID, siteID *int64) error {
	if siteID == nil {
		return nil
	}
	site, err := s.db.GetSite(*siteID)
	if err != nil || clientID == nil || site.ClientID != *clientID {
		return fmt.Errorf("%w: site does not belong to the user's client", ErrInvalid)
	}
	return nil
}

// Update changes profile, role, site and active flag. Username and tenant are fixed.
func (s *Service) Update(actor rights.Actor, id int64, in Input) (*store.User, error) {
	u, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if u.Role == rights.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return nil, rights.ErrForbidden
	}
	if in.Role != "" {
		if err := s.checkRole(actor, in.Role); err != nil {
			return nil, err
		}
		if (in.Role == rights.RoleSuperAdmin) != (u.Role == rights.RoleSuperAdmin) {
			return nil, fmt.Errorf("%w: cannot move a user in or out of super_admin", ErrInvalid)
		}
		u.Role = in.Role
	}
	if in.Active != nil {
		if !*in.Active && id == actor.UserID {
			return nil, ErrSelf
		}
		u.Active = *in.Active
	}
	if err := s.checkSite(u.ClientID, in.SiteID); err != nil {
		return nil, err
	}
	u.SiteID = in.SiteID
	u.FullName = strings.TrimSpace(in.FullName)
	u.Email = strings.TrimSpace(in.Email)
	if err := s.db.UpdateUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Delete(actor rights.Actor, id int64) error {
	if id == actor.UserID {
		return ErrSelf
	}
	u, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if u.Role == rights.RoleSuperAdmin && !actor.IsSuperAdmin() {
		return rights.ErrForbidden
	}
	return s.db.DeleteUser(id)
}

// SetPassword lets users change their own password and admins reset others'.
func (s *Service) SetPassword(actor rights.Actor, id int64, password string) error {
	u, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	if id != actor.UserID {
		if !actor.IsAdmin() || (u.Role == rights.RoleSuperAdmin && !actor.IsSuperAdmin()) {
			return rights.ErrForbidden
		}
	}
	hash, err := rights.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return s.db.SetUserPassword(id, hash)
}

// CreateAdmin creates a super admin outside any tenant, or resets the password
// of an existing one when reset is set.
func (s *Service) CreateAdmin(username, password string, reset bool) (*store.User, error) {
	existing, err := s.db.GetUserByUsername(username)
	if err == nil {
		if !reset {
			return nil, ErrConflict
		}
		if existing.Role != rights.RoleSuperAdmin {
			return nil, fmt.Errorf("%w: %s is not a super admin", ErrInvalid, username)
		}
		hash, err := rights.HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return existing, s.db.SetUserPassword(existing.ID, hash)
	}
	return s.Create(rights.System, Input{Username: username, Password: password, FullName: "Administrator", Role: rights.RoleSuperAdmin})
}

// EnsureAdmin seeds a default super admin when the users table is empty.
// It reports whether a user was created.
func (s *Service) EnsureAdmin(username, password string) (bool, error) {
	exists, err := s.db.UserExists()
	if err != nil || exists {
		return false, err
	}
	if _, err := s.CreateAdmin(username, password, false); err != nil {
		return false, err
	}
	return true, nil
}

// Permissions returns the stored permission set of a role.
func (s *Service) Permissions(role string) []store.Permission {
	return s.perms.RolePermissions(role)
}

func (s *Service) SetPermissions(actor rights.Actor, role string, perms []store.Permission) error {
	if !actor.IsAdmin() {
		return rights.ErrForbidden
	}
	if role == rights.RoleAdmin && !actor.IsSuperAdmin() {
		return rights.ErrForbidden
	}
	if err := s.perms.Replace(s.db, role, perms); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (s *Service) Menu(role string) []string { return s.perms.Menu(role) }

func (s *Service) Check(actor rights.Actor, module, action string) error {
	return s.perms.Check(actor, module, action)
}
