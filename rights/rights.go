// Package rights holds roles, per-module permissions and the request actor.
package rights

import (
	"errors"
	"slices"
)

// ErrForbidden is returned when an actor lacks the right for an operation.
var ErrForbidden = errors.New("forbidden")

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleEngineer   = "engineer"
	RoleTechnician = "technician"
	RoleViewer     = "viewer"
)

const (
	ModuleTickets   = "tickets"
	ModuleAssets    = "assets"
	ModuleStock     = "stock"
	ModuleTransfers = "transfers"
	ModuleRMAs      = "rmas"
	ModuleUsers     = "users"
	ModuleSettings  = "settings"
	ModuleClients   = "clients"
	ModuleReports   = "reports"
	ModuleWorkLogs  = "worklogs"
)

const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionApprove = "approve"
)

// Roles in descending order of privilege.
var Roles = []string{RoleSuperAdmin, RoleAdmin, RoleEngineer, RoleTechnician, RoleViewer}

// Modules in menu order.
var Modules = []string{
	ModuleTickets, ModuleAssets, ModuleStock, ModuleTransfers, ModuleRMAs,
	ModuleWorkLogs, ModuleReports, ModuleUsers, ModuleClients, ModuleSettings,
}

var Actions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove}

func ValidRole(r string) bool   { return slices.Contains(Roles, r) }
func ValidModule(m string) bool { return slices.Contains(Modules, m) }
func ValidAction(a string) bool { return slices.Contains(Actions, a) }

// Actor identifies who performs an operation.
type Actor struct {
	UserID   int64
	Username string
	ClientID int64
	Role     string
}

// System is the actor for background work (sweeps, alerts, imports).
var System = Actor{Username: "system", Role: RoleSuperAdmin}

func (a Actor) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

// IsAdmin is true for tenant admins and super admins.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin || a.Role == RoleSuperAdmin }

// CanAccess reports whether the actor may touch records of clientID.
func (a Actor) CanAccess(clientID int64) bool {
	return a.IsSuperAdmin() || a.ClientID == clientID
}

// Scope returns the client filter for list queries: 0 (all) for super admins.
func (a Actor) Scope() int64 {
	if a.IsSuperAdmin() {
		return 0
	}
	return a.ClientID
}

// Name is the audit/history label for the actor.
func (a Actor) Name() string {
	if a.Username == "" {
		return "system"
	}
	return a.Username
}
