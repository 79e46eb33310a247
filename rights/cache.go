package rights

import (
	"fmt"
	"sync"
	"time"

	"ticketops/store"
)

// PermCache is the in-memory role → module → action table.
type PermCache struct {
	mu      sync.RWMutex
	data    map[string]map[string]map[string]bool
	updated time.Time
}

func NewPermCache() *PermCache {
	return &PermCache{data: make(map[string]map[string]map[string]bool)}
}

// Refresh reloads the whole table from the database.
func (pc *PermCache) Refresh(db *store.DB) error {
	perms, err := db.ListPermissions()
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	pc.Load(perms)
	return nil
}

func (pc *PermCache) Load(perms []store.Permission) {
	data := make(map[string]map[string]map[string]bool)
	for _, p := range perms {
		if data[p.Role] == nil {
			data[p.Role] = make(map[string]map[string]bool)
		}
		if data[p.Role][p.Module] == nil {
			data[p.Role][p.Module] = make(map[string]bool)
		}
		data[p.Role][p.Module][p.Action] = true
	}
	pc.mu.Lock()
	pc.data = data
	pc.updated = time.Now()
	pc.mu.Unlock()
}

func (pc *PermCache) Has(role, module, action string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.data[role][module][action]
}

// Check returns ErrForbidden unless the actor holds module/action.
func (pc *PermCache) Check(a Actor, module, action string) error {
	if pc.Has(a.Role, module, action) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot %s %s", ErrForbidden, a.Role, action, module)
}

// RolePermissions lists a role's grants in module/action order.
func (pc *PermCache) RolePermissions(role string) []store.Permission {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	var out []store.Permission
	for _, m := range Modules {
		for _, a := range Actions {
			if role == RoleSuperAdmin || pc.data[role][m][a] {
				out = append(out, store.Permission{Role: role, Module: m, Action: a})
			}
		}
	}
	return out
}

// Menu returns the modules the role can view, in menu order.
func (pc *PermCache) Menu(role string) []string {
	var menu []string
	for _, m := range Modules {
		if pc.Has(role, m, ActionView) {
			menu = append(menu, m)
		}
	}
	return menu
}

func (pc *PermCache) Updated() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.updated
}

// Replace validates and stores a role's permission set, then refreshes the cache.
func (pc *PermCache) Replace(db *store.DB, role string, perms []store.Permission) error {
	if !ValidRole(role) || role == RoleSuperAdmin {
		return fmt.Errorf("cannot set permissions for role %q", role)
	}
	for i, p := range perms {
		if !ValidModule(p.Module) || !ValidAction(p.Action) {
			return fmt.Errorf("invalid permission %s/%s", p.Module, p.Action)
		}
		perms[i].Role = role
	}
	if err := db.ReplaceRolePermissions(role, perms); err != nil {
		return err
	}
	return pc.Refresh(db)
}
