package rights

import "ticketops/store"

var (
	allActions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove}
	crud       = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}
	work       = []string{ActionView, ActionCreate, ActionEdit}
	viewOnly   = []string{ActionView}
)

// DefaultMatrix is the permission set seeded on first start. super_admin
// bypasses checks and is not listed.
var DefaultMatrix = map[string]map[string][]string{
	RoleAdmin: {
		ModuleTickets:   allActions,
		ModuleAssets:    allActions,
		ModuleStock:     allActions,
		ModuleTransfers: allActions,
		ModuleRMAs:      allActions,
		ModuleUsers:     crud,
		ModuleSettings:  {ActionView, ActionEdit},
		ModuleClients:   {ActionView, ActionEdit},
		ModuleReports:   viewOnly,
		ModuleWorkLogs:  allActions,
	},
	RoleEngineer: {
		ModuleTickets:   work,
		ModuleAssets:    work,
		ModuleStock:     work,
		ModuleTransfers: work,
		ModuleRMAs:      work,
		ModuleUsers:     viewOnly,
		ModuleReports:   viewOnly,
		ModuleWorkLogs:  crud,
	},
	RoleTechnician: {
		ModuleTickets:   work,
		ModuleAssets:    {ActionView, ActionEdit},
		ModuleStock:     viewOnly,
		ModuleTransfers: viewOnly,
		ModuleRMAs:      {ActionView, ActionCreate},
		ModuleWorkLogs:  crud,
	},
	RoleViewer: {
		ModuleTickets:   viewOnly,
		ModuleAssets:    viewOnly,
		ModuleStock:     viewOnly,
		ModuleTransfers: viewOnly,
		ModuleRMAs:      viewOnly,
		ModuleReports:   viewOnly,
		ModuleWorkLogs:  viewOnly,
	},
}

// SeedDefaults writes DefaultMatrix when the permission table is empty.
func SeedDefaults(db *store.DB) (bool, error) {
	n, err := db.CountPermissions()
	if err != nil || n > 0 {
		return false, err
	}
	for role, modules := range DefaultMatrix {
		var perms []store.Permission
		for module, actions := range modules {
			for _, action := range actions {
				perms = append(perms, store.Permission{Role: role, Module: module, Action: action})
			}
		}
		if err := db.ReplaceRolePermissions(role, perms); err != nil {
			return false, err
		}
	}
	return true, nil
}
