package tickets

import "slices"

// Ticket statuses
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusOnHold     = "on_hold"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
	StatusReopened   = "reopened"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

const (
	SourceManual = "manual"
	SourceAlert  = "alert"
)

var Categories = []string{"camera", "recorder", "network", "power", "software", "other"}

var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
	StatusOpen:       {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusOpen, StatusCancelled},
	StatusInProgress: {StatusOnHold, StatusResolved, StatusOpen, StatusCancelled},
	StatusOnHold:     {StatusInProgress, StatusOpen, StatusCancelled},
	StatusResolved:   {StatusClosed, StatusInProgress, StatusReopened, StatusCancelled},
	StatusClosed:     {StatusReopened},
	StatusReopened:   {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusCancelled:  nil,
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

// NextStatuses returns the statuses reachable from status.
func NextStatuses(status string) []string {
	return slices.Clone(transitions[status])
}

// IsDone is true for statuses that no longer count as open work.
func IsDone(status string) bool {
	return status == StatusResolved || status == StatusClosed || status == StatusCancelled
}

func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// categoryForAsset maps an asset type to the ticket category used for alerts.
func categoryForAsset(assetType string) string {
	switch assetType {
	case "camera", "ptz", "dome", "bullet":
		return "camera"
	case "nvr", "dvr", "recorder", "vms":
		return "recorder"
	case "switch", "router", "poe_switch", "network":
		return "network"
	case "ups", "psu", "power":
		return "power"
	default:
		return "other"
	}
}

func priorityForSeverity(severity string) string {
	switch severity {
	case "critical":
		return PriorityCritical
	case "warning", "major":
		return PriorityHigh
	case "info", "minor":
		return PriorityLow
	default:
		return PriorityMedium
	}
}
