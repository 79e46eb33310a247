// Package rma runs the repair/replace workflow for faulty assets. Each RMA
// carries two independent tracks: the faulty unit's repair track and the
// spare's replacement track. The overall status is derived from both.
package rma

import "slices"

const (
	TypeRepair  = "repair"
	TypeReplace = "replace"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
	StatusCancelled  = "cancelled"
)

const (
	TrackRepair      = "repair"
	TrackReplacement = "replacement"
	TrackOverall     = "overall"
)

// Repair track.
const (
	RepairPending        = "pending"
	RepairDispatched     = "dispatched_to_vendor"
	RepairAtVendor       = "at_vendor"
	RepairRepaired       = "repaired"
	RepairVendorReplaced = "vendor_replaced"
	RepairBeyondRepair   = "beyond_repair"
	RepairReturnTransit  = "return_transit"
	RepairReceived       = "received"
	RepairScrapped       = "scrapped"
)

// Replacement track.
const (
	ReplacementNotRequired = "not_required"
	ReplacementRequested   = "requested"
	ReplacementDispatched  = "dispatched"
	ReplacementDelivered   = "delivered"
	ReplacementInstalled   = "installed"
	ReplacementCancelled   = "cancelled"
)

var repairFlow = map[string][]string{
	RepairPending:        {RepairDispatched},
	RepairDispatched:     {RepairAtVendor},
	RepairAtVendor:       {RepairRepaired, RepairVendorReplaced, RepairBeyondRepair},
	RepairRepaired:       {RepairReturnTransit},
	RepairVendorReplaced: {RepairReturnTransit},
	RepairReturnTransit:  {RepairReceived},
	RepairBeyondRepair:   {RepairScrapped},
}

var replacementFlow = map[string][]string{
	ReplacementRequested:  {ReplacementDispatched, ReplacementCancelled},
	ReplacementDispatched: {ReplacementDelivered},
	ReplacementDelivered:  {ReplacementInstalled},
}

var Types = []string{TypeRepair, TypeReplace}

func flow(track string) map[string][]string {
	if track == TrackReplacement {
		return replacementFlow
	}
	return repairFlow
}

// CanMove reports whether track may go from one status to another.
func CanMove(track, from, to string) bool {
	return slices.Contains(flow(track)[from], to)
}

// NextSteps lists the statuses reachable from the current one on a track.
func NextSteps(track, from string) []string {
	return slices.Clone(flow(track)[from])
}

func repairDone(s string) bool {
	return s == RepairReceived || s == RepairScrapped
}

func replacementDone(s string) bool {
	return s == ReplacementNotRequired || s == ReplacementInstalled || s == ReplacementCancelled
}

// overall derives the RMA status from its two tracks.
func overall(repair, replacement string) string {
	switch {
	case repairDone(repair) && replacementDone(replacement):
		return StatusClosed
	case repair == RepairPending && (replacement == ReplacementRequested || replacement == ReplacementNotRequired):
		return StatusOpen
	default:
		return StatusInProgress
	}
}
