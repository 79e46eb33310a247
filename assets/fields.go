package assets

import (
	"fmt"
	"net"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"ticketops/store"
)

// Fields a request may propose. Status and ownership are managed elsewhere.
var RequestableFields = []string{
	"site_id", "serial_number", "asset_type", "make", "model", "location",
	"ip_address", "installed_at", "warranty_until", "notes",
}

// Change is one field of an applied request, for auditing.
type Change struct {
	Field string
	Old   string
	New   string
}

func dateText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, v)
	}
	return &t, nil
}

// fieldValue returns the current value of a requestable field as text.
func fieldValue(a *store.Asset, field string) string {
	switch field {
	case "site_id":
		if a.SiteID == nil {
			return ""
		}
		return strconv.FormatInt(*a.SiteID, 10)
	case "serial_number":
		return a.SerialNumber
	case "asset_type":
		return a.AssetType
	case "make":
		return a.Make
	case "model":
		return a.Model
	case "location":
		return a.Location
	case "ip_address":
		return a.IPAddress
	case "installed_at":
		return dateText(a.InstalledAt)
	case "warranty_until":
		return dateText(a.WarrantyUntil)
	case "notes":
		return a.Notes
	}
	return ""
}

// validateChanges rejects unknown fields and malformed values.
func validateChanges(changes map[string]string) error {
	if len(changes) == 0 {
		return fmt.Errorf("%w: no changes proposed", ErrInvalid)
	}
	for field, v := range changes {
		if !slices.Contains(RequestableFields, field) {
			return fmt.Errorf("%w: field %q cannot be changed by request", ErrInvalid, field)
		}
		switch field {
		case "site_id":
			if v != "" {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					return fmt.Errorf("%w: site_id must be numeric", ErrInvalid)
				}
			}
		case "ip_address":
			if v != "" && net.ParseIP(v) == nil {
				return fmt.Errorf("%w: %q is not an IP address", ErrInvalid, v)
			}
		case "installed_at", "warranty_until":
			if _, err := parseDate(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyChanges writes the proposed values onto a and returns the diffs, in field order.
func applyChanges(a *store.Asset, changes map[string]string) ([]Change, error) {
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var diffs []Change
	for _, field := range fields {
		v := strings.TrimSpace(changes[field])
		old := fieldValue(a, field)
		if old == v {
			continue
		}
		switch field {
		case "site_id":
			if v == "" {
				a.SiteID = nil
			} else {
				id, _ := strconv.ParseInt(v, 10, 64)
				a.SiteID = &id
			}
		case "serial_number":
			a.SerialNumber = v
		case "asset_type":
			a.AssetType = v
		case "make":
			a.Make = v
		case "model":
			a.Model = v
		case "location":
			a.Location = v
		case "ip_address":
			a.IPAddress = v
		case "installed_at":
			d, err := parseDate(v)
			if err != nil {
				return nil, err
			}
			a.InstalledAt = d
		case "warranty_until":
			d, err := parseDate(v)
			if err != nil {
				return nil, err
			}
			a.WarrantyUntil = d
		case "notes":
			a.Notes = v
		}
		diffs = append(diffs, Change{Field: field, Old: old, New: v})
	}
	return diffs, nil
}
