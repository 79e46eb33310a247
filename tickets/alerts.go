package tickets

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/store"
)

// DeviceAlert is an inbound alarm from a VMS or device monitor.
type DeviceAlert struct {
	Serial   string    `json:"serial"`
	IP       string    `json:"ip"`
	Message  string    `json:"message"`
	Severity string    `json:"severity"`
	At       time.Time `json:"at"`
}

const maxTitleLen = 120

// HandleAlert opens a ticket for the alerting asset unless one is already
// open, in which case the alert is added to it as an internal note. It
// reports whether a new ticket was created.
func (s *Service) HandleAlert(alert DeviceAlert) (*store.Ticket, bool, error) {
	if alert.Serial == "" && alert.IP == "" {
		return nil, false, fmt.Errorf("%w: alert carries no serial or ip", ErrInvalid)
	}
	asset, err := s.db.FindAssetByDevice(alert.Serial, alert.IP)
	if err != nil {
		return nil, false, fmt.Errorf("match alert device %s/%s: %w", alert.Serial, alert.IP, err)
	}

	existing, err := s.db.FindOpenTicketForAsset(asset.ID)
	if err == nil {
		body := fmt.Sprintf("repeat alert (%s): %s", alert.Severity, alert.Message)
		c := &store.TicketComment{TicketID: existing.ID, Author: rights.System.Name(), Body: body, Internal: true}
		if err := s.db.AddTicketComment(c); err != nil {
			return nil, false, err
		}
		s.log.Debug("alert folded into open ticket", zap.String("ticket", existing.Number), zap.String("asset", asset.Code))
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	title := fmt.Sprintf("%s: %s", asset.Code, alert.Message)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	desc := fmt.Sprintf("Automatic ticket from device alert.\nSeverity: %s\nSerial: %s\nIP: %s\nLocation: %s",
		alert.Severity, asset.SerialNumber, asset.IPAddress, asset.Location)
	if !alert.At.IsZero() {
		desc += "\nRaised: " + alert.At.UTC().Format(time.RFC3339)
	}
	t, err := s.create(rights.System, Input{
		ClientID:    asset.ClientID,
		SiteID:      asset.SiteID,
		AssetID:     &asset.ID,
		Title:       title,
		Description: desc,
		Category:    categoryForAsset(asset.AssetType),
		Priority:    priorityForSeverity(alert.Severity),
	}, SourceAlert)
	if err != nil {
		return nil, false, err
	}
	s.log.Info("ticket opened from alert", zap.String("ticket", t.Number), zap.String("asset", asset.Code))
	return t, true, nil
}
