// Package settings is the key-value settings store with typed defaults.
package settings

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"ticketops/store"
)

var ErrInvalidValue = errors.New("invalid setting value")

const (
	SLACriticalHours    = "sla.critical_hours"
	SLAHighHours        = "sla.high_hours"
	SLAMediumHours      = "sla.medium_hours"
	SLALowHours         = "sla.low_hours"
	EmailEnabled        = "notifications.email_enabled"
	RegistrationEnabled = "registration.enabled"
	TicketAutoCloseDays = "tickets.auto_close_days"
)

type kind int

const (
	kindInt kind = iota
	kindBool
)

type known struct {
	kind kind
	def  string
}

var knownKeys = map[string]known{
	SLACriticalHours:    {kindInt, "4"},
	SLAHighHours:        {kindInt, "8"},
	SLAMediumHours:      {kindInt, "24"},
	SLALowHours:         {kindInt, "72"},
	EmailEnabled:        {kindBool, "false"},
	RegistrationEnabled: {kindBool, "true"},
	TicketAutoCloseDays: {kindInt, "7"},
}

// Entry is a setting as shown to clients, with Default set for known keys
// that have never been written.
type Entry struct {
	store.Setting
	Default bool `json:"default"`
}

// Service reads and writes settings. Values are cached after first read.
type Service struct {
	db    *store.DB
	mu    sync.RWMutex
	cache map[string]string
}

func New(db *store.DB) *Service {
	return &Service{db: db, cache: make(map[string]string)}
}

// Get returns the stored value, or the default for known keys.
func (s *Service) Get(key string) (string, error) {
	s.mu.RLock()
	v, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	st, err := s.db.GetSetting(key)
	switch {
	case err == nil:
		v = st.Value
	case errors.Is(err, store.ErrNotFound):
		k, isKnown := knownKeys[key]
		if !isKnown {
			return "", err
		}
		v = k.def
	default:
		return "", err
	}
	s.mu.Lock()
	s.cache[key] = v
	s.mu.Unlock()
	return v, nil
}

// Int returns an integer setting; unparsable or missing values yield the default.
func (s *Service) Int(key string) int {
	v, err := s.Get(key)
	if err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	n, _ := strconv.Atoi(knownKeys[key].def)
	return n
}

func (s *Service) Bool(key string) bool {
	v, err := s.Get(key)
	if err == nil {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	b, _ := strconv.ParseBool(knownKeys[key].def)
	return b
}

// SLAHours returns the resolution target for a ticket priority.
func (s *Service) SLAHours(priority string) int {
	switch priority {
	case "critical":
		return s.Int(SLACriticalHours)
	case "high":
		return s.Int(SLAHighHours)
	case "low":
		return s.Int(SLALowHours)
	default:
		return s.Int(SLAMediumHours)
	}
}

// Set validates known keys and writes the value.
func (s *Service) Set(key, value, actor string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	}
	if k, ok := knownKeys[key]; ok {
		switch k.kind {
		case kindInt:
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidValue, key)
			}
			value = strconv.Itoa(n)
		case kindBool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
			}
			value = strconv.FormatBool(b)
		}
	}
	if err := s.db.SetSetting(key, value, actor); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
	return nil
}

// Delete removes a stored key; known keys fall back to their default.
func (s *Service) Delete(key string) error {
	err := s.db.DeleteSetting(key)
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	return err
}

// List returns stored keys merged with defaults for unset known keys.
func (s *Service) List() ([]Entry, error) {
	stored, err := s.db.ListSettings()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	out := make([]Entry, 0, len(stored)+len(knownKeys))
	for _, st := range stored {
		seen[st.Key] = true
		out = append(out, Entry{Setting: *st})
	}
	for key, k := range knownKeys {
		if !seen[key] {
			out = append(out, Entry{Setting: store.Setting{Key: key, Value: k.def, UpdatedBy: "system"}, Default: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
