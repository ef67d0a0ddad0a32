package license

import (
	"sync"
	"time"
)

// Manager holds the current license state and reloads it from disk.
type Manager struct {
	mu     sync.RWMutex
	state  LicenseState
	parser *Parser
	path   string
}

func NewManager(path string, parser *Parser) *Manager {
	m := &Manager{
		path:   path,
		parser: parser,
		state:  LicenseState{Status: StatusMissing, ReasonCode: "init"},
	}
	m.Reload()
	return m
}

// Reload re-reads the license file, verifies it, and atomically swaps in
// the new state. Safe to call from the watcher goroutine or on demand.
func (m *Manager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, status, err := m.parser.ParseAndVerify(m.path)

	if err != nil {
		m.state = LicenseState{
			Status:     status,
			ReasonCode: err.Error(),
			LastReload: time.Now(),
		}
		return
	}

	if payload == nil {
		m.state = LicenseState{
			Status:     status,
			ReasonCode: "payload_missing",
			LastReload: time.Now(),
		}
		return
	}

	now := time.Now().UTC()
	if now.Before(payload.IssuedAt) {
		m.state = LicenseState{
			Status:     StatusParseError,
			ReasonCode: "future_issue_date",
			LastReload: time.Now(),
		}
		return
	}

	finalStatus := StatusValid
	daysToExpiry := 0
	if now.After(payload.ValidUntil) {
		diff := now.Sub(payload.ValidUntil)
		days := int(diff.Hours() / 24)
		daysToExpiry = -days
		if days <= 30 {
			finalStatus = StatusExpiredGrace
		} else {
			finalStatus = StatusExpiredBlocked
		}
	} else {
		diff := payload.ValidUntil.Sub(now)
		daysToExpiry = int(diff.Hours() / 24)
	}

	m.state = LicenseState{
		Status:       finalStatus,
		Payload:      payload,
		LastReload:   time.Now(),
		DaysToExpiry: daysToExpiry,
	}
}

// GetState returns a read-only copy of the current license state.
func (m *Manager) GetState() LicenseState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
