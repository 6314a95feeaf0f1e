package upload

import "time"

// SetClock overrides the manager clock in tests.
func SetClock(m *Manager, now func() time.Time) {
	m.now = now
}
