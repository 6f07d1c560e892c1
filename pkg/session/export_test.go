package session

// ActiveLocks exposes the lock map size to tests.
func (m *Manager) ActiveLocks() int { return m.activeLocks() }
