package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHealthInterval is the polling interval of the health monitor.
const DefaultHealthInterval = 30 * time.Second

// HealthState is the last known backend health.
type HealthState struct {
	// Healthy is nil until the first check completes.
	Healthy   *bool     `json:"healthy"`
	Checking  bool      `json:"is_checking"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}

// HealthMonitor tracks whether the remote backend answers its health check.
type HealthMonitor struct {
	gw     HealthGateway
	logger *zap.Logger

	mu       sync.RWMutex
	healthy  *bool
	checking int
	status   string
	lastErr  error
	checked  time.Time
}

// NewHealthMonitor creates a monitor in the unknown state.
func NewHealthMonitor(gw HealthGateway, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{gw: gw, logger: logger}
}

// Check calls the backend once and records the outcome. The returned error
// is the check failure, if any; it is also reflected in State.
func (m *HealthMonitor) Check(ctx context.Context) error {
	m.mu.Lock()
	m.checking++
	m.mu.Unlock()

	status, err := m.gw.Health(ctx)
	ok := err == nil

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checking--
	prev := m.healthy
	m.healthy = &ok
	m.status = status.Status
	m.lastErr = err
	m.checked = time.Now()

	if ok {
		BackendHealthy.Set(1)
	} else {
		BackendHealthy.Set(0)
	}
	if prev == nil || *prev != ok {
		if ok {
			m.logger.Info("backend_healthy", zap.String("status", status.Status))
		} else {
			m.logger.Warn("backend_unhealthy", zap.Error(err))
		}
	}
	return err
}

// Healthy returns the last outcome, or nil when no check has completed.
func (m *HealthMonitor) Healthy() *bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.healthy == nil {
		return nil
	}
	v := *m.healthy
	return &v
}

// IsChecking reports whether a check is in flight.
func (m *HealthMonitor) IsChecking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checking > 0
}

// State returns a snapshot of the monitor.
func (m *HealthMonitor) State() HealthState {
	st := HealthState{Healthy: m.Healthy(), Checking: m.IsChecking()}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st.Status = m.status
	st.CheckedAt = m.checked
	if m.lastErr != nil {
		st.Error = m.lastErr.Error()
	}
	return st
}
