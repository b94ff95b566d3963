// Package health tracks whether the service accepts new work. A fatal
// failure anywhere in the pipeline pauses intake until an operator resumes.
package health

import (
	"log/slog"
	"sync"
	"time"
)

// Pause sources.
const (
	SourceEngine = "engine"
	SourceAdmin  = "admin"
)

// Status is a point-in-time view of the monitor.
type Status struct {
	Paused   bool      `json:"paused"`
	Source   string    `json:"source,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	PausedAt time.Time `json:"paused_at,omitempty"`
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu     sync.RWMutex
	status Status
	logger *slog.Logger
	now    func() time.Time
}

// NewMonitor returns a monitor in the running state.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{logger: logger, now: time.Now}
}

// Pause stops intake. The first pause wins; later calls are logged but do
// not overwrite the recorded cause.
func (m *Monitor) Pause(source, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.Paused {
		m.logger.Warn("pause requested while already paused",
			slog.String("source", source),
			slog.String("reason", reason),
		)
		return
	}
	m.status = Status{Paused: true, Source: source, Reason: reason, PausedAt: m.now()}
	m.logger.Error("service paused",
		slog.String("source", source),
		slog.String("reason", reason),
	)
}

// Resume re-enables intake. Returns false if the service was not paused.
func (m *Monitor) Resume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.status.Paused {
		return false
	}
	m.logger.Info("service resumed", slog.String("source", m.status.Source))
	m.status = Status{}
	return true
}

// Paused reports whether intake is stopped.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Paused
}

// Reason returns why the service is paused, or "" while running.
func (m *Monitor) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Reason
}

// Status returns the current state.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
