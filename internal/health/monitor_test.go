package health

import (
	"io"
	"log/slog"
	"testing"
)

func newTestMonitor() *Monitor {
	return NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMonitor_PauseAndResume(t *testing.T) {
	m := newTestMonitor()
	if m.Paused() {
		t.Fatal("new monitor should be running")
	}

	m.Pause(SourceEngine, "engine BTC-USDT failed")
	st := m.Status()
	if !st.Paused || st.Source != SourceEngine || st.Reason != "engine BTC-USDT failed" {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.PausedAt.IsZero() {
		t.Error("PausedAt should be set")
	}

	if !m.Resume() {
		t.Fatal("Resume() = false, want true")
	}
	if m.Paused() {
		t.Fatal("monitor should be running after resume")
	}
	if m.Resume() {
		t.Error("second Resume() should report false")
	}
}

func TestMonitor_FirstPauseWins(t *testing.T) {
	m := newTestMonitor()
	m.Pause(SourceEngine, "first")
	m.Pause(SourceAdmin, "second")

	if got := m.Status().Source; got != SourceEngine {
		t.Errorf("source = %q, want engine", got)
	}
}

func TestMonitor_Reason(t *testing.T) {
	m := newTestMonitor()
	if m.Reason() != "" {
		t.Fatal("running monitor should have no reason")
	}
	m.Pause(SourceAdmin, "maintenance")
	if got := m.Reason(); got != "maintenance" {
		t.Errorf("Reason() = %q, want maintenance", got)
	}
}
