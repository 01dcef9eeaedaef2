package lifecycle

import (
	"testing"
	"time"
)

func TestTransitions(t *testing.T) {
	t0 := time.Date(2025, 6, 19, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"unknown to booting", StateUnknown, StateBooting, true},
		{"unknown to online", StateUnknown, StateOnline, true},
		{"booting to online", StateBooting, StateOnline, true},
		{"online to offline", StateOnline, StateOffline, true},
		{"same state rejected", StateOnline, StateOnline, false},
		{"online back to booting rejected", StateOnline, StateBooting, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(t0)
			if tt.from != StateUnknown {
				m.Transition(tt.from, t0)
			}
			if got := m.Transition(tt.to, t0.Add(time.Minute)); got != tt.want {
				t.Fatalf("Transition(%v) from %v = %v, want %v", tt.to, tt.from, got, tt.want)
			}
		})
	}
}

func TestOfflineIsTerminal(t *testing.T) {
	t0 := time.Now()
	m := NewMachine(t0)
	m.Transition(StateOnline, t0)
	m.Transition(StateOffline, t0)

	for _, to := range []State{StateBooting, StateOnline, StateUnknown} {
		if m.Transition(to, t0) {
			t.Errorf("Transition(%v) from offline succeeded, want rejected", to)
		}
	}
	if got := m.Snapshot().State; got != StateOffline {
		t.Fatalf("state = %v, want offline", got)
	}
}

func TestConfirmedLatch(t *testing.T) {
	m := NewMachine(time.Now())
	if m.Snapshot().ConfirmedOnline {
		t.Fatal("latch set before any confirmation")
	}
	m.ConfirmOnline()
	m.Transition(StateOffline, time.Now())
	if !m.Snapshot().ConfirmedOnline {
		t.Fatal("latch lost after transition")
	}
}

func TestUptime(t *testing.T) {
	t0 := time.Date(2025, 6, 19, 9, 0, 0, 0, time.UTC)
	m := NewMachine(t0)
	if got := m.Uptime(t0.Add(time.Hour)); got != 0 {
		t.Fatalf("uptime before start time set = %v, want 0", got)
	}
	m.SetStartTime(t0)
	if got := m.Uptime(t0.Add(90 * time.Minute)); got != 90*time.Minute {
		t.Fatalf("uptime = %v, want 90m", got)
	}
	if got := m.Uptime(t0.Add(-time.Minute)); got != 0 {
		t.Fatalf("uptime with clock behind start = %v, want 0", got)
	}
}
