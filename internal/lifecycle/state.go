// Package lifecycle tracks the game server through its life: booting,
// online, offline. One Machine instance owns the state; Transition is
// the only writer and every background worker reads via Snapshot.
package lifecycle

import (
	"sync"
	"time"
)

// State is the server lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateBooting
	StateOnline
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateBooting:
		return "booting"
	case StateOnline:
		return "online"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time read of the machine. Readers treat it as
// an eventually-consistent view; only Transition mutates the source.
type Snapshot struct {
	State           State
	ConfirmedOnline bool
	StartTime       time.Time // zero until resolved
	Since           time.Time // when the current state was entered
}

// Machine is the single process-wide lifecycle state holder.
type Machine struct {
	mu        sync.Mutex
	state     State
	confirmed bool
	start     time.Time
	since     time.Time
}

// NewMachine starts in StateUnknown.
func NewMachine(now time.Time) *Machine {
	return &Machine{state: StateUnknown, since: now}
}

// Transition moves the machine to a new state and reports whether the
// state actually changed. Offline is terminal; backwards moves are
// rejected so a racing boot-wait and poller cannot fight over the value.
func (m *Machine) Transition(to State, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == to {
		return false
	}
	if m.state == StateOffline {
		return false
	}
	// Online never goes back to Booting; the poller declares Offline
	// instead and the process restarts against a fresh log.
	if m.state == StateOnline && to == StateBooting {
		return false
	}
	m.state = to
	m.since = now
	return true
}

// ConfirmOnline latches the confirmed-online flag on the first
// successful liveness response. The latch is monotonic: it gates the
// Offline declaration so a boot race cannot produce a false farewell.
// A server that answers once and immediately dies in the same poll tick
// can still race this latch; that window is one check interval and is
// accepted.
func (m *Machine) ConfirmOnline() {
	m.mu.Lock()
	m.confirmed = true
	m.mu.Unlock()
}

// SetStartTime records the resolved boot instant.
func (m *Machine) SetStartTime(t time.Time) {
	m.mu.Lock()
	m.start = t
	m.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:           m.state,
		ConfirmedOnline: m.confirmed,
		StartTime:       m.start,
		Since:           m.since,
	}
}

// Uptime reports how long the server has been up as of now, zero when
// the start time is not yet resolved.
func (m *Machine) Uptime(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.start.IsZero() {
		return 0
	}
	d := now.Sub(m.start)
	if d < 0 {
		return 0
	}
	return d
}
