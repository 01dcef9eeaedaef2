package lifecycle

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
)

// Signal tells the supervisor why the monitor wants the process to end.
type Signal int

const (
	// SignalShutdown means the server is gone; exit and stay down
	// until a human or the process manager decides otherwise.
	SignalShutdown Signal = iota
	// SignalRestart means exit so the process manager restarts the
	// bridge against a freshly rotated log.
	SignalRestart
)

// ConsoleClient is the remote console dependency of the monitor.
type ConsoleClient interface {
	Execute(command string) (string, error)
}

// StatusProber is the status-ping dependency of the monitor.
type StatusProber interface {
	Query() mc.Status
}

// Announcer receives lifecycle announcements for the chat channel.
type Announcer interface {
	AnnounceBooting(tick int)
	AnnounceReady()
	AnnounceFarewell()
	AnnounceRestart()
}

// Options configures the Monitor.
type Options struct {
	LogsDir          string
	Executable       string        // process name the watchdog looks for
	CheckInterval    time.Duration // offline/watchdog poll, default 5s
	BootPollInterval time.Duration // boot-wait poll, default 10s
	RestartWindow    time.Duration // width of the after-midnight window, default 5m
	FlushDelay       time.Duration // pause before restart so announcements flush
	Location         *time.Location
}

func (o *Options) defaults() {
	if o.CheckInterval == 0 {
		o.CheckInterval = 5 * time.Second
	}
	if o.BootPollInterval == 0 {
		o.BootPollInterval = 10 * time.Second
	}
	if o.RestartWindow == 0 {
		o.RestartWindow = 5 * time.Minute
	}
	if o.FlushDelay == 0 {
		o.FlushDelay = 2 * time.Second
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

// Monitor drives the lifecycle state machine from the status prober,
// the remote console, the OS process table and the clock.
type Monitor struct {
	opts    Options
	machine *Machine
	rcon    ConsoleClient
	prober  StatusProber
	files   *store.Files
	clk     sched.Clock
	ann     Announcer
	hist    *store.History

	signals chan Signal
	wg      sync.WaitGroup

	mu              sync.Mutex
	lastRestartDate string // YYYY-MM-DD of the last scheduled restart, one per day
	signalled       bool
}

// NewMonitor wires a monitor; nothing runs until Run.
func NewMonitor(opts Options, machine *Machine, rcon ConsoleClient, prober StatusProber, files *store.Files, hist *store.History, clk sched.Clock, ann Announcer) *Monitor {
	opts.defaults()
	return &Monitor{
		opts:    opts,
		machine: machine,
		rcon:    rcon,
		prober:  prober,
		files:   files,
		clk:     clk,
		ann:     ann,
		hist:    hist,
		signals: make(chan Signal, 1),
	}
}

// Signals delivers at most one Signal; the supervisor exits on it.
func (m *Monitor) Signals() <-chan Signal { return m.signals }

// Run starts the background workers and returns. Workers stop when ctx
// is cancelled; Wait blocks until they have.
func (m *Monitor) Run(ctx context.Context) {
	m.Bootstrap(ctx)

	m.wg.Add(3)
	go func() {
		defer m.wg.Done()
		sched.Loop(ctx, m.clk, m.opts.CheckInterval, func(now time.Time) { m.CheckOnce(now) })
	}()
	go func() {
		defer m.wg.Done()
		sched.Loop(ctx, m.clk, m.opts.CheckInterval, func(time.Time) { m.WatchdogOnce() })
	}()
	go func() {
		defer m.wg.Done()
		sched.Loop(ctx, m.clk, 30*time.Second, func(now time.Time) { m.MidnightOnce(ctx, now) })
	}()
}

// Wait blocks until all workers have returned.
func (m *Monitor) Wait() { m.wg.Wait() }

// Bootstrap decides the starting state: a fresh, same-day cached start
// time means the server is already up and boot-wait is skipped.
func (m *Monitor) Bootstrap(ctx context.Context) {
	now := m.clk.Now()
	if start, ok := LoadCachedStart(m.files, now, m.opts.Location); ok {
		log.Printf("lifecycle: cached start time %v is fresh, assuming online", start)
		m.machine.SetStartTime(start)
		m.machine.Transition(StateOnline, now)
		return
	}

	m.machine.Transition(StateBooting, now)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.bootWait(ctx)
	}()
}

// bootWait polls the console until the server answers, then promotes to
// Online. Each failed attempt updates the "still booting" indicator.
func (m *Monitor) bootWait(ctx context.Context) {
	client, ok := m.rcon.(*mc.Client)
	if ok {
		err := client.WaitUntilReachable(ctx, m.clk, m.opts.BootPollInterval, 0, func(attempt int) {
			m.ann.AnnounceBooting(attempt)
		})
		if err != nil {
			return // cancelled
		}
		m.BecomeOnline()
		return
	}

	// Test doubles go through the same loop shape.
	for attempt := 1; ; attempt++ {
		if _, err := m.rcon.Execute("list"); err == nil {
			m.BecomeOnline()
			return
		}
		m.ann.AnnounceBooting(attempt)
		if m.clk.Sleep(ctx, m.opts.BootPollInterval) != nil {
			return
		}
	}
}

// BecomeOnline resolves the authoritative start time, caches it and
// promotes the machine. Safe to call more than once; only the first
// transition announces.
func (m *Monitor) BecomeOnline() {
	now := m.clk.Now()
	if !m.machine.Transition(StateOnline, now) {
		return
	}

	start, ok := ResolveStartTime(m.opts.LogsDir, m.opts.Location)
	if !ok {
		log.Printf("lifecycle: no boot marker found in %s, using current time", m.opts.LogsDir)
		start = now
	}
	m.machine.SetStartTime(start)
	if err := m.files.SaveStartTime(start); err != nil {
		log.Printf("lifecycle: caching start time: %v", err)
	}
	m.machine.ConfirmOnline()
	m.record(now, "online", "", "server ready")
	m.ann.AnnounceReady()
}

// CheckOnce is one tick of the reachability poll. The server counts as
// reachable when either probe answers; Offline is declared only when
// both fail and the server has been confirmed online at least once.
func (m *Monitor) CheckOnce(now time.Time) {
	snap := m.machine.Snapshot()
	if snap.State == StateOffline {
		return
	}

	status := m.prober.Query()
	_, rconErr := m.rcon.Execute("list")
	reachable := status.Online || rconErr == nil

	if reachable {
		m.machine.ConfirmOnline()
		if snap.State == StateBooting {
			m.BecomeOnline()
		}
		return
	}

	if !snap.ConfirmedOnline {
		// Boot race window: the server has never answered, so both
		// probes failing means "still booting", not "went away".
		return
	}

	if m.machine.Transition(StateOffline, now) {
		log.Printf("lifecycle: server offline (ping: %v, rcon: %v)", status.Err, rconErr)
		m.record(now, "offline", "", "server shut down")
		m.ann.AnnounceFarewell()
		m.signal(SignalShutdown)
	}
}

// WatchdogOnce checks the OS process table for the server executable.
// The process vanishing is a stronger and faster signal than protocol
// polling, so it shuts the bridge down immediately.
func (m *Monitor) WatchdogOnce() {
	if !m.machine.Snapshot().ConfirmedOnline {
		return
	}
	alive, ok := processAlive(m.opts.Executable)
	if !ok || alive {
		return
	}
	now := m.clk.Now()
	if m.machine.Transition(StateOffline, now) {
		log.Printf("lifecycle: %s process gone, shutting down", m.opts.Executable)
		m.record(now, "offline", "", "server process gone")
		m.signal(SignalShutdown)
	}
}

// MidnightOnce triggers the daily restart inside a narrow window after
// local midnight, at most once per calendar date. The log file rotates
// at midnight and the tail reader cannot follow rotation, so the bridge
// restarts to re-attach.
func (m *Monitor) MidnightOnce(ctx context.Context, now time.Time) {
	local := now.In(m.opts.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.opts.Location)
	if local.Sub(midnight) >= m.opts.RestartWindow {
		return
	}

	date := local.Format("2006-01-02")
	m.mu.Lock()
	already := m.lastRestartDate == date
	if !already {
		m.lastRestartDate = date
	}
	m.mu.Unlock()
	if already {
		return
	}

	log.Printf("lifecycle: scheduled restart for log rotation (%s)", date)
	m.record(now, "restart", "", "scheduled post-midnight restart")
	m.ann.AnnounceRestart()
	// Let the announcement flush before asking the supervisor to exit.
	m.clk.Sleep(ctx, m.opts.FlushDelay)
	m.signal(SignalRestart)
}

func (m *Monitor) signal(s Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signalled {
		return
	}
	m.signalled = true
	m.signals <- s
}

func (m *Monitor) record(at time.Time, kind, player, body string) {
	if m.hist == nil {
		return
	}
	if err := m.hist.Record(at, kind, player, body); err != nil {
		log.Printf("lifecycle: recording history: %v", err)
	}
}

// processAlive scans /proc for a process whose comm contains executable.
// ok=false means the process table could not be read, in which case the
// watchdog stays quiet rather than killing a healthy bridge.
func processAlive(executable string) (alive, ok bool) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false, false
	}
	needle := strings.ToLower(executable)
	for _, e := range entries {
		if !e.IsDir() || !isDigits(e.Name()) {
			continue
		}
		comm, err := os.ReadFile("/proc/" + e.Name() + "/comm")
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(strings.TrimSpace(string(comm))), needle) {
			return true, true
		}
	}
	return false, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
