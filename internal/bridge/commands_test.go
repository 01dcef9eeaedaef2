package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wanderlust/wanderbridge/internal/config"
	"github.com/wanderlust/wanderbridge/internal/lifecycle"
	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
)

type stubProber struct{ status mc.Status }

func (s *stubProber) Query() mc.Status { return s.status }

type commandsFixture struct {
	cmds    *Commands
	console *recordingConsole
	prober  *stubProber
	clk     *sched.Fake
	files   *store.Files
	cfg     *config.Config
}

func newTestCommands(t *testing.T) *commandsFixture {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "rcon:\n  password: hunter2\nchat:\n  status_channel_id: 42\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}

	dataDir := filepath.Join(dir, "data")
	files, err := store.Open(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	rewards := `{"1": {"item": "minecraft:bread", "amount": 3}, "2": {"item": "minecraft:iron_ingot", "amount": 2}, "3": {"item": "minecraft:diamond", "amount": 1}}`
	if err := os.WriteFile(filepath.Join(dataDir, "daily_rewards.json"), []byte(rewards), 0o644); err != nil {
		t.Fatal(err)
	}

	clk := sched.NewFake(time.Date(2025, 6, 19, 12, 0, 0, 0, time.UTC))
	console := &recordingConsole{resp: "There are 1 of a max of 20 players online: Steve"}
	prober := &stubProber{status: mc.Status{Online: true, PlayersOnline: 1, LatencyMs: 12, MOTD: "Wanderlust"}}
	machine := lifecycle.NewMachine(clk.Now())
	machine.SetStartTime(clk.Now().Add(-time.Hour))

	cmds := NewCommands(cfg, files, machine, console, prober, clk)
	return &commandsFixture{cmds: cmds, console: console, prober: prober, clk: clk, files: files, cfg: cfg}
}

func (fx *commandsFixture) link(t *testing.T, chatID, username string) {
	t.Helper()
	if _, err := fx.files.SetLink(chatID, username); err != nil {
		t.Fatal(err)
	}
}

func TestStatusReport(t *testing.T) {
	fx := newTestCommands(t)

	rep := fx.cmds.Status()

	if !rep.Online {
		t.Fatal("report says offline")
	}
	if rep.PlayersOnline != 1 || len(rep.PlayerNames) != 1 || rep.PlayerNames[0] != "Steve" {
		t.Fatalf("players = %d %v", rep.PlayersOnline, rep.PlayerNames)
	}
	if rep.Uptime != time.Hour {
		t.Fatalf("uptime = %v, want 1h", rep.Uptime)
	}
}

func TestStatusReportOffline(t *testing.T) {
	fx := newTestCommands(t)
	fx.prober.status = mc.Status{Online: false, Err: errors.New("connection refused")}

	rep := fx.cmds.Status()

	if rep.Online {
		t.Fatal("report says online")
	}
	if got := fx.console.executed(); len(got) != 0 {
		t.Fatalf("console queried while offline: %v", got)
	}
}

func TestClaimDailyNotLinked(t *testing.T) {
	fx := newTestCommands(t)
	if _, err := fx.cmds.ClaimDaily("user-1"); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("err = %v, want ErrNotLinked", err)
	}
}

func TestClaimDailyPlayerOffline(t *testing.T) {
	fx := newTestCommands(t)
	fx.link(t, "user-1", "Alex") // Alex is not in the list response

	if _, err := fx.cmds.ClaimDaily("user-1"); !errors.Is(err, ErrPlayerOffline) {
		t.Fatalf("err = %v, want ErrPlayerOffline", err)
	}
}

func TestClaimDailyGrantSequence(t *testing.T) {
	fx := newTestCommands(t)
	fx.link(t, "user-1", "steve") // case-insensitive against "Steve"

	res, err := fx.cmds.ClaimDaily("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Day != 1 || res.Item != "minecraft:bread" || res.Amount != 3 {
		t.Fatalf("result = %+v", res)
	}

	cmds := fx.console.executed()
	var idxOff, idxGive, idxSound, idxTellraw, idxOn = -1, -1, -1, -1, -1
	for i, c := range cmds {
		switch {
		case c == "gamerule sendCommandFeedback false":
			idxOff = i
		case strings.Contains(c, "give steve minecraft:bread 3"):
			idxGive = i
		case strings.Contains(c, "playsound minecraft:block.note_block.pling"):
			idxSound = i
		case strings.HasPrefix(c, "tellraw @a "):
			idxTellraw = i
		case c == "gamerule sendCommandFeedback true":
			idxOn = i
		}
	}
	for name, idx := range map[string]int{
		"feedback off": idxOff, "give": idxGive, "playsound": idxSound,
		"tellraw": idxTellraw, "feedback on": idxOn,
	} {
		if idx < 0 {
			t.Fatalf("grant sequence missing %s command: %v", name, cmds)
		}
	}
	if !(idxOff < idxGive && idxGive < idxSound && idxSound < idxTellraw && idxTellraw < idxOn) {
		t.Fatalf("grant commands out of order: %v", cmds)
	}

	rec, ok, err := fx.files.Claim("steve")
	if err != nil || !ok {
		t.Fatalf("claim not persisted: ok=%v err=%v", ok, err)
	}
	if rec.Streak != 1 {
		t.Fatalf("streak = %d, want 1", rec.Streak)
	}
}

func TestClaimDailySameDayRejected(t *testing.T) {
	fx := newTestCommands(t)
	fx.link(t, "user-1", "Steve")

	if _, err := fx.cmds.ClaimDaily("user-1"); err != nil {
		t.Fatal(err)
	}
	_, err := fx.cmds.ClaimDaily("user-1")
	var already *AlreadyClaimedError
	if !errors.As(err, &already) {
		t.Fatalf("err = %v, want AlreadyClaimedError", err)
	}
	if already.Streak != 1 {
		t.Fatalf("reported streak = %d, want 1", already.Streak)
	}
}

func TestClaimDailyFailedGrantNotPersisted(t *testing.T) {
	fx := newTestCommands(t)
	fx.link(t, "user-1", "Steve")
	fx.console.failOn = "give"

	if _, err := fx.cmds.ClaimDaily("user-1"); err == nil {
		t.Fatal("claim succeeded despite failed give")
	}
	if _, ok, _ := fx.files.Claim("Steve"); ok {
		t.Fatal("claim persisted after failed grant")
	}

	// Retry after the fault clears still counts as the same day's claim.
	fx.console.failOn = ""
	if _, err := fx.cmds.ClaimDaily("user-1"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestClaimDailyStreakAdvancesNextDay(t *testing.T) {
	fx := newTestCommands(t)
	fx.link(t, "user-1", "Steve")

	if _, err := fx.cmds.ClaimDaily("user-1"); err != nil {
		t.Fatal(err)
	}
	fx.clk.Set(fx.clk.Now().Add(24 * time.Hour))
	res, err := fx.cmds.ClaimDaily("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Day != 2 || res.Item != "minecraft:iron_ingot" {
		t.Fatalf("day-2 result = %+v", res)
	}
}

func TestRewardSchedule(t *testing.T) {
	fx := newTestCommands(t)

	lines, err := fx.cmds.RewardSchedule()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Day 1: 3x minecraft:bread",
		"Day 2: 2x minecraft:iron_ingot",
		"Day 3: 1x minecraft:diamond",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLinkAccountReportsPrevious(t *testing.T) {
	fx := newTestCommands(t)

	prev, err := fx.cmds.LinkAccount("user-1", "Steve")
	if err != nil {
		t.Fatal(err)
	}
	if prev != "" {
		t.Fatalf("prev = %q, want empty on first link", prev)
	}
	prev, err = fx.cmds.LinkAccount("user-1", "Alex")
	if err != nil {
		t.Fatal(err)
	}
	if prev != "Steve" {
		t.Fatalf("prev = %q, want Steve", prev)
	}
}

func TestSetServerConfigRejectsBadTimezone(t *testing.T) {
	fx := newTestCommands(t)
	if err := fx.cmds.SetServerConfig("", 0, 0, "", "Mars/Olympus"); err == nil {
		t.Fatal("invalid timezone accepted")
	}
}

func TestPurgeConfirmFlow(t *testing.T) {
	fx := newTestCommands(t)

	if _, err := fx.cmds.ConfirmPurge("user-1"); !errors.Is(err, ErrNoPendingPurge) {
		t.Fatalf("err = %v, want ErrNoPendingPurge", err)
	}

	req, err := fx.cmds.RequestPurge("user-1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if req.ChannelID != 42 || req.Days != 7 || req.ID == "" {
		t.Fatalf("request = %+v", req)
	}

	got, err := fx.cmds.ConfirmPurge("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != req.ID {
		t.Fatalf("confirmed %q, want %q", got.ID, req.ID)
	}

	// Consumed: a second confirm finds nothing.
	if _, err := fx.cmds.ConfirmPurge("user-1"); !errors.Is(err, ErrNoPendingPurge) {
		t.Fatalf("err = %v, want ErrNoPendingPurge after consume", err)
	}
}

func TestPurgeExpires(t *testing.T) {
	fx := newTestCommands(t)

	if _, err := fx.cmds.RequestPurge("user-1", 3); err != nil {
		t.Fatal(err)
	}
	fx.clk.Set(fx.clk.Now().Add(61 * time.Second))

	if _, err := fx.cmds.ConfirmPurge("user-1"); !errors.Is(err, ErrPurgeExpired) {
		t.Fatalf("err = %v, want ErrPurgeExpired", err)
	}
	// Expiry consumed the request.
	if _, err := fx.cmds.ConfirmPurge("user-1"); !errors.Is(err, ErrNoPendingPurge) {
		t.Fatalf("err = %v, want ErrNoPendingPurge after expiry", err)
	}
}

func TestPurgeValidatesDays(t *testing.T) {
	fx := newTestCommands(t)
	for _, days := range []int{0, -1, 31} {
		if _, err := fx.cmds.RequestPurge("user-1", days); err == nil {
			t.Fatalf("days=%d accepted", days)
		}
	}
}
