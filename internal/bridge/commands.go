package bridge

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wanderlust/wanderbridge/internal/config"
	"github.com/wanderlust/wanderbridge/internal/lifecycle"
	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
	"github.com/wanderlust/wanderbridge/internal/streak"
)

var (
	ErrNotLinked      = errors.New("account not linked")
	ErrPlayerOffline  = errors.New("player not online in game")
	ErrNoReward       = errors.New("no reward configured for this day")
	ErrNoPendingPurge = errors.New("no pending purge request")
	ErrPurgeExpired   = errors.New("purge request expired")
)

// AlreadyClaimedError reports a same-day repeat claim with enough
// context to render the "come back later" message.
type AlreadyClaimedError struct {
	LastClaim time.Time
	Streak    int
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("already claimed at %s (streak %d)", e.LastClaim.Format(time.RFC3339), e.Streak)
}

// purgeRequestTTL is how long a purge request stays confirmable.
const purgeRequestTTL = 60 * time.Second

// streakSounds maps the streak day to the claim celebration sound.
var streakSounds = map[int]string{
	1: "minecraft:block.note_block.pling",
	2: "minecraft:entity.experience_orb.pickup",
	3: "minecraft:entity.player.levelup",
	4: "minecraft:item.totem.use",
	5: "minecraft:ui.toast.challenge_complete",
	6: "minecraft:entity.ender_dragon.growl",
	7: "minecraft:entity.lightning_bolt.thunder",
}

// particleThemes are alternative particle command sets for the claim
// celebration; one theme is picked per claim.
var particleThemes = [][]string{
	{
		"execute as %[1]s at %[1]s run particle minecraft:enchant ~ ~1 ~ 1 0.5 1 0.01 80 force",
		"execute as %[1]s at %[1]s run particle minecraft:totem_of_undying ~ ~1 ~ 0.5 1 0.5 0.1 40 force",
	},
	{
		"execute as %[1]s at %[1]s run particle minecraft:happy_villager ~ ~1 ~ 0.3 0.5 0.3 0.05 60 force",
		"execute as %[1]s at %[1]s run particle minecraft:note ~ ~1 ~ 0.4 0.2 0.4 0.05 40 force",
	},
	{
		"execute as %[1]s at %[1]s run particle minecraft:composter ~ ~1 ~ 0.5 0.3 0.5 0.02 70 force",
		"execute as %[1]s at %[1]s run particle minecraft:falling_leaf ~ ~1 ~ 0.6 0.6 0.6 0.03 50 force",
	},
	{
		"execute as %[1]s at %[1]s run particle minecraft:dragon_breath ~ ~1 ~ 0.5 1 0.5 0.1 60 force",
		"execute as %[1]s at %[1]s run particle minecraft:portal ~ ~1 ~ 1 1 1 0.05 100 force",
	},
}

// StatusProber is the status-ping dependency of the status command.
type StatusProber interface {
	Query() mc.Status
}

// StatusReport is the rendered answer to the status command.
type StatusReport struct {
	Online        bool
	State         string
	PlayersOnline int
	PlayerNames   []string
	LatencyMs     int
	MOTD          string
	Uptime        time.Duration
}

// ClaimResult describes a granted daily reward.
type ClaimResult struct {
	Username string
	Day      int
	Item     string
	Amount   int
}

// PurgeRequest is one pending channel purge awaiting confirmation.
type PurgeRequest struct {
	ID        string
	ChannelID int64
	Days      int
	Created   time.Time
}

// Commands implements the chat-facing operations. State that survives
// one interaction (pending purges) lives here; everything durable goes
// through the stores.
type Commands struct {
	cfg     *config.Config
	files   *store.Files
	machine *lifecycle.Machine
	console Console
	prober  StatusProber
	clk     sched.Clock

	mu      sync.Mutex
	pending map[string]PurgeRequest // keyed by requesting chat id
}

// NewCommands wires the command handlers.
func NewCommands(cfg *config.Config, files *store.Files, machine *lifecycle.Machine, console Console, prober StatusProber, clk sched.Clock) *Commands {
	return &Commands{
		cfg:     cfg,
		files:   files,
		machine: machine,
		console: console,
		prober:  prober,
		clk:     clk,
		pending: make(map[string]PurgeRequest),
	}
}

// Status combines the status ping, the console player list and the
// resolved uptime into one report. The ping result is authoritative for
// online/offline; the console list only enriches the names.
func (c *Commands) Status() StatusReport {
	status := c.prober.Query()
	rep := StatusReport{
		Online:        status.Online,
		State:         c.machine.Snapshot().State.String(),
		PlayersOnline: status.PlayersOnline,
		LatencyMs:     status.LatencyMs,
		MOTD:          status.MOTD,
		Uptime:        c.machine.Uptime(c.clk.Now()),
	}
	if !status.Online {
		return rep
	}
	if out, err := c.console.Execute("list"); err == nil {
		if list, err := mc.ParseList(out); err == nil {
			rep.PlayersOnline = list.Count
			rep.PlayerNames = list.Names
		}
	}
	return rep
}

// SetStatusChannel persists the channel the bridge announces into.
func (c *Commands) SetStatusChannel(id int64) error {
	c.cfg.Chat.StatusChannelID = id
	return c.cfg.Save()
}

// LinkAccount binds a chat identity to a game username and returns the
// previously linked name, empty when this is a fresh link.
func (c *Commands) LinkAccount(chatID, username string) (prev string, err error) {
	return c.files.SetLink(chatID, username)
}

// ClaimDaily grants the daily streak reward. The claim record is
// persisted only after the whole grant sequence succeeded, so a failed
// grant can be retried without losing the day.
func (c *Commands) ClaimDaily(chatID string) (ClaimResult, error) {
	username, ok, err := c.files.LinkedUsername(chatID)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("looking up link: %w", err)
	}
	if !ok {
		return ClaimResult{}, ErrNotLinked
	}

	rec, _, err := c.files.Claim(username)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("loading claim record: %w", err)
	}
	var last *time.Time
	if !rec.LastClaim.IsZero() {
		last = &rec.LastClaim
	}
	now := c.clk.Now()
	loc := c.cfg.Location()
	canClaim, day := streak.Evaluate(now, last, rec.Streak, c.cfg.Rewards.BoundaryHour, loc)
	if !canClaim {
		return ClaimResult{}, &AlreadyClaimedError{LastClaim: rec.LastClaim, Streak: rec.Streak}
	}

	out, err := c.console.Execute("list")
	if err != nil {
		return ClaimResult{}, fmt.Errorf("checking online players: %w", err)
	}
	list, err := mc.ParseList(out)
	if err != nil || !list.Online(username) {
		return ClaimResult{}, ErrPlayerOffline
	}

	rewards, err := c.files.Rewards()
	if err != nil {
		return ClaimResult{}, fmt.Errorf("loading reward table: %w", err)
	}
	reward, ok := rewards[strconv.Itoa(day)]
	if !ok {
		return ClaimResult{}, ErrNoReward
	}

	if err := c.grantReward(username, day, reward); err != nil {
		return ClaimResult{}, err
	}

	if err := c.files.SetClaim(username, store.ClaimRecord{LastClaim: now, Streak: day}); err != nil {
		return ClaimResult{}, fmt.Errorf("recording claim: %w", err)
	}
	return ClaimResult{Username: username, Day: day, Item: reward.Item, Amount: reward.Amount}, nil
}

// grantReward runs the in-game command sequence for one claim. Command
// feedback is suppressed for the duration so the console does not spam
// every online player.
func (c *Commands) grantReward(username string, day int, reward store.Reward) error {
	if _, err := c.console.Execute("gamerule sendCommandFeedback false"); err != nil {
		return fmt.Errorf("suppressing command feedback: %w", err)
	}
	defer c.console.Execute("gamerule sendCommandFeedback true")

	give := fmt.Sprintf("execute as %s run give %s %s %d", username, username, reward.Item, reward.Amount)
	if _, err := c.console.Execute(give); err != nil {
		return fmt.Errorf("giving reward: %w", err)
	}

	sound, ok := streakSounds[day]
	if !ok {
		sound = "minecraft:entity.player.levelup"
	}
	play := fmt.Sprintf("execute as %s at %s run playsound %s player %s ~ ~ ~ 1 1", username, username, sound, username)
	if _, err := c.console.Execute(play); err != nil {
		return fmt.Errorf("playing claim sound: %w", err)
	}

	theme := particleThemes[rand.Intn(len(particleThemes))]
	for _, tmpl := range theme {
		if _, err := c.console.Execute(fmt.Sprintf(tmpl, username)); err != nil {
			return fmt.Errorf("spawning particles: %w", err)
		}
	}

	broadcast, err := mc.TellrawCommand([]mc.Segment{
		{Text: "🎁 ", Color: "gold"},
		{Text: username, Color: "yellow"},
		{Text: " has claimed their daily reward: ", Color: "gold"},
		{Text: fmt.Sprintf("%dx %s", reward.Amount, reward.Item), Color: "aqua"},
	})
	if err != nil {
		return fmt.Errorf("building claim broadcast: %w", err)
	}
	if _, err := c.console.Execute(broadcast); err != nil {
		return fmt.Errorf("broadcasting claim: %w", err)
	}
	return nil
}

// RewardSchedule renders the configured 7-day reward table in day order.
func (c *Commands) RewardSchedule() ([]string, error) {
	rewards, err := c.files.Rewards()
	if err != nil {
		return nil, fmt.Errorf("loading reward table: %w", err)
	}
	days := make([]int, 0, len(rewards))
	for k := range rewards {
		if d, err := strconv.Atoi(k); err == nil {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	lines := make([]string, 0, len(days))
	for _, d := range days {
		r := rewards[strconv.Itoa(d)]
		lines = append(lines, fmt.Sprintf("Day %d: %dx %s", d, r.Amount, r.Item))
	}
	return lines, nil
}

// SetServerConfig updates the server coordinates and reward timezone,
// persisting the config file. The timezone is validated before anything
// is written.
func (c *Commands) SetServerConfig(host string, port, rconPort int, rconPassword, timezone string) error {
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		c.cfg.Rewards.Timezone = timezone
	}
	if host != "" {
		c.cfg.Minecraft.Host = host
	}
	if port != 0 {
		c.cfg.Minecraft.Port = port
	}
	if rconPort != 0 {
		c.cfg.Rcon.Port = rconPort
	}
	if rconPassword != "" {
		c.cfg.Rcon.Password = rconPassword
	}
	return c.cfg.Save()
}

// RequestPurge registers a purge of messages older than days, replacing
// any earlier request by the same requester. The caller must confirm
// within one minute.
func (c *Commands) RequestPurge(chatID string, days int) (PurgeRequest, error) {
	if days < 1 || days > 30 {
		return PurgeRequest{}, fmt.Errorf("days must be between 1 and 30, got %d", days)
	}
	if c.cfg.Chat.StatusChannelID == 0 {
		return PurgeRequest{}, errors.New("status channel not set")
	}
	req := PurgeRequest{
		ID:        uuid.NewString(),
		ChannelID: c.cfg.Chat.StatusChannelID,
		Days:      days,
		Created:   c.clk.Now(),
	}
	c.mu.Lock()
	c.pending[chatID] = req
	c.mu.Unlock()
	return req, nil
}

// ConfirmPurge consumes the requester's pending purge. A request older
// than the TTL is discarded and reported expired; confirming again
// after either outcome finds nothing.
func (c *Commands) ConfirmPurge(chatID string) (PurgeRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[chatID]
	if !ok {
		return PurgeRequest{}, ErrNoPendingPurge
	}
	delete(c.pending, chatID)
	if c.clk.Now().Sub(req.Created) > purgeRequestTTL {
		return PurgeRequest{}, ErrPurgeExpired
	}
	return req, nil
}
