package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dispatcher routes inbound chat-channel messages: slash commands go to
// the command handlers, everything else is relayed into the game.
type Dispatcher struct {
	bridge *Bridge
	cmds   *Commands
	sender Sender
}

// NewDispatcher wires the inbound message router.
func NewDispatcher(b *Bridge, cmds *Commands, sender Sender) *Dispatcher {
	return &Dispatcher{bridge: b, cmds: cmds, sender: sender}
}

// HandleMessage processes one message from the status channel. author
// doubles as the chat identity for link and claim bookkeeping.
func (d *Dispatcher) HandleMessage(author, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		d.bridge.HandleInbound(author, text)
		return
	}

	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]
	d.reply(d.runCommand(author, cmd, args))
}

func (d *Dispatcher) reply(text string) {
	if text == "" {
		return
	}
	if err := d.sender.Send(text); err != nil {
		// Same policy as event relay: log happens in the sender path,
		// the reply is simply lost.
		return
	}
}

func (d *Dispatcher) runCommand(author, cmd string, args []string) string {
	switch cmd {
	case "/status", "/mcstatus":
		return renderStatus(d.cmds.Status())

	case "/linkmc":
		if len(args) != 1 {
			return "Usage: /linkmc <username>"
		}
		prev, err := d.cmds.LinkAccount(author, args[0])
		if err != nil {
			return fmt.Sprintf("❌ Linking failed: %v", err)
		}
		switch {
		case prev == args[0]:
			return fmt.Sprintf("🔗 You are already linked to **%s**.", args[0])
		case prev != "":
			return fmt.Sprintf("🔁 Updated your linked username from **%s** to **%s**.", prev, args[0])
		default:
			return fmt.Sprintf("✅ Your account is now linked to **%s**!", args[0])
		}

	case "/daily":
		res, err := d.cmds.ClaimDaily(author)
		if err != nil {
			return renderClaimError(err)
		}
		return fmt.Sprintf("🎉 You received **%dx `%s`** for your **Day %d** login streak!", res.Amount, res.Item, res.Day)

	case "/rewards":
		lines, err := d.cmds.RewardSchedule()
		if err != nil {
			return fmt.Sprintf("❌ Could not load the reward table: %v", err)
		}
		if len(lines) == 0 {
			return "⚠️ No rewards configured."
		}
		return "🎁 Daily reward schedule:\n" + strings.Join(lines, "\n")

	case "/purge":
		if len(args) != 1 {
			return "Usage: /purge <days>"
		}
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return "Usage: /purge <days>"
		}
		req, err := d.cmds.RequestPurge(author, days)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return fmt.Sprintf("⚠️ Purge messages older than **%d day(s)**? Run /confirm_purge within 60 seconds to proceed.", req.Days)

	case "/confirm_purge":
		req, err := d.cmds.ConfirmPurge(author)
		switch {
		case errors.Is(err, ErrNoPendingPurge):
			return "❌ No pending purge request found."
		case errors.Is(err, ErrPurgeExpired):
			return "⏰ Purge request expired. Please run /purge again."
		case err != nil:
			return fmt.Sprintf("❌ %v", err)
		}
		return fmt.Sprintf("✅ Purge confirmed: messages older than %d day(s) are marked for deletion.", req.Days)

	default:
		return fmt.Sprintf("❓ Unknown command %s. Try /status, /linkmc, /daily, /rewards or /purge.", cmd)
	}
}

func renderStatus(rep StatusReport) string {
	if !rep.Online {
		return "🚫 Server is offline. The gates remain sealed..."
	}
	names := "None"
	if len(rep.PlayerNames) > 0 {
		names = strings.Join(rep.PlayerNames, ", ")
	}
	return fmt.Sprintf(
		"📜 Server Status: Online\n👥 Players: %d (%s)\n🏓 Latency: %dms\n⏱️ Uptime: %s",
		rep.PlayersOnline, names, rep.LatencyMs, formatUptime(rep.Uptime),
	)
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours == 0 && minutes == 0:
		return "just started"
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}

func renderClaimError(err error) string {
	var already *AlreadyClaimedError
	switch {
	case errors.Is(err, ErrNotLinked):
		return "❌ Link your account first with /linkmc <username>."
	case errors.Is(err, ErrPlayerOffline):
		return "❌ You must be online in the game to claim your reward."
	case errors.Is(err, ErrNoReward):
		return "⚠️ No reward configured for this day."
	case errors.As(err, &already):
		return fmt.Sprintf("🕒 You already claimed your Day %d reward today. Come back tomorrow!", already.Streak)
	default:
		return fmt.Sprintf("❌ Failed to issue reward: %v", err)
	}
}
