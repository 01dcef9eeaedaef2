// Package bridge relays game events into the chat channel and chat
// messages back into the game, and implements the chat-facing commands.
package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wanderlust/wanderbridge/internal/events"
	"github.com/wanderlust/wanderbridge/internal/mc"
	"github.com/wanderlust/wanderbridge/internal/sched"
	"github.com/wanderlust/wanderbridge/internal/store"
)

// Sender delivers one message to the status channel.
type Sender interface {
	Send(text string) error
}

// Console executes one remote console command.
type Console interface {
	Execute(command string) (string, error)
}

// Bridge is the two-way relay between the server log and the chat
// channel.
type Bridge struct {
	sender  Sender
	console Console
	hist    *store.History
	clk     sched.Clock
}

// New wires a relay. hist may be nil to skip archiving.
func New(sender Sender, console Console, hist *store.History, clk sched.Clock) *Bridge {
	return &Bridge{sender: sender, console: console, hist: hist, clk: clk}
}

// Pump classifies lines from the log tail and relays the matches until
// the channel closes or ctx is cancelled.
func (b *Bridge) Pump(ctx context.Context, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			ev, ok := events.Classify(line)
			if !ok {
				continue
			}
			b.HandleEvent(ev)
		}
	}
}

// HandleEvent formats one classified event for the status channel. A
// send failure is logged and the event dropped; the relay never blocks
// the tail on the chat backend.
func (b *Bridge) HandleEvent(ev events.Event) {
	text := FormatEvent(ev)
	if err := b.sender.Send(text); err != nil {
		log.Printf("bridge: dropping %s event: %v", ev.Kind, err)
		return
	}
	b.archive(ev)
}

// FormatEvent renders a classified event as a chat message.
func FormatEvent(ev events.Event) string {
	switch ev.Kind {
	case events.KindChat:
		return fmt.Sprintf("💬 **%s**: %s", ev.Player, ev.Text)
	case events.KindJoin:
		return fmt.Sprintf("➕ **%s** joined the game", ev.Player)
	case events.KindLeave:
		return fmt.Sprintf("➖ **%s** left the game", ev.Player)
	case events.KindAdvancement:
		return fmt.Sprintf("🏅 **%s** earned advancement **%s**!", ev.Player, ev.Title)
	case events.KindDeath:
		return fmt.Sprintf("💀 %s", ev.Text)
	default:
		return ev.Text
	}
}

// HandleInbound relays a chat message from the status channel into the
// game as a tellraw broadcast.
func (b *Bridge) HandleInbound(author, text string) {
	cmd, err := mc.TellrawCommand([]mc.Segment{
		{Text: "[Discord] ", Color: "blue", Bold: true},
		{Text: author + ": " + text, Color: "gray"},
	})
	if err != nil {
		log.Printf("bridge: building tellraw: %v", err)
		return
	}
	if _, err := b.console.Execute(cmd); err != nil {
		log.Printf("bridge: relaying chat to game: %v", err)
		return
	}
	b.archive(events.Event{Kind: events.KindChat, Player: author, Text: text})
}

func (b *Bridge) archive(ev events.Event) {
	if b.hist == nil {
		return
	}
	body := ev.Text
	if ev.Kind == events.KindAdvancement {
		body = ev.Title
	}
	if err := b.hist.Record(b.now(), ev.Kind.String(), ev.Player, body); err != nil {
		log.Printf("bridge: archiving %s event: %v", ev.Kind, err)
	}
}

func (b *Bridge) now() time.Time {
	if b.clk == nil {
		return time.Now()
	}
	return b.clk.Now()
}
