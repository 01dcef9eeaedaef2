package bridge

import (
	"strings"
	"testing"

	"github.com/wanderlust/wanderbridge/internal/sched"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *commandsFixture, *fakeSender) {
	t.Helper()
	fx := newTestCommands(t)
	sender := &fakeSender{}
	b := New(sender, fx.console, nil, sched.Real{})
	return NewDispatcher(b, fx.cmds, sender), fx, sender
}

func TestDispatchPlainTextRelaysToGame(t *testing.T) {
	d, fx, sender := newTestDispatcher(t)

	d.HandleMessage("alice", "good morning")

	cmds := fx.console.executed()
	if len(cmds) != 1 || !strings.Contains(cmds[0], "alice: good morning") {
		t.Fatalf("console commands = %v", cmds)
	}
	if len(sender.messages()) != 0 {
		t.Fatalf("plain chat produced a reply: %v", sender.messages())
	}
}

func TestDispatchStatusCommand(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	d.HandleMessage("alice", "/status")

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("replies = %v", msgs)
	}
	if !strings.Contains(msgs[0], "Online") || !strings.Contains(msgs[0], "Steve") {
		t.Fatalf("status reply = %q", msgs[0])
	}
}

func TestDispatchLinkAndDaily(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	d.HandleMessage("user-1", "/linkmc Steve")
	d.HandleMessage("user-1", "/daily")

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("replies = %v", msgs)
	}
	if !strings.Contains(msgs[0], "linked to **Steve**") {
		t.Fatalf("link reply = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "Day 1") || !strings.Contains(msgs[1], "minecraft:bread") {
		t.Fatalf("claim reply = %q", msgs[1])
	}
}

func TestDispatchDailyUnlinked(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	d.HandleMessage("user-1", "/daily")

	msgs := sender.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "/linkmc") {
		t.Fatalf("reply = %v", msgs)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, fx, sender := newTestDispatcher(t)

	d.HandleMessage("alice", "/dance")

	if msgs := sender.messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "Unknown command") {
		t.Fatalf("reply = %v", msgs)
	}
	if cmds := fx.console.executed(); len(cmds) != 0 {
		t.Fatalf("unknown command reached the game: %v", cmds)
	}
}

func TestDispatchPurgeFlow(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	d.HandleMessage("user-1", "/purge 7")
	d.HandleMessage("user-1", "/confirm_purge")
	d.HandleMessage("user-1", "/confirm_purge")

	msgs := sender.messages()
	if len(msgs) != 3 {
		t.Fatalf("replies = %v", msgs)
	}
	if !strings.Contains(msgs[0], "7 day(s)") {
		t.Fatalf("purge prompt = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "Purge confirmed") {
		t.Fatalf("confirm reply = %q", msgs[1])
	}
	if !strings.Contains(msgs[2], "No pending purge") {
		t.Fatalf("second confirm reply = %q", msgs[2])
	}
}
