package bridge

import (
	"fmt"
	"log"
	"math/rand"
)

// Message pools for lifecycle announcements. Picked at random so the
// channel does not read like a machine wrote it.
var (
	readyMessages = []string{
		"✅ Server is fully initialized! Time to craft greatness.",
		"🚀 Boot complete — join the adventure!",
		"🌟 The realm is ready. Enter if you dare!",
		"🎮 Server is online and accepting heroes.",
		"🟢 All systems go. You're clear to connect!",
		"🧱 Startup complete — blocks await!",
	}

	farewellMessages = []string{
		"👋 Server's gone to sleep — guess I will too. Bye everyone!",
		"🛑 Minecraft server powered off. Logging out until next time!",
		"💤 The server took a nap... so I'm outta here!",
		"🚪 Doors are shut, chunks unloaded. See you after the restart!",
		"😴 Server's offline — time for me to dream of pixel sheep.",
		"🌙 The night has fallen on the server... disconnecting now!",
		"🎮 Minecraft said 'bye', so I'm dipping too. Catch you later!",
		"📴 Server shutdown detected. Executing emergency nap protocol.",
		"🥾 The server pulled the plug — and kicked me offline with it!",
	}

	bootingFlairs = []string{
		"🔄 Checking server core...",
		"🚧 Calibrating dimensions...",
		"⚙️ Spinning up redstone...",
		"🌀 Warming up portals...",
		"📶 Pinging chunk loaders...",
		"🔧 Aligning circuits...",
	}

	bootingDots = []string{"⏳", "🕐", "🕑", "🕒", "🕓", "🕔", "⌛"}
)

// Announcer turns lifecycle transitions into status-channel messages.
// It satisfies the monitor's Announcer interface.
type Announcer struct {
	sender Sender
}

// NewAnnouncer wraps a Sender for lifecycle announcements.
func NewAnnouncer(sender Sender) *Announcer {
	return &Announcer{sender: sender}
}

func (a *Announcer) send(text string) {
	if err := a.sender.Send(text); err != nil {
		log.Printf("bridge: announcement dropped: %v", err)
	}
}

// AnnounceBooting posts a rotating "still booting" indicator.
func (a *Announcer) AnnounceBooting(tick int) {
	dot := bootingDots[tick%len(bootingDots)]
	flair := bootingFlairs[rand.Intn(len(bootingFlairs))]
	a.send(fmt.Sprintf("%s %s", dot, flair))
}

// AnnounceReady posts a random server-ready message.
func (a *Announcer) AnnounceReady() {
	a.send(readyMessages[rand.Intn(len(readyMessages))])
}

// AnnounceFarewell posts a random goodbye when the server goes away.
func (a *Announcer) AnnounceFarewell() {
	a.send(farewellMessages[rand.Intn(len(farewellMessages))])
}

// AnnounceRestart posts the scheduled-restart notice.
func (a *Announcer) AnnounceRestart() {
	a.send("🔄 Scheduled restart: re-attaching to a fresh log. Back in a moment!")
}
