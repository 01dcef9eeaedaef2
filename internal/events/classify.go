// Package events classifies raw server log lines into the typed domain
// events the bridge relays. Classification is an ordered rule table:
// the first matching rule wins, and a line matching no rule is dropped.
package events

import (
	"regexp"
	"strings"
)

// Kind identifies the event variant.
type Kind int

const (
	KindChat Kind = iota
	KindJoin
	KindLeave
	KindAdvancement
	KindDeath
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindAdvancement:
		return "advancement"
	case KindDeath:
		return "death"
	default:
		return "unknown"
	}
}

// Event is a classified log line. Which fields are set depends on Kind:
// Chat uses Player+Text, Join/Leave use Player, Advancement uses
// Player+Title, Death uses Text (the full message with the log prefix
// stripped).
type Event struct {
	Kind   Kind
	Player string
	Text   string
	Title  string
}

// DeathVerbs is the conservative token table for death detection: a
// message body starting with a player name followed by one of these is
// treated as a death report. Missing an exotic death is preferred over
// relaying an unrelated server line, so extend with care.
var DeathVerbs = []string{
	"was", "fell", "drowned", "died", "blew up", "tried", "walked",
	"hit", "went", "got", "discovered", "suffocated", "starved",
	"froze", "experienced", "dropped",
}

// logPrefixRe strips the timestamp/thread prefix, e.g.
// "[12:00:01] [Server thread/INFO]: ". Greedy, so it consumes through
// the last "]: " before the message body.
var logPrefixRe = regexp.MustCompile(`^\[.+\]: `)

type rule struct {
	re    *regexp.Regexp
	build func(line string, m []string) Event
}

// rules are tried in order; specificity decreases downward. Chat is
// first because "<Steve> I fell off" must never classify as a death.
var rules = []rule{
	{
		re: regexp.MustCompile(`<(.+?)> (.+)`),
		build: func(_ string, m []string) Event {
			return Event{Kind: KindChat, Player: m[1], Text: m[2]}
		},
	},
	{
		re: regexp.MustCompile(`\[.+\]: (.+) joined the game`),
		build: func(_ string, m []string) Event {
			return Event{Kind: KindJoin, Player: m[1]}
		},
	},
	{
		re: regexp.MustCompile(`\[.+\]: (.+) left the game`),
		build: func(_ string, m []string) Event {
			return Event{Kind: KindLeave, Player: m[1]}
		},
	},
	{
		re: regexp.MustCompile(`\[.+\]: (.+) has (?:made the advancement|completed the challenge|reached the goal) \[(.+)\]`),
		build: func(_ string, m []string) Event {
			return Event{Kind: KindAdvancement, Player: m[1], Title: m[2]}
		},
	},
	{
		re: deathRe(),
		build: func(line string, m []string) Event {
			return Event{Kind: KindDeath, Player: m[1], Text: logPrefixRe.ReplaceAllString(line, "")}
		},
	},
}

func deathRe() *regexp.Regexp {
	quoted := make([]string, len(DeathVerbs))
	for i, v := range DeathVerbs {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return regexp.MustCompile(`\[.+\]: (\S+) (?:` + strings.Join(quoted, "|") + `)\b`)
}

// Classify maps a raw log line to at most one event. The second return
// is false when no rule matched.
func Classify(line string) (Event, bool) {
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(line); m != nil {
			return r.build(line, m), true
		}
	}
	return Event{}, false
}
