// Package parser turns Star Citizen Game.log lines into combat events.
//
// Lines are matched against an ordered rule table; the first rule whose
// pattern matches decides the event. A Parser holds no mutable state and is
// safe for concurrent use.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

// timestampPrefix captures the "<2025-10-24T22:45:12.123Z>" stamp the game
// writes at the start of most lines.
var timestampPrefix = regexp.MustCompile(`^\s*<(\d{4}-[^>]*)>\s*`)

// Parser converts log lines into events.
type Parser struct {
	now         func() time.Time
	localPlayer string
	ships       *ShipTable
	keepIDs     bool
	rules       []rule
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used when a line has no usable timestamp.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocalPlayer sets the name used as victim for "Local player was killed" lines.
func WithLocalPlayer(name string) Option {
	return func(p *Parser) {
		p.localPlayer = strings.TrimSpace(name)
	}
}

// WithShips sets the ship label table.
func WithShips(t *ShipTable) Option {
	return func(p *Parser) {
		if t != nil {
			p.ships = t
		}
	}
}

// WithEntityIDs keeps kill and death events whose actor is logged only as
// an entity id, recording the id in KillerID or VictimID instead of dropping
// the event. A later stage can resolve the id to a player.
func WithEntityIDs(keep bool) Option {
	return func(p *Parser) {
		p.keepIDs = keep
	}
}

// New creates a Parser with the built-in rule table.
func New(opts ...Option) *Parser {
	p := &Parser{
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.ships == nil {
		p.ships = NewShipTable(nil)
	}
	p.rules = defaultRules
	return p
}

// defaultParser backs the package-level Parse.
var defaultParser = New()

// Parse parses line with the default parser.
func Parse(line string) (event.Event, bool) {
	return defaultParser.Parse(line)
}

// Parse returns the event described by line. A line that matches no rule,
// or matches a rule but names no usable actor, yields (Event{}, false).
func (p *Parser) Parse(line string) (event.Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return event.Event{}, false
	}

	ts, body := p.splitTimestamp(line)
	for _, r := range p.rules {
		m := r.pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		ev, ok := r.build(p, captures(r.pattern, m))
		if !ok {
			return event.Event{}, false
		}
		ev.Timestamp = ts
		return ev, true
	}
	return event.Event{}, false
}

// RuleNames returns the rule names in match order.
func (p *Parser) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.name
	}
	return names
}

// ShipLabel returns the display label for a logged vehicle name.
func (p *Parser) ShipLabel(raw string) string {
	return p.ship(raw)
}

// LocalPlayer returns the configured local player name.
func (p *Parser) LocalPlayer() string {
	return p.localPlayer
}

// splitTimestamp removes a leading timestamp and returns it with the rest of
// the line. A missing or malformed stamp falls back to the injected clock.
func (p *Parser) splitTimestamp(line string) (time.Time, string) {
	loc := timestampPrefix.FindStringSubmatchIndex(line)
	if loc == nil {
		return p.now().UTC(), line
	}
	body := line[loc[1]:]
	if ts, ok := parseTimestamp(line[loc[2]:loc[3]]); ok {
		return ts, body
	}
	return p.now().UTC(), body
}

// captures maps named groups to their matched text.
func captures(re *regexp.Regexp, m []string) map[string]string {
	out := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = strings.TrimSpace(m[i])
		}
	}
	return out
}
