package parser

import (
	"regexp"
	"strings"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

// rule is one entry of the ordered match table.
type rule struct {
	name    string
	pattern *regexp.Regexp
	// build turns the named captures into an event. ok=false means the line
	// belongs to this rule but carries nothing worth reporting.
	build func(p *Parser, c map[string]string) (ev event.Event, ok bool)
}

// defaultRules is ordered from most to least specific.
var defaultRules = []rule{
	{
		name:    "kill",
		pattern: regexp.MustCompile(`(?i)\[Kill\]\s+(?P<killer>\S+)(?:\s+\((?P<killer_ship>[^)]*)\))?\s+killed\s+(?P<victim>\S+)(?:\s+\((?P<victim_ship>[^)]*)\))?(?:\s+with\s+(?P<weapon>.+?))?\s*$`),
		build:   buildKill,
	},
	{
		name:    "actor_death",
		pattern: regexp.MustCompile(`(?i)<Actor Death>.*?'(?P<victim>[^']+)'.*?in zone '(?P<zone>[^']*)'.*?killed by '(?P<killer>[^']*)'(?:.*?using '(?P<weapon>[^']*)')?(?:.*?damage type '(?P<damage>[^']*)')?`),
		build:   buildActorDeath,
	},
	{
		name:    "vehicle_destruction",
		pattern: regexp.MustCompile(`(?i)<Vehicle Destruction>.*?Vehicle '(?P<vehicle>[^']+)'.*?driven by '(?P<driver>[^']*)'.*?caused by '(?P<causer>[^']*)'(?:.*?with '(?P<damage>[^']*)')?`),
		build:   buildVehicleDestruction,
	},
	{
		name:    "corpse",
		pattern: regexp.MustCompile(`(?i)Corpse:\s*'?(?P<victim>[^\s'(]+)'?.*?\bwas killed by\s+'?(?P<killer>[^\s']+)'?(?:\s+using\s+'?(?P<weapon>[^\s']+)'?)?`),
		build:   buildKill,
	},
	{
		name:    "local_player_killed",
		pattern: regexp.MustCompile(`(?i)Local player was killed by\s+'?(?P<killer>[^\s']+)'?(?:\s+(?:using|with)\s+'?(?P<weapon>[^\s']+)'?)?`),
		build:   buildLocalPlayerKilled,
	},
	{
		name:    "death",
		pattern: regexp.MustCompile(`(?i)\[Death\]\s+(?P<victim>[^\s(]+)(?:\s+\((?P<victim_ship>[^)]*)\))?\s+(?P<verb>died|crashed|was destroyed)(?:\s+(?:from|by|in|due to)\s+(?P<cause>.+?))?\s*$`),
		build:   buildDeath,
	},
	{
		name:    "connection",
		pattern: regexp.MustCompile(`(?i)Client:\s*(?P<what>Connected to|Disconnected|Quit)\b`),
		build:   buildConnection,
	},
	{
		name:    "hostility",
		pattern: hostilityPattern,
		build:   buildHostility,
	},
	{
		name:    "generic_kill",
		pattern: regexp.MustCompile(`(?i)(?P<victim>[A-Za-z0-9_\-]+)\s+(?:was\s+)?killed\s+by\s+(?P<killer>[A-Za-z0-9_\-]+)`),
		build:   buildKill,
	},
}

// hostilityPattern matches a hostility report. The target pilot is captured
// as driver so the same pattern also feeds Boarding.
var hostilityPattern = regexp.MustCompile(`(?i)<Debug Hostility Events>.*?FROM\s+(?P<attacker>[A-Za-z0-9_\-]+)\s+TO\s+(?P<ship>\S+).*?child\s+(?P<driver>[A-Za-z0-9_\-]+)`)

// killType classifies a cleaned killer/victim pair.
func killType(killer, victim string) event.Type {
	switch {
	case killer == "":
		return event.Death
	case victim != "" && strings.EqualFold(killer, victim):
		return event.Suicide
	default:
		return event.Kill
	}
}

// actor cleans a logged actor name. When entity ids are kept, an id logged
// in place of a name is returned as id.
func (p *Parser) actor(raw string) (name, id string) {
	name = cleanName(raw)
	if raw = strings.TrimSpace(raw); name == "" && p.keepIDs && isEntityID(raw) {
		id = raw
	}
	return name, id
}

func (p *Parser) ship(raw string) string {
	if raw == "" {
		return ""
	}
	return p.ships.Normalize(raw)
}

func buildKill(p *Parser, c map[string]string) (event.Event, bool) {
	killer, killerID := p.actor(c["killer"])
	victim, victimID := p.actor(c["victim"])
	if victim == "" && victimID == "" {
		return event.Event{}, false
	}
	ev := event.Event{
		Type:       killType(killer, victim),
		Killer:     killer,
		KillerID:   killerID,
		Victim:     victim,
		VictimID:   victimID,
		VictimShip: p.ship(c["victim_ship"]),
		Weapon:     cleanLabel(c["weapon"]),
	}
	if killer != "" {
		ev.KillerShip = p.ship(c["killer_ship"])
	}
	return ev, true
}

func buildActorDeath(p *Parser, c map[string]string) (event.Event, bool) {
	victim, victimID := p.actor(c["victim"])
	if victim == "" && victimID == "" {
		return event.Event{}, false
	}
	killer, killerID := p.actor(c["killer"])
	damage := strings.TrimSpace(c["damage"])

	ev := event.Event{
		Victim:     victim,
		VictimID:   victimID,
		Weapon:     cleanLabel(c["weapon"]),
		DamageType: damage,
	}
	if label, ok := p.ships.Lookup(c["zone"]); ok {
		ev.VictimShip = label
	}

	switch {
	case strings.EqualFold(damage, "suicide") || (killer != "" && strings.EqualFold(killer, victim)):
		ev.Type = event.Suicide
		ev.Killer = victim
		ev.KillerShip = ev.VictimShip
	case killer == "":
		ev.Type = event.Death
		ev.KillerID = killerID
	default:
		ev.Type = event.Kill
		ev.Killer = killer
		// A vehicle used as the weapon means the killer rammed the victim.
		if label, ok := p.ships.Lookup(c["weapon"]); ok {
			ev.KillerShip = label
		}
	}
	return ev, true
}

func buildVehicleDestruction(p *Parser, c map[string]string) (event.Event, bool) {
	killer, killerID := p.actor(c["causer"])
	ev := event.Event{
		Type:       event.VehicleDestruction,
		Killer:     killer,
		KillerID:   killerID,
		Victim:     cleanName(c["driver"]),
		VictimShip: p.ship(c["vehicle"]),
		DamageType: strings.TrimSpace(c["damage"]),
	}
	// An unnamed driver can still be found from the vehicle itself.
	if ev.Victim == "" && p.keepIDs {
		ev.VictimID = strings.TrimSpace(c["vehicle"])
	}
	return ev, true
}

func buildLocalPlayerKilled(p *Parser, c map[string]string) (event.Event, bool) {
	killer, killerID := p.actor(c["killer"])
	ev := event.Event{
		Type:     killType(killer, p.localPlayer),
		Killer:   killer,
		KillerID: killerID,
		Victim:   p.localPlayer,
		Weapon:   cleanLabel(c["weapon"]),
	}
	return ev, true
}

func buildDeath(p *Parser, c map[string]string) (event.Event, bool) {
	victim := cleanName(c["victim"])
	if victim == "" {
		return event.Event{}, false
	}
	cause := cleanLabel(c["cause"])
	ev := event.Event{
		Type:       event.Death,
		Victim:     victim,
		VictimShip: p.ship(c["victim_ship"]),
		Weapon:     cause,
	}
	if strings.EqualFold(c["verb"], "crashed") || selfInflicted(cause) {
		ev.Type = event.Suicide
		ev.Killer = victim
		ev.KillerShip = ev.VictimShip
	}
	return ev, true
}

func buildConnection(_ *Parser, c map[string]string) (event.Event, bool) {
	var status string
	switch strings.ToLower(c["what"]) {
	case "connected to":
		status = event.StatusConnected
	case "disconnected":
		status = event.StatusDisconnected
	default:
		status = event.StatusQuit
	}
	return event.Event{Type: event.ConnectionStatus, Status: status}, true
}

func buildHostility(p *Parser, c map[string]string) (event.Event, bool) {
	attacker, target := cleanName(c["attacker"]), cleanName(c["driver"])
	if attacker == "" || target == "" {
		return event.Event{}, false
	}
	return event.Event{
		Type:       event.Hostility,
		Killer:     attacker,
		Victim:     target,
		VictimShip: p.ship(c["ship"]),
	}, true
}
