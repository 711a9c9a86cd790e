// Package event defines the core Event type for Star Citizen combat log parsing.
//
// This package is separated from the main killfeed package to avoid import cycles
// between pkg/killfeed and internal/parser.
package event

import (
	"sort"
	"strings"
	"time"
)

// Type represents the type of combat log event.
type Type string

const (
	// Kill indicates one player killed another.
	Kill Type = "kill"

	// Death indicates a player died with no identifiable killer.
	Death Type = "death"

	// Suicide indicates a self-inflicted death (including fatal collisions).
	Suicide Type = "suicide"

	// VehicleDestruction indicates a vehicle was destroyed.
	VehicleDestruction Type = "vehicle_destruction"

	// Hostility indicates one player opened fire on another's vehicle.
	// Killer is the attacker and Victim the pilot of the targeted vehicle.
	Hostility Type = "hostility"

	// ConnectionStatus indicates the game client connected to or left a server.
	ConnectionStatus Type = "connection_status"

	// Hello is sent once to every newly connected viewer. It never comes from the log.
	Hello Type = "hello"
)

// allTypes is the canonical list of event types that can be parsed from a log line.
// Hello is excluded: it is generated by the broadcast hub.
var allTypes = []Type{Kill, Death, Suicide, VehicleDestruction, Hostility, ConnectionStatus}

// TypeNames returns a sorted list of all valid event type names.
func TypeNames() []string {
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return names
}

var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(allTypes))
	for _, t := range allTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType converts a string to Type if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeByName[name]
	return t, ok
}

// Connection status values carried by ConnectionStatus events.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusQuit         = "quit"
)

// Event represents a parsed combat log event.
//
// The JSON encoding is the wire format pushed to viewers: optional fields are
// omitted rather than sent as null.
type Event struct {
	// Type is the event type.
	Type Type `json:"type"`

	// Timestamp is when the event occurred (UTC, from the log line when present).
	Timestamp time.Time `json:"timestamp"`

	// Killer is the actor name. Empty for deaths with no identifiable killer.
	Killer string `json:"killer,omitempty"`

	// KillerShip is the human label of the killer's vehicle.
	KillerShip string `json:"killer_ship,omitempty"`

	// Victim is the target name.
	Victim string `json:"victim,omitempty"`

	// VictimShip is the human label of the victim's vehicle.
	VictimShip string `json:"victim_ship,omitempty"`

	// Weapon is the weapon or cause label.
	Weapon string `json:"weapon,omitempty"`

	// DamageType is the game's damage classification (e.g. "Collision", "VehicleDestruction").
	DamageType string `json:"damage_type,omitempty"`

	// Status is set on ConnectionStatus events.
	Status string `json:"status,omitempty"`

	// RawLine is the original log line (only included if requested).
	RawLine string `json:"raw_line,omitempty"`

	// KillerID and VictimID hold the entity id logged in place of a player
	// name, when the parser keeps such events for later resolution.
	KillerID string `json:"-"`
	VictimID string `json:"-"`
}

// Involves reports whether name is the killer or the victim, ignoring case.
func (e Event) Involves(name string) bool {
	if name == "" {
		return false
	}
	return strings.EqualFold(e.Killer, name) || strings.EqualFold(e.Victim, name)
}
