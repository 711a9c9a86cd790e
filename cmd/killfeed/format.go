package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// OutputEvent writes ev to w in the given format.
func OutputEvent(format string, ev killfeed.Event, w io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ev, w)
	case "pretty":
		return OutputPretty(ev, w)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes ev as a single JSON line, the same encoding viewers receive.
func OutputJSON(ev killfeed.Event, w io.Writer) error {
	return json.NewEncoder(w).Encode(ev)
}

// OutputPretty writes ev as a human-readable line.
func OutputPretty(ev killfeed.Event, w io.Writer) error {
	ts := ev.Timestamp.Format("15:04:05")
	_, err := fmt.Fprintf(w, "[%s] %s\n", ts, describe(ev))
	return err
}

func describe(ev killfeed.Event) string {
	switch ev.Type {
	case killfeed.EventKill:
		s := withShip(ev.Killer, ev.KillerShip) + " killed " + withShip(ev.Victim, ev.VictimShip)
		if ev.Weapon != "" {
			s += " with " + ev.Weapon
		}
		return "x " + s
	case killfeed.EventSuicide:
		s := withShip(ev.Victim, ev.VictimShip) + " killed themselves"
		if c := cause(ev); c != "" {
			s += " (" + c + ")"
		}
		return "- " + s
	case killfeed.EventDeath:
		s := withShip(nameOr(ev.Victim, "local player"), ev.VictimShip) + " died"
		if c := cause(ev); c != "" {
			s += " (" + c + ")"
		}
		return "- " + s
	case killfeed.EventVehicleDestruction:
		s := nameOr(ev.VictimShip, "vehicle")
		if ev.Victim != "" {
			s += " of " + ev.Victim
		}
		s += " destroyed"
		if ev.Killer != "" {
			s += " by " + ev.Killer
		}
		if ev.DamageType != "" {
			s += " (" + ev.DamageType + ")"
		}
		return "* " + s
	case killfeed.EventHostility:
		return "! " + ev.Killer + " attacked " + withShip(ev.Victim, ev.VictimShip)
	case killfeed.EventConnectionStatus:
		if ev.Status == killfeed.StatusConnected {
			return "> " + ev.Status
		}
		return "< " + ev.Status
	default:
		return "? " + string(ev.Type)
	}
}

func withShip(name, ship string) string {
	if ship == "" {
		return name
	}
	return name + " (" + ship + ")"
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func cause(ev killfeed.Event) string {
	if ev.Weapon != "" {
		return ev.Weapon
	}
	return ev.DamageType
}
