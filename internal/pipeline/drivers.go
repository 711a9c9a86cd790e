package pipeline

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/killfeedsc/killfeed-go/internal/parser"
	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

const (
	// DefaultDriverTTL is how long a player stays associated with the last
	// vehicle they were seen driving.
	DefaultDriverTTL = 5 * time.Minute

	driverCacheSize = 512
)

type driverEntry struct {
	player  string
	vehicle string
}

// drivers remembers who recently drove which vehicle and uses it to name
// actors the game logged only by entity id and to fill in missing ships.
// It is owned by the ingest goroutine.
type drivers struct {
	seen  *expirable.LRU[string, driverEntry]
	label func(raw string) string
}

func newDrivers(ttl time.Duration, label func(string) string) *drivers {
	if ttl <= 0 {
		ttl = DefaultDriverTTL
	}
	return &drivers{
		seen:  expirable.NewLRU[string, driverEntry](driverCacheSize, nil, ttl),
		label: label,
	}
}

// Observe records a boarding.
func (d *drivers) Observe(b parser.Boarding) {
	d.seen.Add(strings.ToLower(b.Player), driverEntry{player: b.Player, vehicle: b.Vehicle})
}

// driverOf returns the player last seen driving the vehicle whose logged
// name contains id.
func (d *drivers) driverOf(id string) string {
	id = strings.ToLower(id)
	entries := d.seen.Values()
	for i := len(entries) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(entries[i].vehicle), id) {
			return entries[i].player
		}
	}
	return ""
}

func (d *drivers) shipOf(player string) string {
	e, ok := d.seen.Get(strings.ToLower(player))
	if !ok {
		return ""
	}
	return d.label(e.vehicle)
}

// Enrich resolves entity ids on ev and fills ships from known drivers.
// It returns false for a kill or death whose victim stays unknown.
func (d *drivers) Enrich(ev *event.Event) bool {
	if ev.Victim == "" && ev.VictimID != "" {
		ev.Victim = d.driverOf(ev.VictimID)
		if ev.Victim == "" && ev.Type != event.VehicleDestruction {
			return false
		}
		if ev.Type == event.Kill && strings.EqualFold(ev.Killer, ev.Victim) {
			ev.Type = event.Suicide
		}
	}
	if ev.Killer == "" && ev.KillerID != "" {
		if ev.Killer = d.driverOf(ev.KillerID); ev.Killer != "" && ev.Type == event.Death {
			ev.Type = event.Kill
			if strings.EqualFold(ev.Killer, ev.Victim) {
				ev.Type = event.Suicide
			}
		}
	}
	if ev.Killer != "" && ev.KillerShip == "" {
		ev.KillerShip = d.shipOf(ev.Killer)
	}
	if ev.Victim != "" && ev.VictimShip == "" {
		ev.VictimShip = d.shipOf(ev.Victim)
	}
	return true
}
