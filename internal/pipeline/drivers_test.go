package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/killfeedsc/killfeed-go/internal/parser"
	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

func newTestDrivers(ttl time.Duration) *drivers {
	return newDrivers(ttl, parser.New().ShipLabel)
}

func TestDrivers_Enrich(t *testing.T) {
	tests := []struct {
		name   string
		in     event.Event
		want   event.Event
		wantOK bool
	}{
		{
			name:   "victim id resolved to driver",
			in:     event.Event{Type: event.Kill, Killer: "PlayerC", VictimID: "AEGS_Sabre_123456789012"},
			want:   event.Event{Type: event.Kill, Killer: "PlayerC", Victim: "PlayerA", VictimShip: "Sabre", VictimID: "AEGS_Sabre_123456789012"},
			wantOK: true,
		},
		{
			name:   "unresolved victim is dropped",
			in:     event.Event{Type: event.Kill, Killer: "PlayerC", VictimID: "ANVL_Arrow_651076209584"},
			wantOK: false,
		},
		{
			name:   "killer id turns death into kill",
			in:     event.Event{Type: event.Death, Victim: "PlayerC", KillerID: "DRAK_Cutlass_Black_998877665544"},
			want:   event.Event{Type: event.Kill, Killer: "PlayerB", KillerShip: "Cutlass Black", Victim: "PlayerC", KillerID: "DRAK_Cutlass_Black_998877665544"},
			wantOK: true,
		},
		{
			name:   "killer id of the victim's own vehicle is a suicide",
			in:     event.Event{Type: event.Death, Victim: "PlayerA", KillerID: "AEGS_Sabre_123456789012"},
			want:   event.Event{Type: event.Suicide, Killer: "PlayerA", KillerShip: "Sabre", Victim: "PlayerA", VictimShip: "Sabre", KillerID: "AEGS_Sabre_123456789012"},
			wantOK: true,
		},
		{
			name:   "unknown driver of destroyed vehicle",
			in:     event.Event{Type: event.VehicleDestruction, Killer: "PlayerB", VictimShip: "Arrow", VictimID: "ANVL_Arrow_651076209584"},
			want:   event.Event{Type: event.VehicleDestruction, Killer: "PlayerB", KillerShip: "Cutlass Black", VictimShip: "Arrow", VictimID: "ANVL_Arrow_651076209584"},
			wantOK: true,
		},
		{
			name:   "logged ship is kept",
			in:     event.Event{Type: event.Kill, Killer: "PlayerA", KillerShip: "Gladius", Victim: "PlayerB"},
			want:   event.Event{Type: event.Kill, Killer: "PlayerA", KillerShip: "Gladius", Victim: "PlayerB", VictimShip: "Cutlass Black"},
			wantOK: true,
		},
		{
			name:   "unknown players untouched",
			in:     event.Event{Type: event.Kill, Killer: "PlayerX", Victim: "PlayerY"},
			want:   event.Event{Type: event.Kill, Killer: "PlayerX", Victim: "PlayerY"},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDrivers(time.Minute)
			d.Observe(parser.Boarding{Player: "PlayerA", Vehicle: "AEGS_Sabre_123456789012"})
			d.Observe(parser.Boarding{Player: "PlayerB", Vehicle: "DRAK_Cutlass_Black_998877665544"})

			ev := tt.in
			ok := d.Enrich(&ev)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, ev)
			}
		})
	}
}

func TestDrivers_LatestBoardingWins(t *testing.T) {
	d := newTestDrivers(time.Minute)
	d.Observe(parser.Boarding{Player: "PlayerA", Vehicle: "AEGS_Sabre_123456789012"})
	d.Observe(parser.Boarding{Player: "playera", Vehicle: "AEGS_Gladius_5551234567"})

	ev := event.Event{Type: event.Kill, Killer: "PlayerA", Victim: "PlayerB"}
	assert.True(t, d.Enrich(&ev))
	assert.Equal(t, "Gladius", ev.KillerShip)
}

func TestDrivers_Expire(t *testing.T) {
	d := newTestDrivers(50 * time.Millisecond)
	d.Observe(parser.Boarding{Player: "PlayerA", Vehicle: "AEGS_Sabre_123456789012"})

	time.Sleep(150 * time.Millisecond)
	ev := event.Event{Type: event.Kill, Killer: "PlayerC", VictimID: "AEGS_Sabre_123456789012"}
	assert.False(t, d.Enrich(&ev))
}
