package killfeed

import "github.com/killfeedsc/killfeed-go/pkg/killfeed/event"

// Re-export event types for convenience.
// Users can import just "github.com/killfeedsc/killfeed-go/pkg/killfeed"
// and use killfeed.Event, killfeed.EventKill, etc.

// Event represents a parsed combat log event.
type Event = event.Event

// EventType represents the type of combat log event.
type EventType = event.Type

// Event type constants.
const (
	EventKill               = event.Kill
	EventDeath              = event.Death
	EventSuicide            = event.Suicide
	EventVehicleDestruction = event.VehicleDestruction
	EventHostility          = event.Hostility
	EventConnectionStatus   = event.ConnectionStatus
)

// Connection status values carried by EventConnectionStatus events.
const (
	StatusConnected    = event.StatusConnected
	StatusDisconnected = event.StatusDisconnected
	StatusQuit         = event.StatusQuit
)

// EventTypeNames returns the sorted names of every type that can be parsed from a log.
func EventTypeNames() []string {
	return event.TypeNames()
}

// ParseEventType converts a name to an EventType, ignoring case and surrounding space.
func ParseEventType(name string) (EventType, bool) {
	return event.ParseType(name)
}
