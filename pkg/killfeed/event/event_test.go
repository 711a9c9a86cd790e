package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Type
		wantOK bool
	}{
		// Valid types - exact match
		{"kill exact", "kill", Kill, true},
		{"death exact", "death", Death, true},
		{"suicide exact", "suicide", Suicide, true},
		{"vehicle_destruction exact", "vehicle_destruction", VehicleDestruction, true},
		{"connection_status exact", "connection_status", ConnectionStatus, true},

		// Case-insensitive
		{"uppercase KILL", "KILL", Kill, true},
		{"mixed case Vehicle_Destruction", "Vehicle_Destruction", VehicleDestruction, true},

		// Whitespace handling
		{"leading space", " kill", Kill, true},
		{"trailing space", "death ", Death, true},
		{"tab", "\tsuicide\t", Suicide, true},

		// Invalid types
		{"hello is not parseable", "hello", "", false},
		{"unknown type", "unknown", "", false},
		{"empty string", "", "", false},
		{"internal space", "vehicle destruction", "", false},
		{"typo", "kil", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseType(tt.input)
			if ok != tt.wantOK {
				t.Errorf("ParseType(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseType_RoundTrip(t *testing.T) {
	for _, name := range TypeNames() {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseType(name)
			if !ok {
				t.Errorf("ParseType(%q) returned false, expected true", name)
			}
			if string(got) != name {
				t.Errorf("ParseType(%q) = %q, expected %q", name, got, name)
			}
		})
	}
}

func TestTypeNames_Sorted(t *testing.T) {
	names := TypeNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("TypeNames() not sorted: %q > %q", names[i-1], names[i])
		}
	}
}

func TestEvent_JSONOmitsAbsentFields(t *testing.T) {
	ev := Event{
		Type:      Death,
		Timestamp: time.Date(2025, 10, 24, 22, 45, 12, 0, time.UTC),
		Victim:    "PlayerB",
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(data)

	want := `{"type":"death","timestamp":"2025-10-24T22:45:12Z","victim":"PlayerB"}`
	if got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
	if strings.Contains(got, "null") {
		t.Errorf("Marshal() contains null: %s", got)
	}
}

func TestEvent_Involves(t *testing.T) {
	ev := Event{Type: Kill, Killer: "PlayerA", Victim: "PlayerB"}

	if !ev.Involves("playera") {
		t.Error("Involves(playera) = false, want true")
	}
	if !ev.Involves("PlayerB") {
		t.Error("Involves(PlayerB) = false, want true")
	}
	if ev.Involves("PlayerC") {
		t.Error("Involves(PlayerC) = true, want false")
	}
	if ev.Involves("") {
		t.Error("Involves(\"\") = true, want false")
	}
}
