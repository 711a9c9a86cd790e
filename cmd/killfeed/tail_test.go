package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed"
)

func TestValidFormats(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"jsonl", true},
		{"pretty", true},
		{"json", false},
		{"xml", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got := ValidFormats[tt.format]
			if got != tt.valid {
				t.Errorf("ValidFormats[%q] = %v, want %v", tt.format, got, tt.valid)
			}
		})
	}
}

// resetTailFlags restores the tail flag variables after a test.
func resetTailFlags(t *testing.T) {
	t.Helper()
	origInclude, origExclude, origFormat := tailIncludeTypes, tailExcludeTypes, format
	origWhere, origSince, origLast := tailWhere, replaySince, replayLast
	t.Cleanup(func() {
		tailIncludeTypes, tailExcludeTypes, format = origInclude, origExclude, origFormat
		tailWhere, replaySince, replayLast = origWhere, origSince, origLast
	})
	format = "jsonl"
}

func TestRunTailInvalidEventType(t *testing.T) {
	resetTailFlags(t)
	tailIncludeTypes = []string{"invalid_type"}
	tailExcludeTypes = nil

	err := runTail(tailCmd, nil)
	if err == nil {
		t.Error("expected error for invalid event type, got nil")
		return
	}
	if !strings.Contains(err.Error(), "unknown event type") {
		t.Errorf("expected 'unknown event type' error, got: %v", err)
	}
}

func TestRunTailOverlapEventTypes(t *testing.T) {
	resetTailFlags(t)
	tailIncludeTypes = []string{"kill"}
	tailExcludeTypes = []string{"kill"}

	err := runTail(tailCmd, nil)
	if err == nil {
		t.Error("expected error for overlapping event types, got nil")
		return
	}
	if !strings.Contains(err.Error(), "cannot be both included and excluded") {
		t.Errorf("expected overlap error, got: %v", err)
	}
}

func TestRunTailInvalidFormat(t *testing.T) {
	resetTailFlags(t)
	format = "xml"

	if err := runTail(tailCmd, nil); err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got: %v", err)
	}
}

func TestTailOptions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		wantErr string
	}{
		{
			name:    "bad where",
			setup:   func() { tailWhere = "killer ==" },
			wantErr: "where",
		},
		{
			name:    "bad replay since",
			setup:   func() { replaySince = "yesterday" },
			wantErr: "--replay-since",
		},
		{
			name: "valid",
			setup: func() {
				tailIncludeTypes = []string{"kill"}
				tailWhere = `victim_ship != ""`
				replayLast = 50
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetTailFlags(t)
			tt.setup()

			opts, err := tailOptions()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("tailOptions() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("tailOptions() error = %v", err)
			}
			if len(opts) != 3 {
				t.Errorf("got %d options, want 3", len(opts))
			}
		})
	}
}

func TestPrintEvents(t *testing.T) {
	resetTailFlags(t)

	events := make(chan killfeed.Event, 2)
	errs := make(chan error, 1)
	events <- killfeed.Event{Type: killfeed.EventKill, Killer: "PlayerA", Victim: "PlayerB", Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	errs <- errors.New("rotated")
	close(events)
	close(errs)

	var out, errOut bytes.Buffer
	if err := printEvents(context.Background(), events, errs, &out, &errOut); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"killer":"PlayerA"`) {
		t.Errorf("stdout = %q", out.String())
	}
	if errOut.String() != "warning: rotated\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestPrintEvents_ContextDone(t *testing.T) {
	resetTailFlags(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if err := printEvents(ctx, make(chan killfeed.Event), make(chan error), &out, &out); err != nil {
		t.Errorf("printEvents() error = %v", err)
	}
}
