package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name      string
		since     string
		until     string
		wantSince time.Time
		wantUntil time.Time
		wantErr   bool
	}{
		{
			name:      "empty strings",
			since:     "",
			until:     "",
			wantSince: time.Time{},
			wantUntil: time.Time{},
			wantErr:   false,
		},
		{
			name:      "valid since only",
			since:     "2025-01-15T12:00:00Z",
			until:     "",
			wantSince: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			wantUntil: time.Time{},
			wantErr:   false,
		},
		{
			name:      "valid until only",
			since:     "",
			until:     "2025-01-16T00:00:00Z",
			wantSince: time.Time{},
			wantUntil: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
			wantErr:   false,
		},
		{
			name:      "valid range",
			since:     "2025-01-15T12:00:00Z",
			until:     "2025-01-16T00:00:00Z",
			wantSince: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
			wantUntil: time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC),
			wantErr:   false,
		},
		{
			name:    "invalid since format",
			since:   "2025-01-15",
			until:   "",
			wantErr: true,
		},
		{
			name:    "invalid until format",
			since:   "",
			until:   "not-a-date",
			wantErr: true,
		},
		{
			name:    "since after until",
			since:   "2025-01-16T00:00:00Z",
			until:   "2025-01-15T00:00:00Z",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSince, gotUntil, err := parseTimeRange(tt.since, tt.until)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseTimeRange() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if !gotSince.Equal(tt.wantSince) {
					t.Errorf("parseTimeRange() since = %v, want %v", gotSince, tt.wantSince)
				}
				if !gotUntil.Equal(tt.wantUntil) {
					t.Errorf("parseTimeRange() until = %v, want %v", gotUntil, tt.wantUntil)
				}
			}
		})
	}
}

func TestRunParseInvalidEventType(t *testing.T) {
	// Save and restore original values
	origInclude := parseIncludeTypes
	origExclude := parseExcludeTypes
	origFormat := parseFormat
	defer func() {
		parseIncludeTypes = origInclude
		parseExcludeTypes = origExclude
		parseFormat = origFormat
	}()

	// Set up test conditions
	parseFormat = "jsonl"
	parseIncludeTypes = []string{"invalid_type"}
	parseExcludeTypes = nil

	err := runParse(parseCmd, nil)
	if err == nil {
		t.Error("expected error for invalid event type, got nil")
		return
	}
	if !strings.Contains(err.Error(), "unknown event type") {
		t.Errorf("expected 'unknown event type' error, got: %v", err)
	}
}

func TestRunParseOverlapEventTypes(t *testing.T) {
	// Save and restore original values
	origInclude := parseIncludeTypes
	origExclude := parseExcludeTypes
	origFormat := parseFormat
	defer func() {
		parseIncludeTypes = origInclude
		parseExcludeTypes = origExclude
		parseFormat = origFormat
	}()

	// Set up test conditions
	parseFormat = "jsonl"
	parseIncludeTypes = []string{"kill"}
	parseExcludeTypes = []string{"kill"}

	err := runParse(parseCmd, nil)
	if err == nil {
		t.Error("expected error for overlapping event types, got nil")
		return
	}
	if !strings.Contains(err.Error(), "cannot be both included and excluded") {
		t.Errorf("expected overlap error, got: %v", err)
	}
}

func TestRunParseFiles(t *testing.T) {
	origFormat, origWhere := parseFormat, parseWhere
	defer func() {
		parseFormat, parseWhere = origFormat, origWhere
	}()
	parseFormat = "pretty"
	parseWhere = `weapon == "Laser"`

	dir := t.TempDir()
	path := filepath.Join(dir, "Game.log")
	content := "<2025-01-01T12:00:00Z> [Kill] PlayerA killed PlayerB with Laser\n" +
		"<2025-01-01T12:01:00Z> [Kill] PlayerB killed PlayerA with Ballistic\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	parseCmd.SetOut(&out)
	parseCmd.SetErr(&errOut)
	defer func() {
		parseCmd.SetOut(nil)
		parseCmd.SetErr(nil)
	}()

	missing := filepath.Join(dir, "missing.log")
	if err := runParse(parseCmd, []string{missing, path}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}
	if got, want := out.String(), "[12:00:00] x PlayerA killed PlayerB with Laser\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if !strings.Contains(errOut.String(), "missing.log") {
		t.Errorf("stderr = %q, want warning for missing file", errOut.String())
	}
}

func TestRunParseInvalidWhere(t *testing.T) {
	origFormat, origWhere := parseFormat, parseWhere
	defer func() {
		parseFormat, parseWhere = origFormat, origWhere
	}()
	parseFormat = "jsonl"
	parseWhere = "victim"

	if err := runParse(parseCmd, []string{"Game.log"}); err == nil {
		t.Error("expected error for non-boolean where expression")
	}
}
