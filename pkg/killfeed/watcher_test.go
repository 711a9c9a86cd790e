package killfeed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	killLine  = "<2025-01-01T12:00:00Z> [Kill] PlayerA killed PlayerB with Laser"
	deathLine = "<2025-01-01T12:05:00Z> [Death] PlayerC died"
)

func writeTempLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Game.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNewWatcher_InvalidPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Game.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWatcher(WithLogPath(path)); !errors.Is(err, ErrNotLogFile) {
		t.Errorf("NewWatcher() error = %v, want ErrNotLogFile", err)
	}
}

func TestNewWatcher_InvalidOptions(t *testing.T) {
	path := writeTempLog(t, "")

	tests := []struct {
		name string
		opts []WatchOption
	}{
		{"negative last n", []WatchOption{WithReplayLastN(-1)}},
		{"last n over max", []WatchOption{WithReplayLastN(20), WithMaxReplayLines(10)}},
		{"since without time", []WatchOption{WithReplay(ReplayConfig{Mode: ReplaySinceTime})}},
		{"negative poll", []WatchOption{WithPollInterval(-time.Second)}},
		{"bad where", []WatchOption{WithWhere("killer ==")}},
		{"missing ships file", []WatchOption{WithShipsFile(filepath.Join(t.TempDir(), "ships.yaml"))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]WatchOption{WithLogPath(path)}, tt.opts...)
			if _, err := NewWatcher(opts...); err == nil {
				t.Error("NewWatcher() expected error")
			}
		})
	}
}

func TestNewWatcher_Directory(t *testing.T) {
	path := writeTempLog(t, "")
	w, err := NewWatcher(WithLogPath(filepath.Dir(path)))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := filepath.EvalSymlinks(w.LogPath())
	want, _ := filepath.EvalSymlinks(path)
	if got != want {
		t.Errorf("LogPath() = %q, want %q", got, want)
	}
}

func TestWatcher_NewLines(t *testing.T) {
	path := writeTempLog(t, killLine+"\n")

	w, err := NewWatcher(WithLogPath(path), WithPollInterval(10*time.Millisecond), WithIncludeRawLine(true))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events, _, err := w.Watch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Existing content is skipped without a replay option.
	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, deathLine+"\n")

	ev := receive(t, events)
	if ev.Type != EventDeath || ev.Victim != "PlayerC" {
		t.Errorf("event = %+v, want death of PlayerC", ev)
	}
	if ev.RawLine != deathLine {
		t.Errorf("RawLine = %q, want %q", ev.RawLine, deathLine)
	}
}

func TestWatcher_Filters(t *testing.T) {
	path := writeTempLog(t, killLine+"\n"+deathLine+"\n")

	w, err := NewWatcher(
		WithLogPath(path),
		WithPollInterval(10*time.Millisecond),
		WithReplayFromStart(),
		WithExcludeTypes(EventKill),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events, _, err := w.Watch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev := receive(t, events); ev.Type != EventDeath {
		t.Errorf("first event type = %q, want death", ev.Type)
	}
}

func TestWatcher_Replay(t *testing.T) {
	content := killLine + "\n" + deathLine + "\n"

	tests := []struct {
		name string
		opt  WatchOption
		want []EventType
	}{
		{"from start", WithReplayFromStart(), []EventType{EventKill, EventDeath}},
		{"last n", WithReplayLastN(1), []EventType{EventDeath}},
		{"since time", WithReplaySinceTime(time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC)), []EventType{EventDeath}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempLog(t, content)
			w, err := NewWatcher(WithLogPath(path), WithPollInterval(10*time.Millisecond), tt.opt)
			if err != nil {
				t.Fatal(err)
			}
			defer w.Close()

			events, _, err := w.Watch(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				if ev := receive(t, events); ev.Type != want {
					t.Errorf("event %d type = %q, want %q", i, ev.Type, want)
				}
			}
			select {
			case ev := <-events:
				t.Errorf("unexpected extra event %+v", ev)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestWatcher_ReplayLastNHandsOffToTail(t *testing.T) {
	for _, notify := range []bool{false, true} {
		t.Run(fmt.Sprintf("notify=%v", notify), func(t *testing.T) {
			// The death line is still being written when the replay runs.
			path := writeTempLog(t, killLine+"\n"+deathLine)
			w, err := NewWatcher(
				WithLogPath(path),
				WithPollInterval(10*time.Millisecond),
				WithNotify(notify),
				WithReplayLastN(5),
			)
			if err != nil {
				t.Fatal(err)
			}
			defer w.Close()

			events, _, err := w.Watch(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if ev := receive(t, events); ev.Type != EventKill {
				t.Fatalf("replayed event type = %q, want kill", ev.Type)
			}

			time.Sleep(100 * time.Millisecond)
			appendLog(t, path, "\n")

			if ev := receive(t, events); ev.Type != EventDeath || ev.Victim != "PlayerC" {
				t.Errorf("tailed event = %+v, want death of PlayerC", ev)
			}
			select {
			case ev := <-events:
				t.Errorf("unexpected extra event %+v", ev)
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestWatcher_Notify(t *testing.T) {
	path := writeTempLog(t, killLine+"\n")

	w, err := NewWatcher(WithLogPath(path), WithNotify(true), WithReplayFromStart())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events, _, err := w.Watch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev := receive(t, events); ev.Type != EventKill || ev.Killer != "PlayerA" {
		t.Errorf("event = %+v, want kill by PlayerA", ev)
	}
}

func TestWatcher_ContextCancel(t *testing.T) {
	path := writeTempLog(t, "")

	w, err := NewWatcher(WithLogPath(path), WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, errs, err := w.Watch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected event channel to be closed")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
	for range errs {
	}
}

func TestWatcher_Lifecycle(t *testing.T) {
	path := writeTempLog(t, "")

	w, err := NewWatcher(WithLogPath(path), WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := w.Watch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.Watch(context.Background()); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() error = %v, want ErrAlreadyWatching", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, _, err := w.Watch(context.Background()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch() after Close error = %v, want ErrWatcherClosed", err)
	}
}

func TestWatcher_CloseBeforeWatch(t *testing.T) {
	path := writeTempLog(t, "")
	w, err := NewWatcher(WithLogPath(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWatch_ClosesOnCancel(t *testing.T) {
	path := writeTempLog(t, killLine+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	events, _, err := Watch(ctx, WithLogPath(path), WithPollInterval(10*time.Millisecond), WithReplayFromStart())
	if err != nil {
		t.Fatal(err)
	}
	if ev := receive(t, events); ev.Type != EventKill {
		t.Errorf("event type = %q, want kill", ev.Type)
	}
	cancel()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after cancel")
		}
	}
}

func TestWatch_InitError(t *testing.T) {
	if _, _, err := Watch(context.Background(), WithLogPath(filepath.Join(t.TempDir(), "Game.txt"))); err == nil {
		t.Error("Watch() expected error")
	}
}
