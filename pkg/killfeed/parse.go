package killfeed

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"

	"github.com/killfeedsc/killfeed-go/internal/logfinder"
)

// maxLineBytes caps a single line read by ParseFile.
const maxLineBytes = 1 << 20

// ParseLine parses a single Game.log line into an Event.
//
// It returns (nil, false) when the line matches no rule or the event is
// rejected by a filter option. Parsing is pure: the same line always yields
// the same event, except for lines without a timestamp, which are stamped
// with the current time.
//
// Example:
//
//	line := "<2025-01-01T12:00:00Z> [Kill] PlayerA killed PlayerB with Laser"
//	if ev, ok := killfeed.ParseLine(line); ok {
//	    fmt.Printf("%s killed %s\n", ev.Killer, ev.Victim)
//	}
func ParseLine(line string, opts ...ParseOption) (*Event, bool) {
	cfg := applyParseOptions(opts)
	if cfg.err != nil {
		return nil, false
	}
	p, err := cfg.newParser()
	if err != nil {
		return nil, false
	}

	ev, ok := p.Parse(line)
	if !ok || !cfg.compiled.Allows(ev) {
		return nil, false
	}
	if cfg.includeRawLine {
		ev.RawLine = line
	}
	return &ev, true
}

// ParseFile parses a Game.log file and returns an iterator over events.
// The file is opened lazily on first iteration, so the returned iterator
// is cheap to create but must be consumed to release resources.
//
// The iterator yields (Event, error) pairs. When an error occurs:
//   - Option or file open errors: yields (Event{}, error) once and stops
//   - Read errors: yields a *ParseError once and stops
//   - Context cancellation: yields (Event{}, ctx.Err()) and stops
//
// Example:
//
//	for ev, err := range killfeed.ParseFile(ctx, "Game.log") {
//	    if err != nil {
//	        log.Printf("error: %v", err)
//	        break
//	    }
//	    fmt.Printf("event: %+v\n", ev)
//	}
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[Event, error] {
	if path == "" {
		return func(yield func(Event, error) bool) {
			yield(Event{}, errors.New("killfeed: path required"))
		}
	}

	cfg := applyParseOptions(opts)

	return func(yield func(Event, error) bool) {
		if cfg.err != nil {
			yield(Event{}, cfg.err)
			return
		}
		p, err := cfg.newParser()
		if err != nil {
			yield(Event{}, err)
			return
		}

		file, err := os.Open(path)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, maxLineBytes)

		lineNo := 0
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			lineNo++

			line := scanner.Text()
			ev, ok := p.Parse(line)
			if !ok {
				continue
			}
			if !cfg.compiled.Allows(ev) {
				continue
			}

			if !cfg.since.IsZero() && ev.Timestamp.Before(cfg.since) {
				continue
			}
			if !cfg.until.IsZero() && !ev.Timestamp.Before(cfg.until) {
				// Game.log is chronological.
				return
			}

			if cfg.includeRawLine {
				ev.RawLine = line
			}

			if !yield(ev, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Event{}, &ParseError{Path: path, Line: lineNo + 1, Err: err})
		}
	}
}

// ParseFileAll is a convenience function that parses a log file and collects
// all events into a slice. Stops on first error and returns events collected so far.
//
// For large files, consider using ParseFile directly to avoid loading all events
// into memory at once.
func ParseFileAll(ctx context.Context, path string, opts ...ParseOption) ([]Event, error) {
	events := make([]Event, 0, 256)
	for ev, err := range ParseFile(ctx, path, opts...) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseDir parses Game.log and its backups (Game*.log in dir and
// dir/logbackups), yielding events in chronological order (by file
// modification time, oldest first). An empty dir is auto-detected.
//
// The iterator yields (Event, error) pairs. When an error occurs:
//   - Directory access errors: yields (Event{}, error) once and stops
//   - File errors: skips to the next file by default, or stops if
//     WithParseStopOnError is set
func ParseDir(ctx context.Context, dir string, opts ...ParseOption) iter.Seq2[Event, error] {
	cfg := applyParseOptions(opts)

	return func(yield func(Event, error) bool) {
		if cfg.err != nil {
			yield(Event{}, cfg.err)
			return
		}
		logDir, err := logfinder.FindLogDir(dir)
		if err != nil {
			yield(Event{}, err)
			return
		}
		files, err := logfinder.ListLogFiles(logDir)
		if err != nil {
			yield(Event{}, err)
			return
		}
		for ev, err := range ParsePaths(ctx, files, opts...) {
			if err != nil && !cfg.stopOnError && !isTerminal(err) {
				continue
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// ParsePaths parses the given files in order. File errors are yielded
// with the file name and, unless WithParseStopOnError is set, parsing
// continues with the next file.
func ParsePaths(ctx context.Context, paths []string, opts ...ParseOption) iter.Seq2[Event, error] {
	cfg := applyParseOptions(opts)

	return func(yield func(Event, error) bool) {
		if cfg.err != nil {
			yield(Event{}, cfg.err)
			return
		}
		if len(paths) == 0 {
			yield(Event{}, ErrNoLogFiles)
			return
		}
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			for ev, err := range ParseFile(ctx, path, opts...) {
				if err != nil {
					if isTerminal(err) {
						yield(Event{}, err)
						return
					}
					if !yield(Event{}, fmt.Errorf("%s: %w", path, err)) || cfg.stopOnError {
						return
					}
					break
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

// isTerminal reports errors that end a multi-file parse regardless of options.
func isTerminal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNoLogFiles)
}
