package killfeed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/linesource"
	"github.com/killfeedsc/killfeed-go/internal/logfinder"
	"github.com/killfeedsc/killfeed-go/internal/parser"
	"github.com/killfeedsc/killfeed-go/internal/tailer"
)

// ReplayMode specifies how to handle existing log lines.
type ReplayMode int

const (
	// ReplayNone only watches for new lines (default, tail -f behavior).
	ReplayNone ReplayMode = iota
	// ReplayFromStart reads from the beginning of the file.
	ReplayFromStart
	// ReplayLastN reads the last N lines before tailing.
	ReplayLastN
	// ReplaySinceTime reads lines since a specific timestamp.
	ReplaySinceTime
)

// DefaultMaxReplayLastN is the default maximum lines for ReplayLastN mode.
const DefaultMaxReplayLastN = 10000

// ReplayConfig configures replay behavior.
// Only one mode can be active at a time (mutually exclusive).
type ReplayConfig struct {
	Mode  ReplayMode
	LastN int       // For ReplayLastN
	Since time.Time // For ReplaySinceTime
}

// Errors returned by Watcher.Watch.
var (
	ErrWatcherClosed   = errors.New("killfeed: watcher closed")
	ErrAlreadyWatching = errors.New("killfeed: watch already started")
)

// validate checks for invalid option combinations.
func (c *watchConfig) validate() error {
	if c.err != nil {
		return c.err
	}
	if c.replay.Mode == ReplayLastN {
		if c.replay.LastN < 0 {
			return fmt.Errorf("replay LastN must be non-negative, got %d", c.replay.LastN)
		}
		maxLines := c.maxReplayLines
		if maxLines == 0 {
			maxLines = DefaultMaxReplayLastN
		}
		if maxLines > 0 && c.replay.LastN > maxLines {
			return fmt.Errorf("replay LastN (%d) exceeds maximum of %d", c.replay.LastN, maxLines)
		}
	}
	if c.replay.Mode == ReplaySinceTime && c.replay.Since.IsZero() {
		return errors.New("replay Since must be set when mode is ReplaySinceTime")
	}
	if c.pollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative, got %v", c.pollInterval)
	}
	return nil
}

// Watcher follows Game.log and emits parsed events.
type Watcher struct {
	cfg     *watchConfig
	logPath string
	parser  *parser.Parser
	log     *zap.Logger

	mu       sync.Mutex
	closed   bool
	watching bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewWatcher creates a watcher.
// Validates options and resolves the log path; the file itself may not
// exist yet. Does NOT start goroutines (cheap to call).
func NewWatcher(opts ...WatchOption) (*Watcher, error) {
	cfg := applyWatchOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	logPath, err := logfinder.FindLogPath(cfg.logPath)
	if err != nil {
		return nil, err
	}

	p, err := cfg.newParser()
	if err != nil {
		return nil, err
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Watcher{
		cfg:     cfg,
		logPath: logPath,
		parser:  p,
		log:     log,
	}, nil
}

// LogPath returns the resolved Game.log path.
func (w *Watcher) LogPath() string {
	return w.logPath
}

// Watch starts watching and returns channels.
// When ctx is cancelled or Close is called, both channels are closed.
// Watch can only be called once per Watcher instance.
func (w *Watcher) Watch(ctx context.Context) (<-chan Event, <-chan error, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, nil, ErrWatcherClosed
	}
	if w.watching {
		w.mu.Unlock()
		return nil, nil, ErrAlreadyWatching
	}
	w.watching = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	eventCh := make(chan Event)
	errCh := make(chan error, 8)

	go w.run(ctx, eventCh, errCh)

	return eventCh, errCh, nil
}

// Close stops the watcher and releases resources.
// Safe to call multiple times.
// Blocks until the goroutine has exited.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	if w.cancel != nil {
		w.cancel()
	}
	doneCh := w.doneCh
	w.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

// lineSource is the subset of the line source API the watcher needs.
type lineSource interface {
	Start(ctx context.Context) error
	Lines() <-chan linesource.RawLine
	Stop() error
}

func (w *Watcher) newSource(fromStart bool, startOffset int64) lineSource {
	if w.cfg.notify {
		return tailer.New(w.logPath, tailer.Config{
			FromStart:   fromStart,
			StartOffset: startOffset,
			Logger:      w.log,
		})
	}
	return linesource.New(w.logPath, linesource.Config{
		PollInterval: w.cfg.pollInterval,
		FromStart:    fromStart,
		StartOffset:  startOffset,
		Logger:       w.log,
	})
}

func (w *Watcher) run(ctx context.Context, eventCh chan<- Event, errCh chan<- error) {
	defer close(w.doneCh)
	defer close(eventCh)
	defer close(errCh)

	mode := w.cfg.replay.Mode
	fromStart := mode == ReplayFromStart || mode == ReplaySinceTime

	// Tailing continues from the byte where the replay stopped reading.
	var startOffset int64
	if mode == ReplayLastN && w.cfg.replay.LastN > 0 {
		end, err := w.replayLastN(ctx, eventCh)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			sendError(errCh, fmt.Errorf("replaying last lines: %w", err))
		}
		startOffset = end
	}

	src := w.newSource(fromStart, startOffset)
	if err := src.Start(ctx); err != nil {
		sendError(errCh, fmt.Errorf("starting line source: %w", err))
		return
	}
	defer func() { _ = src.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-src.Lines():
			if !ok {
				return
			}
			w.processLine(ctx, line.Text, eventCh)
		}
	}
}

func (w *Watcher) processLine(ctx context.Context, line string, eventCh chan<- Event) {
	ev, ok := w.parser.Parse(line)
	if !ok {
		return
	}
	if w.cfg.replay.Mode == ReplaySinceTime && ev.Timestamp.Before(w.cfg.replay.Since) {
		return
	}
	if !w.cfg.compiled.Allows(ev) {
		return
	}
	if w.cfg.includeRawLine {
		ev.RawLine = line
	}

	select {
	case eventCh <- ev:
	case <-ctx.Done():
	}
}

func (w *Watcher) replayLastN(ctx context.Context, eventCh chan<- Event) (int64, error) {
	lines, end, err := readLastNLines(w.logPath, w.cfg.replay.LastN)
	if err != nil {
		return 0, err
	}
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return end, err
		}
		w.processLine(ctx, line, eventCh)
	}
	return end, nil
}

// readLastNLines returns up to n non-empty complete lines from the end of
// path, oldest first, and the offset just past the last line terminator.
// An unterminated final line is left for the tailer.
func readLastNLines(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, err
	}

	const chunkSize = 4096
	offset := info.Size()
	var tail []byte

	// Read backwards until the buffer holds more than n line breaks or the
	// whole file.
	for offset > 0 && bytes.Count(tail, []byte{'\n'}) <= n {
		size := min(int64(chunkSize), offset)
		offset -= size
		chunk := make([]byte, size)
		if _, err := file.ReadAt(chunk, offset); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, err
		}
		tail = append(chunk, tail...)
	}

	last := bytes.LastIndexByte(tail, '\n')
	end := offset + int64(last+1)
	segments := bytes.Split(tail[:last+1], []byte{'\n'})
	// The first segment may be partial when the file was not read entirely.
	if offset > 0 {
		segments = segments[1:]
	}
	var lines []string
	for _, raw := range segments {
		line := string(bytes.TrimSuffix(raw, []byte{'\r'}))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, end, nil
}

// sendError sends an error non-blocking.
func sendError(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// Watch is a convenience function that creates a watcher and starts watching.
// Returns error immediately for initialization failures.
func Watch(ctx context.Context, opts ...WatchOption) (<-chan Event, <-chan error, error) {
	w, err := NewWatcher(opts...)
	if err != nil {
		return nil, nil, err
	}
	events, errs, err := w.Watch(ctx)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	return events, errs, nil
}
