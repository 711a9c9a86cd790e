// Package tailer provides a notify-based line source for Game.log built on
// nxadm/tail. It emits the same RawLine values as the polling source.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nxadm/tail"
	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/linesource"
)

// Tailer wraps nxadm/tail for Game.log tailing.
type Tailer struct {
	path   string
	cfg    Config
	log    *zap.Logger
	t      *tail.Tail
	cancel context.CancelFunc
	lines  chan linesource.RawLine
	doneCh chan struct{}

	mu         sync.Mutex
	started    bool
	stopped    bool
	offset     int64
	lastTell   int64
	generation uint64
}

// Config holds configuration for tailing.
type Config struct {
	// Poll uses polling instead of inotify (more compatible but less efficient).
	Poll bool

	// FromStart reads from the beginning of the file instead of the end.
	FromStart bool

	// StartOffset, when positive and within the file, is where reading
	// starts. It takes precedence over FromStart.
	StartOffset int64

	// BufferSize is the capacity of the Lines channel.
	BufferSize int

	Logger *zap.Logger
}

// DefaultConfig returns the default configuration for Game.log.
func DefaultConfig() Config {
	return Config{
		Poll:       false, // Use inotify/ReadDirectoryChangesW when available
		FromStart:  false, // Start from end (tail -f behavior)
		BufferSize: linesource.DefaultBufferSize,
	}
}

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("tailer: stopped")

// New creates a Tailer for path. The file does not need to exist yet.
func New(path string, cfg Config) *Tailer {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = linesource.DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tailer{
		path:   path,
		cfg:    cfg,
		log:    cfg.Logger.With(zap.String("path", path), zap.String("backend", "notify")),
		lines:  make(chan linesource.RawLine, cfg.BufferSize),
		doneCh: make(chan struct{}),
	}
}

// Start opens the tail and begins emitting lines.
func (t *Tailer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrStopped
	}
	if t.started {
		return nil
	}

	// A file that does not exist yet is read from its first byte once created.
	location := &tail.SeekInfo{Offset: 0, Whence: 0} // Start of file
	info, statErr := os.Stat(t.path)
	switch {
	case statErr == nil && t.cfg.StartOffset > 0 && info.Size() >= t.cfg.StartOffset:
		location = &tail.SeekInfo{Offset: t.cfg.StartOffset, Whence: 0}
		t.offset = t.cfg.StartOffset
		t.lastTell = t.cfg.StartOffset
	case statErr == nil && t.cfg.StartOffset > 0:
		// Shrank below StartOffset: read the new content from the start.
	case !t.cfg.FromStart:
		if statErr == nil {
			location = &tail.SeekInfo{Offset: 0, Whence: 2} // End of file
			t.offset = info.Size()
			t.lastTell = info.Size()
		}
	}

	tl, err := tail.TailFile(t.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		Poll:      t.cfg.Poll,
		MustExist: false,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("opening tail: %w", err)
	}

	t.t = tl
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	go t.run(ctx)
	return nil
}

// Lines returns a channel that receives log lines.
func (t *Tailer) Lines() <-chan linesource.RawLine {
	return t.lines
}

// State reports Streaming while the file exists and Searching otherwise.
// nxadm/tail reopens internally, so there is no observable recovering phase.
func (t *Tailer) State() linesource.State {
	if _, err := os.Stat(t.path); err != nil {
		return linesource.Searching
	}
	return linesource.Streaming
}

// Position returns the current read position.
func (t *Tailer) Position() linesource.LogPosition {
	t.mu.Lock()
	pos := linesource.LogPosition{Path: t.path, Offset: t.offset}
	t.mu.Unlock()
	if info, err := os.Stat(t.path); err == nil {
		pos.Size = info.Size()
		pos.ModTime = info.ModTime()
	}
	return pos
}

// Stop stops tailing and closes the Lines channel.
// Safe to call multiple times.
func (t *Tailer) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	started := t.started
	t.mu.Unlock()

	if !started {
		close(t.lines)
		close(t.doneCh)
		return nil
	}

	t.cancel()
	<-t.doneCh // Wait for run() to finish
	err := t.t.Stop()
	t.t.Cleanup()
	return err
}

func (t *Tailer) run(ctx context.Context) {
	defer close(t.doneCh)
	defer close(t.lines)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				t.log.Warn("tail error", zap.Error(line.Err))
				continue
			}
			raw := t.track(line.Text)
			select {
			case t.lines <- raw:
			case <-ctx.Done():
				return
			}
		}
	}
}

// track assigns an offset and generation to a line. nxadm/tail does not
// report line offsets, so they are counted locally and resynchronized from
// Tell; a Tell that moves backwards means the file was reopened.
func (t *Tailer) track(text string) linesource.RawLine {
	t.mu.Lock()
	defer t.mu.Unlock()

	length := int64(len(text)) + 1
	if tell, err := t.t.Tell(); err == nil {
		if tell < t.lastTell {
			t.generation++
			t.offset = max(tell-length, 0)
			t.log.Info("log reopened", zap.Uint64("generation", t.generation))
		}
		t.lastTell = tell
	}

	raw := linesource.RawLine{
		Text:       strings.TrimSuffix(text, "\r"),
		Offset:     t.offset,
		Generation: t.generation,
	}
	t.offset += length
	raw.Position = linesource.LogPosition{Path: t.path, Offset: t.offset}
	return raw
}
