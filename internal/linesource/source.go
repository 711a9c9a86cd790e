// Package linesource follows a growing log file that the game may rotate or
// truncate at any time, emitting each complete line exactly once.
package linesource

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
)

// Source polls a single file path and emits its lines.
//
// All file state is owned by the polling goroutine; State and Position
// return snapshots and are safe to call from any goroutine.
type Source struct {
	path  string
	cfg   Config
	log   *zap.Logger
	lines chan RawLine

	// polling goroutine only
	file          *os.File
	info          os.FileInfo
	pos           LogPosition
	generation    uint64
	attached      bool
	readFromStart bool
	backoff       time.Duration
	partial       []byte
	lineStart     int64
	discarding    bool

	// lost is the file parked while the path is unavailable. It stays open
	// so its identity cannot be reused before the path comes back.
	lost     *os.File
	lostInfo os.FileInfo

	mu       sync.Mutex
	state    State
	snapshot LogPosition
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// New creates a Source for path. Call Start to begin polling.
func New(path string, cfg Config) *Source {
	cfg = cfg.withDefaults()
	return &Source{
		path:          path,
		cfg:           cfg,
		log:           cfg.Logger.With(zap.String("path", path)),
		lines:         make(chan RawLine, cfg.BufferSize),
		readFromStart: cfg.FromStart,
		backoff:       cfg.MinBackoff,
		state:         Searching,
		pos:           LogPosition{Path: path},
		snapshot:      LogPosition{Path: path},
		doneCh:        make(chan struct{}),
	}
}

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("linesource: stopped")

// Start launches the polling goroutine. It returns immediately; a missing
// file is not an error. Calling Start more than once has no effect.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

// Lines returns the channel of complete lines. It is closed after the
// polling goroutine exits.
func (s *Source) Lines() <-chan RawLine {
	return s.lines
}

// State returns the current attachment state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the last published read position.
func (s *Source) Position() LogPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Stop stops polling and waits for the goroutine to exit.
// Safe to call multiple times, and before Start.
func (s *Source) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	if !started {
		close(s.lines)
		close(s.doneCh)
		return nil
	}
	s.cancel()
	<-s.doneCh
	return nil
}

func (s *Source) run(ctx context.Context) {
	defer close(s.doneCh)
	defer close(s.lines)
	defer s.closeFile()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		timer.Reset(s.step(ctx))
	}
}

// step performs one attach-or-poll cycle and returns the delay before the
// next one.
func (s *Source) step(ctx context.Context) time.Duration {
	if s.file == nil {
		if err := s.attach(ctx); err != nil {
			if s.State() != Searching {
				s.setState(Searching)
			}
			s.log.Debug("log file not available", zap.Error(err), zap.Duration("retry_in", s.backoff))
			return s.nextBackoff()
		}
		s.backoff = s.cfg.MinBackoff
		s.setState(Streaming)
	}

	if err := s.poll(ctx); err != nil {
		if ctx.Err() != nil {
			return 0
		}
		s.log.Warn("log file lost", zap.Error(err))
		s.suspend()
		s.setState(Searching)
		return s.nextBackoff()
	}
	return s.cfg.PollInterval
}

func (s *Source) nextBackoff() time.Duration {
	d := s.backoff
	s.backoff = min(s.backoff*2, s.cfg.MaxBackoff)
	return d
}

// attach opens the path and positions the read offset. If the path names
// the file parked by suspend and it has not shrunk, reading resumes where it
// stopped. Otherwise any attach after the first starts a new generation at
// offset 0.
func (s *Source) attach(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		s.readFromStart = true
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		s.readFromStart = true
		return err
	}
	if info.IsDir() {
		f.Close()
		s.readFromStart = true
		return fmt.Errorf("%s is a directory", s.path)
	}

	if s.lost != nil {
		if os.SameFile(s.lostInfo, info) && info.Size() >= s.pos.Offset {
			s.releaseLost()
			s.file = f
			s.info = info
			s.pos.Size = info.Size()
			s.pos.ModTime = info.ModTime()
			s.publish()
			s.log.Info("reattached to log file",
				zap.Int64("offset", s.pos.Offset),
				zap.Int64("size", info.Size()),
				zap.Uint64("generation", s.generation),
			)
			return nil
		}
		s.file, s.info = s.lost, s.lostInfo
		s.lost, s.lostInfo = nil, nil
		s.readRemaining(ctx)
		s.detach()
	}

	first := !s.attached
	if s.attached {
		s.generation++
	}
	s.attached = true

	var offset int64
	switch {
	case first && s.cfg.StartOffset > 0:
		if info.Size() >= s.cfg.StartOffset {
			offset = s.cfg.StartOffset
		}
	case !s.readFromStart:
		offset = info.Size()
	}
	s.readFromStart = true

	s.file = f
	s.info = info
	s.resetPartial()
	s.lineStart = offset
	s.pos = LogPosition{Path: s.path, Offset: offset, Size: info.Size(), ModTime: info.ModTime()}
	s.publish()

	s.log.Info("attached to log file",
		zap.Int64("offset", offset),
		zap.Int64("size", info.Size()),
		zap.Uint64("generation", s.generation),
	)
	return nil
}

func (s *Source) detach() {
	if len(s.partial) > 0 {
		s.log.Debug("dropping incomplete line", zap.Int("bytes", len(s.partial)))
	}
	s.closeFile()
	s.resetPartial()
	s.readFromStart = true
}

// suspend parks the current file when the path becomes unavailable,
// keeping the offset and any partial line.
func (s *Source) suspend() {
	s.readFromStart = true
	if s.file == nil {
		return
	}
	s.releaseLost()
	s.lost, s.lostInfo = s.file, s.info
	s.file, s.info = nil, nil
}

func (s *Source) releaseLost() {
	if s.lost != nil {
		s.lost.Close()
		s.lost = nil
		s.lostInfo = nil
	}
}

func (s *Source) closeFile() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
		s.info = nil
	}
	s.releaseLost()
}

// readRemaining consumes what was appended to the open handle since the last
// poll. Lines written just before a rename or removal are read from the old
// file before it is let go.
func (s *Source) readRemaining(ctx context.Context) {
	info, err := s.file.Stat()
	if err == nil {
		err = s.readTo(ctx, info.Size())
	}
	if err != nil && ctx.Err() == nil {
		s.log.Warn("reading rotated log file", zap.Error(err))
	}
}

// poll checks for rotation and reads everything appended since the last poll.
func (s *Source) poll(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		s.readRemaining(ctx)
		return err
	}

	replaced := !os.SameFile(info, s.info)
	if replaced || info.Size() < s.pos.Offset {
		s.log.Info("log rotation detected",
			zap.Int64("offset", s.pos.Offset),
			zap.Int64("size", info.Size()),
			zap.Bool("replaced", replaced),
		)
		s.setState(Recovering)
		if replaced {
			s.readRemaining(ctx)
		}
		s.detach()
		if err := s.attach(ctx); err != nil {
			return fmt.Errorf("reopening after rotation: %w", err)
		}
		s.setState(Streaming)
		info = s.info
	}

	s.pos.Size = info.Size()
	s.pos.ModTime = info.ModTime()
	defer s.publish()

	return s.readTo(ctx, info.Size())
}

// readTo reads the open file from the current offset up to end.
func (s *Source) readTo(ctx context.Context, end int64) error {
	if end <= s.pos.Offset {
		return nil
	}
	buf := make([]byte, min(end-s.pos.Offset, readChunkSize))
	for s.pos.Offset < end {
		want := min(end-s.pos.Offset, int64(len(buf)))
		n, err := s.file.ReadAt(buf[:want], s.pos.Offset)
		if n > 0 {
			if err := s.consume(ctx, buf[:n]); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Shrunk between stat and read; the next poll sees the truncation.
				return nil
			}
			return fmt.Errorf("reading log: %w", err)
		}
	}
	return nil
}

// consume splits data into lines, buffering a trailing partial line.
// s.pos.Offset advances by exactly len(data) unless ctx is cancelled.
func (s *Source) consume(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			s.appendPartial(data)
			s.pos.Offset += int64(len(data))
			return nil
		}

		seg := data[:i]
		start := s.lineStart
		s.pos.Offset += int64(i + 1)
		s.lineStart = s.pos.Offset
		data = data[i+1:]

		if s.discarding || len(s.partial)+len(seg) > s.cfg.MaxLineBytes {
			if !s.discarding {
				s.log.Warn("discarding oversized line",
					zap.Int64("offset", start),
					zap.Int("max_bytes", s.cfg.MaxLineBytes),
				)
			}
			s.resetPartial()
			continue
		}

		var text []byte
		if len(s.partial) > 0 {
			text = append(s.partial, seg...)
		} else {
			text = seg
		}
		text = bytes.TrimSuffix(text, []byte{'\r'})
		line := RawLine{
			Text:       string(text),
			Offset:     start,
			Generation: s.generation,
			Position:   s.pos,
		}
		s.resetPartial()

		select {
		case s.lines <- line:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Source) appendPartial(data []byte) {
	if s.discarding {
		return
	}
	if len(s.partial)+len(data) > s.cfg.MaxLineBytes {
		s.log.Warn("discarding oversized line",
			zap.Int64("offset", s.lineStart),
			zap.Int("max_bytes", s.cfg.MaxLineBytes),
		)
		s.partial = nil
		s.discarding = true
		return
	}
	s.partial = append(s.partial, data...)
}

func (s *Source) resetPartial() {
	s.partial = nil
	s.discarding = false
}

func (s *Source) publish() {
	s.mu.Lock()
	s.snapshot = s.pos
	s.mu.Unlock()
}

func (s *Source) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from == to {
		return
	}
	s.log.Debug("line source state", zap.Stringer("from", from), zap.Stringer("to", to))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}
