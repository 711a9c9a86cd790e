package linesource

import (
	"time"

	"go.uber.org/zap"
)

// State is the attachment state of a line source.
type State int32

const (
	// Searching means the file is absent or unreadable; opens are retried with backoff.
	Searching State = iota
	// Streaming means the file is open and polled for growth.
	Streaming
	// Recovering means a rotation or truncation was detected and the file is being reopened.
	Recovering
)

func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case Streaming:
		return "streaming"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// LogPosition is the read position within the watched file.
// Offset never exceeds Size while streaming and only goes back to 0 when a
// new generation of the file is attached.
type LogPosition struct {
	Path    string    `json:"path"`
	Offset  int64     `json:"offset"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// RawLine is one complete physical line read from the file, without its
// line terminator.
type RawLine struct {
	Text string
	// Offset is the byte offset of the first byte of the line.
	Offset int64
	// Generation counts file rotations; offsets restart with each generation.
	Generation uint64
	// Position is the read position right after the line was consumed.
	Position LogPosition
}

const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultMinBackoff   = 250 * time.Millisecond
	DefaultMaxBackoff   = 5 * time.Second
	DefaultMaxLineBytes = 1 << 20
	DefaultBufferSize   = 64
	readChunkSize       = 64 * 1024
)

// Config holds configuration for a Source.
type Config struct {
	// PollInterval is the delay between growth checks while streaming.
	PollInterval time.Duration

	// MinBackoff and MaxBackoff bound the retry delay while searching.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// FromStart reads an existing file from offset 0 on the first attach
	// instead of seeking to its end.
	FromStart bool

	// StartOffset, when positive, is where the first attach starts reading.
	// A file shorter than StartOffset is read from offset 0.
	StartOffset int64

	// MaxLineBytes caps a single line; longer lines are discarded.
	MaxLineBytes int

	// BufferSize is the capacity of the Lines channel.
	BufferSize int

	// OnStateChange, if set, is called from the polling goroutine after
	// every state transition.
	OnStateChange func(from, to State)

	Logger *zap.Logger
}

// DefaultConfig returns the default configuration for Game.log.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		MinBackoff:   DefaultMinBackoff,
		MaxBackoff:   DefaultMaxBackoff,
		MaxLineBytes: DefaultMaxLineBytes,
		BufferSize:   DefaultBufferSize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = d.MinBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = max(d.MaxBackoff, c.MinBackoff)
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = d.MaxLineBytes
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
