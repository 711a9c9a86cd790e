package killfeed

import (
	"time"

	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/parser"
)

// WatchOption configures Watch behavior using the functional options pattern.
type WatchOption func(*watchConfig)

// watchConfig holds internal configuration for the watcher.
type watchConfig struct {
	logPath        string
	pollInterval   time.Duration
	notify         bool
	includeRawLine bool
	replay         ReplayConfig
	maxReplayLines int
	logger         *zap.Logger
	parserConfig
	filterConfig
}

// defaultWatchConfig returns a watchConfig with sensible defaults.
func defaultWatchConfig() *watchConfig {
	return &watchConfig{
		maxReplayLines: DefaultMaxReplayLastN,
	}
}

// applyWatchOptions applies functional options to a watchConfig.
func applyWatchOptions(opts []WatchOption) *watchConfig {
	cfg := defaultWatchConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogPath sets the Game.log file, or a directory containing it.
// If not set, the path is taken from KILLFEED_SETTINGS_GAME_LOG_PATH or
// auto-detected from default locations.
func WithLogPath(path string) WatchOption {
	return func(c *watchConfig) {
		c.logPath = path
	}
}

// WithPollInterval sets how often the file is checked for growth.
// Default: 250ms.
func WithPollInterval(interval time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.pollInterval = interval
	}
}

// WithNotify follows the file with filesystem notifications instead of polling.
func WithNotify(notify bool) WatchOption {
	return func(c *watchConfig) {
		c.notify = notify
	}
}

// WithIncludeRawLine includes the original log line in Event.RawLine.
// Default: false.
func WithIncludeRawLine(include bool) WatchOption {
	return func(c *watchConfig) {
		c.includeRawLine = include
	}
}

// WithReplay configures replay behavior for existing log lines.
// Default: ReplayNone (only new lines).
func WithReplay(config ReplayConfig) WatchOption {
	return func(c *watchConfig) {
		c.replay = config
	}
}

// WithReplayFromStart reads from the beginning of the log file.
func WithReplayFromStart() WatchOption {
	return func(c *watchConfig) {
		c.replay = ReplayConfig{Mode: ReplayFromStart}
	}
}

// WithReplayLastN reads the last N lines before tailing.
func WithReplayLastN(n int) WatchOption {
	return func(c *watchConfig) {
		c.replay = ReplayConfig{Mode: ReplayLastN, LastN: n}
	}
}

// WithReplaySinceTime reads lines since a specific timestamp.
func WithReplaySinceTime(since time.Time) WatchOption {
	return func(c *watchConfig) {
		c.replay = ReplayConfig{Mode: ReplaySinceTime, Since: since}
	}
}

// WithMaxReplayLines sets the maximum lines for ReplayLastN mode.
// 0 uses default (10000). Set to -1 for unlimited (not recommended).
func WithMaxReplayLines(max int) WatchOption {
	return func(c *watchConfig) {
		c.maxReplayLines = max
	}
}

// WithLogger sets the zap logger for debug output.
// If nil (default), logging is disabled.
func WithLogger(logger *zap.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = logger
	}
}

// WithLocalPlayer sets the name used as victim of "Local player was killed" lines.
func WithLocalPlayer(name string) WatchOption {
	return func(c *watchConfig) {
		c.localPlayer = name
	}
}

// WithShipLabels adds or overrides vehicle class labels, keyed by class name.
func WithShipLabels(labels map[string]string) WatchOption {
	return func(c *watchConfig) {
		c.shipLabels = labels
	}
}

// WithShipsFile loads vehicle label overrides from a YAML file.
func WithShipsFile(path string) WatchOption {
	return func(c *watchConfig) {
		c.shipsFile = path
	}
}

// WithIncludeTypes filters events to only include the specified types.
// If called multiple times, only the last call takes effect.
func WithIncludeTypes(types ...EventType) WatchOption {
	return func(c *watchConfig) {
		c.filter().setInclude(types)
	}
}

// WithExcludeTypes filters out events of the specified types.
// Exclude takes precedence over include.
// If called multiple times, only the last call takes effect.
func WithExcludeTypes(types ...EventType) WatchOption {
	return func(c *watchConfig) {
		c.filter().setExclude(types)
	}
}

// WithFilter sets both include and exclude type filters.
// Exclude takes precedence over include.
func WithFilter(include, exclude []EventType) WatchOption {
	return func(c *watchConfig) {
		f := c.filter()
		f.setInclude(include)
		f.setExclude(exclude)
	}
}

// WithPlayer keeps only events where name is the killer or the victim.
func WithPlayer(name string) WatchOption {
	return func(c *watchConfig) {
		c.filter().involve = name
	}
}

// WithWhere keeps only events for which the expression evaluates to true.
// See CompileWhere for the available fields. A compile error is returned
// by NewWatcher.
func WithWhere(src string) WatchOption {
	return func(c *watchConfig) {
		c.setWhere(src)
	}
}

// ParseOption configures ParseLine, ParseFile and ParseDir behavior.
type ParseOption func(*parseConfig)

// parseConfig holds internal configuration for parsing.
type parseConfig struct {
	includeRawLine bool
	since          time.Time
	until          time.Time
	stopOnError    bool
	parserConfig
	filterConfig
}

// defaultParseConfig returns a parseConfig with sensible defaults.
func defaultParseConfig() *parseConfig {
	return &parseConfig{}
}

// applyParseOptions applies functional options to a parseConfig.
func applyParseOptions(opts []ParseOption) *parseConfig {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithParseIncludeTypes filters events to only include the specified types.
func WithParseIncludeTypes(types ...EventType) ParseOption {
	return func(c *parseConfig) {
		c.filter().setInclude(types)
	}
}

// WithParseExcludeTypes filters out events of the specified types.
func WithParseExcludeTypes(types ...EventType) ParseOption {
	return func(c *parseConfig) {
		c.filter().setExclude(types)
	}
}

// WithParseFilter sets both include and exclude type filters for parsing.
func WithParseFilter(include, exclude []EventType) ParseOption {
	return func(c *parseConfig) {
		f := c.filter()
		f.setInclude(include)
		f.setExclude(exclude)
	}
}

// WithParsePlayer keeps only events where name is the killer or the victim.
func WithParsePlayer(name string) ParseOption {
	return func(c *parseConfig) {
		c.filter().involve = name
	}
}

// WithParseWhere keeps only events for which the expression evaluates to true.
func WithParseWhere(src string) ParseOption {
	return func(c *parseConfig) {
		c.setWhere(src)
	}
}

// WithParseIncludeRawLine includes the original log line in Event.RawLine.
func WithParseIncludeRawLine(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeRawLine = include
	}
}

// WithParseTimeRange filters events to only include those within the time range.
// since is inclusive, until is exclusive.
// Zero values are ignored (no filtering for that boundary).
func WithParseTimeRange(since, until time.Time) ParseOption {
	return func(c *parseConfig) {
		c.since = since
		c.until = until
	}
}

// WithParseSince filters events to only include those at or after the given time.
func WithParseSince(since time.Time) ParseOption {
	return func(c *parseConfig) {
		c.since = since
	}
}

// WithParseUntil filters events to only include those before the given time.
func WithParseUntil(until time.Time) ParseOption {
	return func(c *parseConfig) {
		c.until = until
	}
}

// WithParseStopOnError stops at the first unreadable file or line instead of
// skipping it. Default: false.
func WithParseStopOnError(stop bool) ParseOption {
	return func(c *parseConfig) {
		c.stopOnError = stop
	}
}

// WithParseLocalPlayer sets the name used as victim of "Local player was killed" lines.
func WithParseLocalPlayer(name string) ParseOption {
	return func(c *parseConfig) {
		c.localPlayer = name
	}
}

// WithParseShipLabels adds or overrides vehicle class labels.
func WithParseShipLabels(labels map[string]string) ParseOption {
	return func(c *parseConfig) {
		c.shipLabels = labels
	}
}

// filterConfig is shared by watch and parse configurations.
type filterConfig struct {
	compiled *compiledFilter
	err      error
}

func (c *filterConfig) filter() *compiledFilter {
	if c.compiled == nil {
		c.compiled = &compiledFilter{}
	}
	return c.compiled
}

func (c *filterConfig) setWhere(src string) {
	program, err := CompileWhere(src)
	if err != nil {
		c.err = err
		return
	}
	c.filter().where = program
}

// parserConfig selects the parser settings.
type parserConfig struct {
	localPlayer string
	shipLabels  map[string]string
	shipsFile   string
}

// newParser builds a parser with the configured local player and ship labels.
func (c parserConfig) newParser() (*parser.Parser, error) {
	var opts []parser.Option
	if c.localPlayer != "" {
		opts = append(opts, parser.WithLocalPlayer(c.localPlayer))
	}
	switch {
	case c.shipsFile != "":
		ships, err := parser.LoadShipTable(c.shipsFile)
		if err != nil {
			return nil, err
		}
		if len(c.shipLabels) > 0 {
			ships = ships.With(c.shipLabels)
		}
		opts = append(opts, parser.WithShips(ships))
	case len(c.shipLabels) > 0:
		opts = append(opts, parser.WithShips(parser.NewShipTable(c.shipLabels)))
	}
	return parser.New(opts...), nil
}
