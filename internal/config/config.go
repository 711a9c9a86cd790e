// Package config loads the killfeed configuration file and environment
// overrides into a validated, read-only snapshot.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/killfeedsc/killfeed-go/internal/logfinder"
)

// DefaultFile is the config file looked up in the working directory when no
// path is given.
const DefaultFile = "config.yml"

// EnvPrefix prefixes every environment override, e.g. KILLFEED_INTERFACE_WEBSOCKET_PORT.
const EnvPrefix = "KILLFEED"

// Config keys. Sections and keys are case-insensitive in the file.
const (
	KeyGameLogPath    = "settings.game_log_path"
	KeyWatchMode      = "settings.watch_mode"
	KeyPollInterval   = "settings.poll_interval"
	KeyQueueSize      = "settings.queue_size"
	KeyDedupWindow    = "settings.dedup_window"
	KeyShipsFile      = "settings.ships_file"
	KeyPort           = "interface.websocket_port"
	KeyHost           = "interface.host"
	KeyAllowedOrigins = "interface.allowed_origins"
	KeyPlayerName     = "player.name"
	KeyDebug          = "debug.enabled"
	KeyLogFile        = "logging.file"
	KeyLogMaxSizeMB   = "logging.max_size_mb"
	KeyLogMaxBackups  = "logging.max_backups"
)

// Watch modes.
const (
	WatchPoll   = "poll"
	WatchNotify = "notify"
)

// Defaults and limits.
const (
	DefaultPort          = 8765
	MinPort              = 1024
	MaxPort              = 65535
	DefaultHost          = "127.0.0.1"
	DefaultPollInterval  = 250 * time.Millisecond
	MinPollInterval      = 50 * time.Millisecond
	MaxPollInterval      = 10 * time.Second
	DefaultQueueSize     = 256
	MaxQueueSize         = 65536
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
)

// DefaultAllowedOrigins are the WebSocket origin patterns accepted by default.
var DefaultAllowedOrigins = []string{"127.0.0.1:*", "localhost:*"}

var allowedHosts = map[string]struct{}{
	"127.0.0.1": {},
	"localhost": {},
	"0.0.0.0":   {},
}

// Config is the validated configuration snapshot.
type Config struct {
	GameLogPath    string
	WatchMode      string
	PollInterval   time.Duration
	QueueSize      int
	DedupWindow    time.Duration
	ShipsFile      string
	Host           string
	Port           int
	AllowedOrigins []string
	PlayerName     string
	Debug          bool
	LogFile        string
	LogMaxSizeMB   int
	LogMaxBackups  int

	// Source is the config file that was read, empty if none.
	Source string
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		GameLogPath:    logfinder.DefaultLogPath(),
		WatchMode:      WatchPoll,
		PollInterval:   DefaultPollInterval,
		QueueSize:      DefaultQueueSize,
		Host:           DefaultHost,
		Port:           DefaultPort,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		LogMaxSizeMB:   DefaultLogMaxSizeMB,
		LogMaxBackups:  DefaultLogMaxBackups,
	}
}

// Loader reads configuration from a file, the environment and bound flags,
// in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with environment overrides enabled.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault(KeyGameLogPath, "")
	v.SetDefault(KeyWatchMode, d.WatchMode)
	v.SetDefault(KeyPollInterval, d.PollInterval.String())
	v.SetDefault(KeyQueueSize, d.QueueSize)
	v.SetDefault(KeyDedupWindow, "0s")
	v.SetDefault(KeyShipsFile, "")
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyAllowedOrigins, strings.Join(d.AllowedOrigins, ","))
	v.SetDefault(KeyPlayerName, "")
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, d.LogMaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, d.LogMaxBackups)

	return &Loader{v: v}
}

// BindFlag makes a command-line flag override key when the flag is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("binding %s: flag not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path (or DefaultFile when path is empty) and validates every
// value. Invalid values fall back to their defaults and are reported as
// warnings. A missing explicit file, or a file that cannot be parsed, is an
// error.
func (l *Loader) Load(path string) (Config, []string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	l.v.SetConfigFile(path)

	var source string
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || explicit {
			return Config{}, nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		source = l.v.ConfigFileUsed()
	}

	cfg, warnings := l.validate()
	cfg.Source = source
	return cfg, warnings, nil
}

// Load is a convenience wrapper around NewLoader().Load.
func Load(path string) (Config, []string, error) {
	return NewLoader().Load(path)
}

func (l *Loader) validate() (Config, []string) {
	d := Default()
	cfg := d
	var warnings []string
	warn := func(key, value, reason string, fallback any) {
		warnings = append(warnings, fmt.Sprintf("%s: invalid value %q (%s), using %v", strings.ToUpper(key), value, reason, fallback))
	}
	get := func(key string) string {
		return strings.TrimSpace(l.v.GetString(key))
	}

	if p, err := logfinder.FindLogPath(""); err == nil {
		cfg.GameLogPath = p
	}
	if raw := get(KeyGameLogPath); raw != "" {
		if p, err := logfinder.ResolveLogPath(raw); err != nil {
			warn(KeyGameLogPath, raw, err.Error(), cfg.GameLogPath)
		} else {
			cfg.GameLogPath = p
		}
	}

	if raw := strings.ToLower(get(KeyWatchMode)); raw == WatchPoll || raw == WatchNotify {
		cfg.WatchMode = raw
	} else {
		warn(KeyWatchMode, raw, "want poll or notify", d.WatchMode)
	}

	if raw := get(KeyPollInterval); raw != "" {
		if dur, err := parseDuration(raw); err != nil {
			warn(KeyPollInterval, raw, err.Error(), d.PollInterval)
		} else if dur < MinPollInterval || dur > MaxPollInterval {
			warn(KeyPollInterval, raw, fmt.Sprintf("out of range %v-%v", MinPollInterval, MaxPollInterval), d.PollInterval)
		} else {
			cfg.PollInterval = dur
		}
	}

	cfg.QueueSize = l.intInRange(KeyQueueSize, 1, MaxQueueSize, d.QueueSize, warn)

	if raw := get(KeyDedupWindow); raw != "" {
		if dur, err := parseDuration(raw); err != nil || dur < 0 {
			warn(KeyDedupWindow, raw, "want a non-negative duration", d.DedupWindow)
		} else {
			cfg.DedupWindow = dur
		}
	}

	if raw := get(KeyShipsFile); raw != "" {
		if info, err := os.Stat(raw); err != nil || info.IsDir() {
			warn(KeyShipsFile, raw, "file not found", "built-in ship names")
		} else {
			cfg.ShipsFile = raw
		}
	}

	cfg.Port = l.intInRange(KeyPort, MinPort, MaxPort, d.Port, warn)

	if raw := strings.ToLower(get(KeyHost)); raw != "" {
		if _, ok := allowedHosts[raw]; ok {
			cfg.Host = raw
		} else {
			warn(KeyHost, raw, "want 127.0.0.1, localhost or 0.0.0.0", d.Host)
		}
	}

	if origins := splitList(l.v.GetStringSlice(KeyAllowedOrigins)); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	cfg.PlayerName = get(KeyPlayerName)

	if raw := get(KeyDebug); raw != "" {
		if b, err := parseBool(raw); err != nil {
			warn(KeyDebug, raw, "want true or false", d.Debug)
		} else {
			cfg.Debug = b
		}
	}

	cfg.LogFile = get(KeyLogFile)
	cfg.LogMaxSizeMB = l.intInRange(KeyLogMaxSizeMB, 1, 10240, d.LogMaxSizeMB, warn)
	cfg.LogMaxBackups = l.intInRange(KeyLogMaxBackups, 0, 1000, d.LogMaxBackups, warn)

	return cfg, warnings
}

func (l *Loader) intInRange(key string, lo, hi, fallback int, warn func(key, value, reason string, fallback any)) int {
	raw := strings.TrimSpace(l.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		warn(key, raw, "not an integer", fallback)
		return fallback
	}
	if n < lo || n > hi {
		warn(key, raw, fmt.Sprintf("out of range %d-%d", lo, hi), fallback)
		return fallback
	}
	return n
}

// parseDuration accepts Go duration strings and bare integers as milliseconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// parseBool accepts the usual INI spellings in addition to strconv.ParseBool.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// splitList flattens comma-separated entries and drops empties.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
