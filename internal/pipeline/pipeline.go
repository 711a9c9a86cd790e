// Package pipeline wires the line source, parser, handoff queue, broadcast
// hub and HTTP server into a single runnable unit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/killfeedsc/killfeed-go/internal/config"
	"github.com/killfeedsc/killfeed-go/internal/hub"
	"github.com/killfeedsc/killfeed-go/internal/linesource"
	"github.com/killfeedsc/killfeed-go/internal/logging"
	"github.com/killfeedsc/killfeed-go/internal/metrics"
	"github.com/killfeedsc/killfeed-go/internal/parser"
	"github.com/killfeedsc/killfeed-go/internal/server"
	"github.com/killfeedsc/killfeed-go/internal/tailer"
	"github.com/killfeedsc/killfeed-go/pkg/killfeed/event"
)

// DefaultShutdownTimeout bounds the HTTP server wind-down.
const DefaultShutdownTimeout = 5 * time.Second

// Source produces raw log lines. Both *linesource.Source and
// *tailer.Tailer implement it.
type Source interface {
	Start(ctx context.Context) error
	Lines() <-chan linesource.RawLine
	State() linesource.State
	Position() linesource.LogPosition
	Stop() error
}

// Options holds dependencies that are not part of the configuration file.
type Options struct {
	Version string
	Logger  *zap.Logger

	// Registry receives the pipeline metrics and backs /metrics.
	// A new registry with Go and process collectors is created when nil.
	Registry *prometheus.Registry

	// Source replaces the line source selected by the watch mode.
	Source Source
	// Parser replaces the parser built from the configuration.
	Parser *parser.Parser

	ShutdownTimeout time.Duration
}

// Status is the JSON document served on /status.
type Status struct {
	State              string                 `json:"state"`
	Position           linesource.LogPosition `json:"position"`
	Clients            int                    `json:"clients"`
	PlayerName         string                 `json:"player_name,omitempty"`
	Version            string                 `json:"version,omitempty"`
	Uptime             string                 `json:"uptime"`
	LinesRead          uint64                 `json:"lines_read"`
	EventsParsed       uint64                 `json:"events_parsed"`
	EventsDropped      uint64                 `json:"events_dropped"`
	EventsDeduplicated uint64                 `json:"events_deduplicated"`
	Queued             int                    `json:"queued"`
	Hub                hub.Status             `json:"hub"`
	ConnectedClients   []hub.ClientInfo       `json:"connected_clients"`
}

// Pipeline runs Game.log through the parser to connected viewers.
type Pipeline struct {
	cfg     config.Config
	opts    Options
	log     *zap.Logger
	reg     *prometheus.Registry
	metrics *metrics.Metrics

	source  Source
	parser  *parser.Parser
	queue   *Handoff
	dedup   *dedup
	drivers *drivers
	hub     *hub.Hub
	server  *server.Server

	ready   chan struct{}
	started time.Time

	linesRead    atomic.Uint64
	eventsParsed atomic.Uint64
	deduplicated atomic.Uint64
}

// New builds a Pipeline from a validated configuration.
func New(cfg config.Config, opts Options) (*Pipeline, error) {
	if cfg.GameLogPath == "" && opts.Source == nil {
		return nil, errors.New("pipeline: no game log path configured")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	log := logging.OrNop(opts.Logger)

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	p := &Pipeline{
		cfg:     cfg,
		opts:    opts,
		log:     log,
		reg:     reg,
		metrics: metrics.New(reg),
		queue:   NewHandoff(cfg.QueueSize),
		dedup:   newDedup(cfg.DedupWindow),
		ready:   make(chan struct{}),
	}

	p.parser = opts.Parser
	if p.parser == nil {
		ships, err := p.loadShips()
		if err != nil {
			return nil, err
		}
		p.parser = parser.New(
			parser.WithLocalPlayer(cfg.PlayerName),
			parser.WithShips(ships),
			parser.WithEntityIDs(true),
		)
	}
	p.drivers = newDrivers(DefaultDriverTTL, p.parser.ShipLabel)

	p.source = opts.Source
	if p.source == nil {
		p.source = p.newSource()
	}

	p.hub = hub.New(hub.Config{
		Version:     opts.Version,
		PlayerName:  cfg.PlayerName,
		SourceState: func() string { return p.source.State().String() },
		Logger:      log.Named("hub"),
		Metrics:     p.metrics,
	})

	p.server = server.New(server.Options{
		Addr:           cfg.Addr(),
		Hub:            p.hub,
		AllowedOrigins: cfg.AllowedOrigins,
		Status:         func() any { return p.Status() },
		Gatherer:       reg,
		Logger:         log.Named("http"),
	})
	return p, nil
}

func (p *Pipeline) loadShips() (*parser.ShipTable, error) {
	if p.cfg.ShipsFile == "" {
		return parser.NewShipTable(nil), nil
	}
	ships, err := parser.LoadShipTable(p.cfg.ShipsFile)
	if err != nil {
		return nil, fmt.Errorf("loading ship table: %w", err)
	}
	p.log.Info("ship table loaded", zap.String("file", p.cfg.ShipsFile), zap.Int("ships", ships.Len()))
	return ships, nil
}

func (p *Pipeline) newSource() Source {
	log := p.log.Named("source")
	if p.cfg.WatchMode == config.WatchNotify {
		return tailer.New(p.cfg.GameLogPath, tailer.Config{Logger: log})
	}
	return linesource.New(p.cfg.GameLogPath, linesource.Config{
		PollInterval:  p.cfg.PollInterval,
		OnStateChange: p.metrics.SourceStateChanged,
		Logger:        log,
	})
}

// Hub returns the broadcast hub.
func (p *Pipeline) Hub() *hub.Hub {
	return p.hub
}

// Addr returns the HTTP listen address, resolved once Run has bound it.
func (p *Pipeline) Addr() string {
	return p.server.Addr()
}

// Ready is closed once the listener is bound and every stage is running.
func (p *Pipeline) Ready() <-chan struct{} {
	return p.ready
}

// Run binds the listener, starts every stage and blocks until ctx is
// cancelled or a stage fails. A bind failure is returned before the
// source is started.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.server.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := p.source.Start(gctx); err != nil {
		_ = p.server.Shutdown(context.Background())
		return fmt.Errorf("starting line source: %w", err)
	}
	p.started = time.Now()

	g.Go(func() error { return p.ingest(gctx) })
	g.Go(func() error { return p.broadcast(gctx) })
	g.Go(p.server.Serve)
	g.Go(func() error {
		<-gctx.Done()
		return p.shutdown()
	})

	p.log.Info("killfeed running",
		zap.String("log", p.cfg.GameLogPath),
		zap.String("watch_mode", p.cfg.WatchMode),
		zap.String("addr", p.Addr()),
		zap.String("player", p.cfg.PlayerName))
	close(p.ready)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (p *Pipeline) shutdown() error {
	p.log.Info("shutting down")
	if err := p.source.Stop(); err != nil {
		p.log.Warn("stopping line source", zap.Error(err))
	}
	_ = p.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.ShutdownTimeout)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ingest reads lines, parses them and queues the resulting events.
func (p *Pipeline) ingest(ctx context.Context) error {
	lines := p.source.Lines()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			p.handleLine(line)
		}
	}
}

func (p *Pipeline) handleLine(line linesource.RawLine) {
	p.linesRead.Add(1)
	p.metrics.LineRead(line.Position)

	if b, ok := p.parser.Boarding(line.Text); ok {
		p.drivers.Observe(b)
		p.log.Debug("driver seen", zap.String("player", b.Player), zap.String("vehicle", b.Vehicle))
	}

	ev, ok := p.parser.Parse(line.Text)
	if !ok {
		return
	}
	if !p.drivers.Enrich(&ev) {
		p.log.Debug("event dropped, victim not resolved", zap.String("type", string(ev.Type)), zap.String("victim_id", ev.VictimID))
		return
	}
	p.eventsParsed.Add(1)
	p.metrics.EventParsed(string(ev.Type))

	if p.dedup.Seen(ev) {
		p.deduplicated.Add(1)
		p.metrics.EventDeduplicated()
		p.log.Debug("duplicate event suppressed", eventFields(ev)...)
		return
	}

	p.log.Debug("event", append(eventFields(ev), zap.Int64("offset", line.Offset))...)
	if p.queue.Push(ev) {
		p.metrics.EventDropped()
		p.log.Warn("event queue full, dropped oldest event", zap.Int("capacity", p.queue.Cap()))
	}
}

// broadcast drains the handoff into the hub.
func (p *Pipeline) broadcast(ctx context.Context) error {
	for {
		ev, err := p.queue.Pop(ctx)
		if err != nil {
			return nil
		}
		n := p.hub.Publish(ev)
		p.log.Debug("event published", zap.String("type", string(ev.Type)), zap.Int("clients", n))
	}
}

// Status returns a snapshot of the running pipeline.
func (p *Pipeline) Status() Status {
	hs := p.hub.Status()
	st := Status{
		State:              p.source.State().String(),
		Position:           p.source.Position(),
		Clients:            hs.Clients,
		PlayerName:         p.cfg.PlayerName,
		Version:            p.opts.Version,
		LinesRead:          p.linesRead.Load(),
		EventsParsed:       p.eventsParsed.Load(),
		EventsDropped:      p.queue.Dropped(),
		EventsDeduplicated: p.deduplicated.Load(),
		Queued:             p.queue.Len(),
		Hub:                hs,
		ConnectedClients:   p.hub.Clients(),
	}
	if !p.started.IsZero() {
		st.Uptime = time.Since(p.started).Round(time.Second).String()
	}
	return st
}

func eventFields(ev event.Event) []zap.Field {
	return []zap.Field{
		zap.String("type", string(ev.Type)),
		zap.String("killer", ev.Killer),
		zap.String("victim", ev.Victim),
		zap.String("weapon", ev.Weapon),
	}
}
