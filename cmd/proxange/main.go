package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/thaleshodan/proxange/audio"
	"github.com/thaleshodan/proxange/broadcast"
	"github.com/thaleshodan/proxange/config"
	"github.com/thaleshodan/proxange/constants"
	"github.com/thaleshodan/proxange/core"
	"github.com/thaleshodan/proxange/dashboard"
	"github.com/thaleshodan/proxange/engine"
	"github.com/thaleshodan/proxange/events"
	"github.com/thaleshodan/proxange/identity"
	"github.com/thaleshodan/proxange/modes"
	"github.com/thaleshodan/proxange/proxies"
	"github.com/thaleshodan/proxange/render"
	"github.com/thaleshodan/proxange/store"
)

var (
	configPath    = flag.String("config", config.DefaultPath, "TOML config file")
	envFile       = flag.String("env", ".env", "dotenv file loaded before the config")
	isDebug       = flag.Bool("debug", false, "Enable debug log output")
	logPath       = flag.String("log", filepath.Join(logDir, logFileName), "Log file, empty disables logging")
	exportProxies = flag.Bool("export-proxies", false, "Print the proxy list as YAML and exit")
	historyN      = flag.Int("history", 0, "Print the last N recorded rotations and exit")
)

// embeddedNATSPort is where the in-process server listens for local watchers
const embeddedNATSPort = 4222

// proxyUpRate is the share of proxies the mock tester reports operational
const proxyUpRate = 0.8

func main() {
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "proxange: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	// Closers run in reverse order of registration, errors are combined
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	if err := config.LoadEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}

	logger, logFile, err := setupLogging(*logPath, *isDebug)
	if err != nil {
		return err
	}
	if logFile != nil {
		closers = append(closers, logFile.Close)
	}
	closers = append(closers, func() error {
		logger.Info("Proxange exit")
		// Sync on a file never fails for reasons worth reporting at exit
		_ = logger.Sync()
		return nil
	})
	logger.Info("Proxange start", zap.String("config", *configPath), zap.Int("interval", cfg.Rotation.Interval))
	printBuildInfo(logger)

	proxyList, err := proxies.LoadFile(cfg.Proxies.File)
	if err != nil {
		return err
	}
	if *exportProxies {
		return proxies.Export(os.Stdout, proxyList)
	}

	var history *store.History
	if cfg.History.Path != "" {
		history, err = store.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		closers = append(closers, history.Close)
	}
	if *historyN > 0 {
		return printHistory(os.Stdout, history, *historyN)
	}

	probe, err := buildProbe(cfg, logger)
	if err != nil {
		return err
	}

	router := events.NewRouter()
	if err := startExport(cfg, router, logger, &closers); err != nil {
		// Export is optional; the dashboard runs without it
		logger.Warn("event export disabled", zap.Error(err))
	}

	var sound dashboard.Sound
	if cfg.Audio.Enabled {
		sm := audio.NewSoundManager()
		if err := sm.Initialize(); err != nil {
			logger.Warn("audio unavailable, continuing without sound", zap.Error(err))
		}
		closers = append(closers, func() error { sm.Cleanup(); return nil })
		sound = sm
	}

	deps := dashboard.Deps{
		Probe:    probe,
		Router:   router,
		Registry: proxies.NewRegistry(proxyList, proxies.NewMockTester(nil, proxyUpRate), logger.Named("proxies")),
		Sound:    sound,
		Logger:   logger,
		Interval: cfg.Rotation.Interval,
	}
	if history != nil {
		deps.History = history
	}
	ctl, err := dashboard.New(deps)
	if err != nil {
		return err
	}
	closers = append(closers, func() error { ctl.Close(); return nil })

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	// Crash reports restore the terminal first
	core.SetResetHook(screen.Fini)
	closers = append(closers, func() error { screen.Fini(); return nil })
	screen.SetStyle(render.StyleDefault)
	screen.Clear()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	netmap := newNetworkMap(ctx, cfg, logger.Named("netmap"))
	closers = append(closers, func() error { netmap.stop(); return nil })
	netmap.resize(screen.Size())

	input := modes.NewInputHandler(ctl, func(w, h int) {
		screen.Sync()
		netmap.resize(w, h)
	})

	return loop(ctx, screen, ctl, input, router, render.NewView(netmap.canvas))
}

// loop polls terminal events and redraws on the frame ticker until quit or signal
func loop(ctx context.Context, screen tcell.Screen, ctl *dashboard.Controller, input *modes.InputHandler, router *events.Router, view *render.View) error {
	eventChan := make(chan tcell.Event, 256)
	core.Go(func() {
		for {
			ev := screen.PollEvent()
			// nil after Fini
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-ctx.Done():
				return
			}
		}
	})

	frameTicker := time.NewTicker(constants.FrameUpdateInterval)
	defer frameTicker.Stop()

	draw := func() {
		router.DispatchAll()
		st := ctl.ViewState(time.Now())
		st.TerminalLine = input.Line()
		st.PromptOpen = input.Prompting()
		view.Draw(screen, st)
	}
	draw()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-eventChan:
			if !input.HandleEvent(ev) {
				return nil
			}
			draw()
		case <-frameTicker.C:
			draw()
		}
	}
}

// buildProbe selects the identity source and applies the probe limiter
func buildProbe(cfg config.Config, logger *zap.Logger) (identity.Probe, error) {
	var probe identity.Probe
	switch cfg.Probe.Kind {
	case config.ProbeHTTP:
		p, err := identity.NewHTTPProbe("Local Tor", cfg.Probe.ProxyURL, cfg.Probe.Endpoint, cfg.Probe.Timeout.Duration,
			identity.WithRetry(cfg.Probe.Retries, 5*time.Second),
			identity.WithProbeLogger(logger.Named("probe")),
		)
		if err != nil {
			return nil, err
		}
		probe = p
	default:
		probe = identity.NewMockProbe(nil, nil, "Local Tor")
	}
	return identity.Limited(probe, cfg.Probe.Limiter.Limiter()), nil
}

// startExport connects the NATS publisher, starting an embedded server when configured
func startExport(cfg config.Config, router *events.Router, logger *zap.Logger, closers *[]func() error) error {
	url := cfg.Events.NATSURL
	if cfg.Events.Embedded {
		srv, err := broadcast.StartEmbedded("127.0.0.1", embeddedNATSPort, logger.Named("nats"))
		if err != nil {
			return err
		}
		*closers = append(*closers, func() error { srv.Shutdown(); return nil })
		url = srv.ClientURL()
	}
	if url == "" {
		return nil
	}

	pub, err := broadcast.Connect(url, cfg.Events.Subject, logger.Named("export"))
	if err != nil {
		return err
	}
	*closers = append(*closers, pub.Close)
	router.Register(pub)
	logger.Info("exporting events", zap.String("url", url), zap.String("subject", cfg.Events.Subject))
	return nil
}

// printHistory writes the most recent rotations as a table
func printHistory(w io.Writer, history *store.History, n int) error {
	if history == nil {
		return errors.New("history is disabled (set [history] path or PROXANGE_DB)")
	}
	ctx := context.Background()
	entries, err := history.Recent(ctx, n)
	if err != nil {
		return err
	}
	total, err := history.Count(ctx)
	if err != nil {
		return err
	}
	distinct, err := history.DistinctAddresses(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s rotations, %s distinct addresses\n", humanize.Comma(int64(total)), humanize.Comma(int64(distinct)))
	now := time.Now()
	for _, e := range entries {
		fmt.Fprintf(w, "%-16s %-14s %-8s %6dms  %s\n",
			e.Address, e.Country, e.Trigger, e.Latency.Milliseconds(), humanize.RelTime(e.At, now, "ago", "from now"))
	}
	return nil
}

// networkMap owns the simulation behind the map card; it starts lazily once the card has room
type networkMap struct {
	ctx    context.Context
	cfg    config.Config
	log    *zap.Logger
	canvas *render.Canvas
	sim    *engine.Simulation
}

func newNetworkMap(ctx context.Context, cfg config.Config, log *zap.Logger) *networkMap {
	return &networkMap{
		ctx:    ctx,
		cfg:    cfg,
		log:    log,
		canvas: render.NewCanvas(cfg.Animation.LinkDistance),
	}
}

// resize follows a terminal size change; called from the event loop only
func (m *networkMap) resize(w, h int) {
	rect, ok := render.MapViewport(w, h)
	if !ok {
		return
	}
	vp := render.PixelViewport(rect.W, rect.H)
	if m.sim != nil {
		m.sim.OnResize(vp.Width, vp.Height)
		return
	}

	sim, err := engine.Start(m.ctx, m.canvas, vp.Width, vp.Height, m.cfg.Animation.Entities,
		engine.WithTickInterval(m.cfg.Animation.Tick.Duration),
		engine.WithLinkDistance(m.cfg.Animation.LinkDistance),
		engine.WithLogger(m.log),
	)
	if err != nil {
		if !errors.Is(err, engine.ErrSurfaceUnavailable) {
			m.log.Warn("network map failed to start", zap.Error(err))
		}
		return
	}
	m.sim = sim
}

func (m *networkMap) stop() {
	m.sim.Stop()
}
