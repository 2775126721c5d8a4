package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/doridoridoriand/wifiwatch/internal/api"
	"github.com/doridoridoriand/wifiwatch/internal/bus"
	"github.com/doridoridoriand/wifiwatch/internal/cli"
	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/log"
	"github.com/doridoridoriand/wifiwatch/internal/metrics"
	"github.com/doridoridoriand/wifiwatch/internal/parser"
	"github.com/doridoridoriand/wifiwatch/internal/scan"
	"github.com/doridoridoriand/wifiwatch/internal/scheduler"
	"github.com/doridoridoriand/wifiwatch/internal/sink"
	"github.com/doridoridoriand/wifiwatch/internal/state"
	"github.com/doridoridoriand/wifiwatch/internal/stats"
	"github.com/doridoridoriand/wifiwatch/internal/ui"
)

const version = "0.1.0"

type cliFlags struct {
	interval      cli.OptionalDuration
	listTimeout   cli.OptionalDuration
	statusTimeout cli.OptionalDuration
	window        cli.OptionalInt
	unit          cli.OptionalUnit
	encoding      cli.OptionalString
	metricsMode   cli.OptionalMetricsMode
	metricsListen cli.OptionalString
	noUI          cli.OptionalBool
	logLevel      cli.OptionalString
	logFormat     cli.OptionalString
	logFile       cli.OptionalString
	redisAddr     cli.OptionalString
	version       bool
}

func newFlagSet(name string, f *cliFlags, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Var(&f.interval, "interval", "poll interval (override config)")
	fs.Var(&f.interval, "i", "poll interval (override config)")
	fs.Var(&f.listTimeout, "list-timeout", "network list command timeout")
	fs.Var(&f.statusTimeout, "status-timeout", "interface status command timeout")
	fs.Var(&f.window, "window", "samples kept per network")
	fs.Var(&f.window, "w", "samples kept per network")
	fs.Var(&f.unit, "unit", "signal unit: percent|dbm")
	fs.Var(&f.encoding, "encoding", "scanner output encoding (auto, utf-8, windows-1252, ...)")
	fs.Var(&f.metricsMode, "metrics-mode", "metrics mode: per-network|aggregated|both")
	fs.Var(&f.metricsListen, "metrics-listen", "HTTP listen address for /metrics and the API (e.g. :9100)")
	fs.Var(&f.noUI, "no-ui", "disable TUI (log only)")
	fs.Var(&f.logLevel, "log-level", "log level: debug|info|warn|error")
	fs.Var(&f.logFormat, "log-format", "log format: text|json")
	fs.Var(&f.logFile, "log-file", "write logs to this file instead of stderr")
	fs.Var(&f.redisAddr, "redis", "mirror snapshots to this Redis address")
	fs.BoolVar(&f.version, "version", false, "show version")
	fs.BoolVar(&f.version, "v", false, "show version")
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: %s [options] [config-file]\n\n", name)
		fmt.Fprintln(output, "Options:")
		fs.PrintDefaults()
	}
	return fs
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var flags cliFlags
	fs := newFlagSet("wifiwatch", &flags, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if flags.version {
		fmt.Fprintf(stdout, "wifiwatch version %s\n", version)
		return 0
	}

	var configPath string
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		configPath = rest[0]
	default:
		fs.Usage()
		return 2
	}

	overrides := buildOverrides(flags)
	cfgParser := config.YAMLParser{}
	cfg, err := cfgParser.LoadConfig(configPath, overrides)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg.Global, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "failed to open log: %v\n", err)
		return 1
	}
	defer closeLog()
	logger.LogConfigLoad(true, configPath, nil)

	ctx, cancel := signalContext()
	defer cancel()

	app, err := newApp(ctx, cfg.Global, logger)
	if err != nil {
		logger.LogError("startup", err, nil)
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return 1
	}

	if configPath != "" {
		reloadCh := make(chan struct{}, 1)
		go watchHangup(ctx, reloadCh)
		go app.reloadLoop(ctx, reloadCh, cfgParser, configPath, overrides)

		watcher, err := config.NewWatcher(configPath, cfgParser, overrides, app.applyConfig, func(err error) {
			logger.LogConfigLoad(false, configPath, err)
		})
		if err != nil {
			logger.Warn("config watcher disabled", map[string]interface{}{"error": err.Error()})
		} else {
			go func() { _ = watcher.Run(ctx) }()
		}
	}

	if err := app.run(ctx, cancel); err != nil && !errors.Is(err, context.Canceled) {
		logger.LogError("run", err, nil)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func buildOverrides(f cliFlags) config.CLIOverrides {
	overrides := config.CLIOverrides{}

	if v, ok := f.interval.Value(); ok {
		overrides.Interval = &v
	}
	if v, ok := f.listTimeout.Value(); ok {
		overrides.ListTimeout = &v
	}
	if v, ok := f.statusTimeout.Value(); ok {
		overrides.StatusTimeout = &v
	}
	if v, ok := f.window.Value(); ok {
		overrides.WindowCap = &v
	}
	if v, ok := f.unit.Value(); ok {
		overrides.Unit = &v
	}
	if v, ok := f.encoding.Value(); ok && v != "" {
		overrides.Encoding = &v
	}
	if v, ok := f.metricsMode.Value(); ok && v != "" {
		overrides.MetricsMode = &v
	}
	if v, ok := f.metricsListen.Value(); ok && v != "" {
		overrides.MetricsListen = &v
	}
	if v, ok := f.noUI.Value(); ok {
		overrides.UIDisable = &v
	}
	if v, ok := f.logLevel.Value(); ok && v != "" {
		overrides.LogLevel = &v
	}
	if v, ok := f.logFormat.Value(); ok && v != "" {
		overrides.LogFormat = &v
	}
	if v, ok := f.logFile.Value(); ok && v != "" {
		overrides.LogFile = &v
	}
	if v, ok := f.redisAddr.Value(); ok && v != "" {
		overrides.RedisAddr = &v
	}

	return overrides
}

func signalContext() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// requestReload queues a reload without blocking; one pending request is
// enough.
func requestReload(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func watchHangup(ctx context.Context, reloadCh chan<- struct{}) {
	hup := make(chan os.Signal, 1)
	ossignal.Notify(hup, syscall.SIGHUP)
	defer ossignal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			requestReload(reloadCh)
		}
	}
}

// newLogger writes to the configured file, to stderr when the TUI is off, and
// nowhere otherwise so log lines do not tear the screen.
func newLogger(global config.GlobalOptions, stderr io.Writer) (*log.Logger, func(), error) {
	opts := log.Options{
		Level:  log.ParseLevel(global.LogLevel),
		Format: log.Format(global.LogFormat),
		Output: stderr,
	}
	if global.LogFile != "" {
		f, err := os.OpenFile(global.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		opts.Output = f
		opts.NoColor = true
		return log.New(opts), func() { _ = f.Close() }, nil
	}
	if !global.UIDisable {
		return log.Discard(), func() {}, nil
	}
	return log.New(opts), func() {}, nil
}

func buildScanner(global config.GlobalOptions) (scan.Scanner, error) {
	decoder, err := scan.NewDecoder(global.Encoding)
	if err != nil {
		return nil, err
	}
	scanners := make([]scan.Scanner, 0, len(global.ListCommands))
	for _, command := range global.ListCommands {
		s, err := scan.NewExternalScanner(command, global.StatusCommand, decoder)
		if err != nil {
			return nil, err
		}
		scanners = append(scanners, s)
	}
	if len(scanners) == 0 {
		return nil, errors.New("no network list command configured")
	}
	return scan.NewFallbackScanner(scanners...), nil
}

func buildParser(global config.GlobalOptions) (*parser.Parser, error) {
	rules, err := parser.DefaultRules().With(parser.Labels{
		Identifier: global.IdentifierLabels,
		Signal:     global.SignalLabels,
		Channel:    global.ChannelLabels,
	})
	if err != nil {
		return nil, err
	}
	return parser.New(rules), nil
}

type app struct {
	global    config.GlobalOptions
	logger    *log.Logger
	bus       *bus.PubSubBus
	store     *state.StoreImpl
	sched     *scheduler.Impl
	collector *metrics.Collector
	registry  *prometheus.Registry
	sink      *sink.RedisSink
}

func newApp(ctx context.Context, global config.GlobalOptions, logger *log.Logger) (*app, error) {
	scanner, err := buildScanner(global)
	if err != nil {
		return nil, err
	}
	return assemble(ctx, global, scanner, logger)
}

// assemble wires the pipeline around an already built scanner.
func assemble(ctx context.Context, global config.GlobalOptions, scanner scan.Scanner, logger *log.Logger) (*app, error) {
	p, err := buildParser(global)
	if err != nil {
		return nil, err
	}

	estimator := stats.Estimator{
		SingleSampleStdDev: global.SingleSampleStdDev,
		MinStdDev:          global.MinStdDev,
	}
	a := &app{
		global: global,
		logger: logger,
		bus:    bus.New(logger.With("bus").Slog()),
		store:  state.NewStore(global.WindowCap, estimator),
	}
	a.sched = scheduler.NewScheduler(global, scanner, p, a.store, a.bus, logger.With("scheduler"))

	if global.MetricsListen != "" {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.collector = metrics.NewCollector(global.MetricsMode, a.registry)
		a.sched.AddObserver(a.collector)
	}

	if global.Redis.Enabled() {
		s, err := sink.NewRedisSink(ctx, global.Redis, logger)
		if err != nil {
			logger.Warn("redis sink disabled", map[string]interface{}{"error": err.Error()})
		} else {
			a.sink = s
		}
	}
	return a, nil
}

// run starts every component and blocks until ctx is done or the TUI exits.
func (a *app) run(ctx context.Context, cancel context.CancelFunc) error {
	var (
		wg   sync.WaitGroup
		errs = make(chan error, 4)
	)
	start := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	if a.collector != nil {
		handler := api.NewHandler(a.collector, a.registry, a.logger).Router()
		a.logger.Info("http listening", map[string]interface{}{"addr": a.global.MetricsListen})
		start("http", func() error { return api.Serve(ctx, a.global.MetricsListen, handler) })
	}

	if a.sink != nil {
		sub := a.bus.Subscribe()
		start("redis", func() error { return a.sink.Run(ctx, sub) })
	}

	if a.global.UIDisable {
		sub := a.bus.Subscribe()
		start("log", func() error { return bus.Consume(ctx, sub, a.logger.LogSnapshot) })
	}

	var screen *ui.UI
	if !a.global.UIDisable {
		screen = ui.New(a.global, a.bus.Subscribe())
	}

	start("scheduler", func() error { return a.sched.Run(ctx) })

	var uiErr error
	if screen != nil {
		uiErr = screen.Run(ctx)
		cancel()
	} else {
		<-ctx.Done()
	}

	a.sched.Stop()
	a.bus.Close()
	wg.Wait()
	if a.sink != nil {
		_ = a.sink.Close()
	}
	close(errs)

	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		return uiErr
	}
	if err, ok := <-errs; ok {
		return err
	}
	return nil
}

// applyConfig pushes a reloaded config into the running pipeline.
func (a *app) applyConfig(cfg *config.Config) {
	a.sched.UpdateConfig(cfg.Global)
	a.logger.SetLevel(log.ParseLevel(cfg.Global.LogLevel))
	a.logger.LogConfigLoad(true, cfg.Path, nil)
}

func (a *app) reloadLoop(ctx context.Context, reloadCh <-chan struct{}, p config.Parser, path string, overrides config.CLIOverrides) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reloadCh:
			cfg, err := p.LoadConfig(path, overrides)
			if err != nil {
				a.logger.LogConfigLoad(false, path, err)
				continue
			}
			a.applyConfig(cfg)
		}
	}
}
