package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/doridoridoriand/wifiwatch/internal/bus"
	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/log"
	"github.com/doridoridoriand/wifiwatch/internal/parser"
	"github.com/doridoridoriand/wifiwatch/internal/scan"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
	"github.com/doridoridoriand/wifiwatch/internal/state"
)

const (
	CallList   = "list"
	CallStatus = "status"
)

// Scheduler drives the periodic scan, parse, store and publish cycle.
type Scheduler interface {
	Run(ctx context.Context) error
	Tick(ctx context.Context) state.Snapshot
	UpdateConfig(global config.GlobalOptions)
	Stop()
}

// Observer is told about every finished tick.
type Observer interface {
	ObserveTick(snap state.Snapshot, elapsed time.Duration)
}

// Impl provides a default scheduler implementation. It is the only writer of
// its store.
type Impl struct {
	mu        sync.RWMutex
	cfg       config.GlobalOptions
	unit      signal.Unit
	scanner   scan.Scanner
	parser    *parser.Parser
	state     state.Store
	publisher bus.Publisher
	observers []Observer
	logger    *log.Logger
	runID     string
	seq       atomic.Uint64
	cancel    context.CancelFunc
	now       func() time.Time
}

// NewScheduler constructs a scheduler. The unit in global is fixed for the
// scheduler's lifetime.
func NewScheduler(global config.GlobalOptions, scanner scan.Scanner, p *parser.Parser, store state.Store, publisher bus.Publisher, logger *log.Logger) *Impl {
	if p == nil {
		p = parser.Default()
	}
	if logger == nil {
		logger = log.Discard()
	}
	unit := global.Unit
	if unit == "" {
		unit = signal.UnitPercent
	}
	return &Impl{
		cfg:       global,
		unit:      unit,
		scanner:   scanner,
		parser:    p,
		state:     store,
		publisher: publisher,
		logger:    logger,
		runID:     uuid.NewString(),
		now:       time.Now,
	}
}

// AddObserver registers o for every subsequent tick.
func (s *Impl) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// RunID identifies this process in published snapshots.
func (s *Impl) RunID() string {
	return s.runID
}

// Run ticks immediately and then once per interval until ctx is cancelled or
// Stop is called. A stop request never interrupts a tick in progress.
func (s *Impl) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	for {
		if err := runCtx.Err(); err != nil {
			return err
		}
		start := time.Now()
		s.Tick(runCtx)

		wait := s.currentInterval() - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return runCtx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs one full cycle synchronously and returns the published snapshot.
// Scanner calls are detached from ctx cancellation and bounded only by their
// own timeouts.
func (s *Impl) Tick(ctx context.Context) state.Snapshot {
	cfg := s.currentConfig()
	start := time.Now()
	callCtx := context.WithoutCancel(ctx)

	var (
		wg                 sync.WaitGroup
		listRaw, statusRaw string
		listErr, statusErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		listRaw, listErr = call(callCtx, cfg.ListTimeout, s.scanner.ListNetworks)
	}()
	go func() {
		defer wg.Done()
		statusRaw, statusErr = call(callCtx, cfg.StatusTimeout, s.scanner.InterfaceStatus)
	}()
	wg.Wait()

	now := s.now()

	result := signal.NewScanResult()
	if listErr != nil {
		s.logger.LogScanFailure(CallList, scan.Classify(listErr), listErr)
	} else {
		result = s.parser.Parse(listRaw)
	}

	var conn signal.ConnectionState
	if statusErr != nil {
		s.logger.LogScanFailure(CallStatus, scan.Classify(statusErr), statusErr)
	} else {
		conn = s.parser.ResolveConnection(statusRaw).InUnit(s.unit)
	}

	if result.Malformed > 0 {
		s.logger.Debug("skipped malformed readings", map[string]interface{}{"count": result.Malformed})
	}

	updated := s.state.Append(now, convert(result, s.unit))
	s.state.Recompute(updated)

	if cfg.StaleAfter > 0 {
		if pruned := s.state.PruneStale(now, cfg.StaleAfter); len(pruned) > 0 {
			s.logger.Info("pruned stale networks", map[string]interface{}{"networks": pruned})
		}
	}

	snap := state.Snapshot{
		Seq:             s.seq.Add(1),
		RunID:           s.runID,
		Time:            now,
		Unit:            s.unit,
		Networks:        s.state.AllSeries(),
		Connection:      conn,
		Found:           len(result.Networks),
		Malformed:       result.Malformed,
		ListStatus:      scan.Classify(listErr),
		InterfaceStatus: scan.Classify(statusErr),
	}

	if s.publisher != nil {
		s.publisher.Publish(snap)
	}
	elapsed := time.Since(start)
	for _, o := range s.currentObservers() {
		o.ObserveTick(snap, elapsed)
	}
	return snap
}

// UpdateConfig applies reloaded options from the next tick on. The unit is
// never changed at runtime.
func (s *Impl) UpdateConfig(global config.GlobalOptions) {
	s.mu.Lock()
	if global.Unit != "" && global.Unit != s.unit {
		s.logger.Warn("unit change ignored until restart", map[string]interface{}{
			"current":   string(s.unit),
			"requested": string(global.Unit),
		})
	}
	global.Unit = s.unit
	s.cfg = global
	s.mu.Unlock()

	if global.WindowCap > 0 && global.WindowCap != s.state.WindowCap() {
		s.state.SetWindowCap(global.WindowCap)
	}
}

// Stop ends Run after the tick in progress, if any.
func (s *Impl) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func call(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		raw string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		raw, err := fn(callCtx)
		done <- outcome{raw, err}
	}()

	// A scanner that ignores its context must not hold the tick past the
	// deadline; its late result is dropped.
	select {
	case out := <-done:
		if out.err == nil && callCtx.Err() != nil {
			return "", fmt.Errorf("%w: %v", scan.ErrScanTimeout, callCtx.Err())
		}
		return out.raw, out.err
	case <-callCtx.Done():
		return "", fmt.Errorf("%w: %v", scan.ErrScanTimeout, callCtx.Err())
	}
}

// convert maps parser output, always in percent, onto unit.
func convert(result signal.ScanResult, unit signal.Unit) signal.ScanResult {
	if unit == signal.UnitPercent {
		return result
	}
	out := signal.ScanResult{
		Networks:  make(map[string]signal.Observation, len(result.Networks)),
		Malformed: result.Malformed,
	}
	for id, obs := range result.Networks {
		obs.Level = unit.FromPercent(obs.Level)
		out.Networks[id] = obs
	}
	return out
}

func (s *Impl) currentConfig() config.GlobalOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Impl) currentInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Interval <= 0 {
		return time.Second
	}
	return s.cfg.Interval
}

func (s *Impl) currentObservers() []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Observer(nil), s.observers...)
}
