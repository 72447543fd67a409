package sim

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EngineState is the lifecycle state of an Engine.
type EngineState int32

const (
	StateIdle EngineState = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver registers an observer for pipeline events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

type engineCounters struct {
	generated  [NumLevels]atomic.Int64
	rejections [NumLevels]atomic.Int64
	admitted   atomic.Int64
	abandoned  atomic.Int64
	shed       atomic.Int64
}

// Engine runs the live simulation: an epoch clock schedules transmission
// trials, a bounded worker pool runs admissions with retry, and one goroutine
// per host egress, per ToR and for the aggregation switch moves packets
// until the deadline of Epochs * EpochDuration.
type Engine struct {
	cfg       NetworkConfig
	runID     string
	log       *logrus.Entry
	hosts     []*Host
	fabric    *Fabric
	observers MultiObserver
	observer  Observer

	rng *PartitionedRNG
	gen *Generator

	start    time.Time
	epoch    atomic.Int64
	epochs   atomic.Int64
	state    atomic.Int32
	counters engineCounters
	hasRun   bool
}

// NewEngine validates cfg and builds hosts and the fabric. No goroutine is
// started until Run.
func NewEngine(cfg NetworkConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	router, err := NewRouter(cfg.Routing, cfg.HostsPerRack)
	if err != nil {
		return nil, err
	}

	runID := xid.New().String()
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed))
	e := &Engine{
		cfg:   cfg,
		runID: runID,
		log:   logrus.WithField("run", runID),
		rng:   rng,
		gen:   NewGenerator(cfg.Distribution, rng.ForSubsystem(SubsystemTraffic)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.observer = e.observers
	if len(e.observers) == 0 {
		e.observer = NopObserver{}
	}

	e.fabric = NewFabric(cfg.Racks(), router, cfg.MaxHops, e.elapsed, e.observer)
	e.hosts = make([]*Host, cfg.Hosts)
	for i := range e.hosts {
		e.hosts[i] = NewHost(i, router.HostRack(i), cfg.Budgets)
	}
	return e, nil
}

// RunID returns the unique identifier attached to this engine's log entries.
func (e *Engine) RunID() string { return e.runID }

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() NetworkConfig { return e.cfg }

// State returns the current lifecycle state.
func (e *Engine) State() EngineState { return EngineState(e.state.Load()) }

// Hosts returns the simulated hosts.
func (e *Engine) Hosts() []*Host { return e.hosts }

// Fabric returns the switch fabric.
func (e *Engine) Fabric() *Fabric { return e.fabric }

// Epoch returns the most recent epoch observed by the clock.
func (e *Engine) Epoch() int64 { return e.epoch.Load() }

func (e *Engine) elapsed() time.Duration {
	return time.Since(e.start)
}

func (e *Engine) setState(s EngineState) {
	e.state.Store(int32(s))
	e.log.Infof("engine %s", s)
}

// Run executes the simulation and returns its metrics. It returns when the
// deadline passes and every stage has stopped, or early with ctx's error if
// ctx is cancelled first (metrics are still returned). Panics if called
// more than once.
func (e *Engine) Run(ctx context.Context) (*Metrics, error) {
	if e.hasRun {
		panic("Engine.Run() called more than once")
	}
	e.hasRun = true

	e.start = time.Now()
	horizon := e.cfg.Horizon()
	runCtx, cancel := context.WithDeadline(ctx, e.start.Add(horizon))
	defer cancel()

	e.log.Infof("starting: %d hosts in %d racks, %d epochs of %v, p_tx=%g, distribution=%v",
		e.cfg.Hosts, e.fabric.Racks(), e.cfg.Epochs, e.cfg.EpochDuration, e.cfg.PTx, e.cfg.Distribution)
	e.setState(StateRunning)

	tasks := make(chan Packet, e.cfg.PendingAttempts)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return e.fabric.RunAggregation(gctx) })
	for rack := 0; rack < e.fabric.Racks(); rack++ {
		rack := rack
		g.Go(func() error { return e.fabric.RunToR(gctx, rack) })
	}
	for _, h := range e.hosts {
		h := h
		g.Go(func() error { return h.RunEgress(gctx, e.fabric.Queue(h.Rack)) })
	}
	for i := 0; i < e.cfg.Workers; i++ {
		g.Go(func() error { return e.runAdmissions(gctx, tasks) })
	}
	g.Go(func() error { return e.runClock(gctx, tasks) })

	<-gctx.Done()
	e.setState(StateDraining)
	err := g.Wait()

	m := e.collect(tasks)
	e.setState(StateTerminated)
	if err == nil {
		err = ctx.Err()
	}
	return m, err
}

// runClock publishes the current epoch and runs one round of transmission
// trials per host for every epoch boundary crossed. Epochs shorter than the
// timer resolution are caught up on the next tick.
func (e *Engine) runClock(ctx context.Context, tasks chan<- Packet) error {
	ticker := time.NewTicker(e.cfg.EpochDuration)
	defer ticker.Stop()
	last := int64(-1)
	for {
		epoch := int64(e.elapsed() / e.cfg.EpochDuration)
		if epoch >= e.cfg.Epochs {
			return nil
		}
		last = e.advance(last, epoch, tasks)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// advance runs the trials of epochs last+1..epoch, all stamped with epoch,
// and returns the new last epoch.
func (e *Engine) advance(last, epoch int64, tasks chan<- Packet) int64 {
	if epoch <= last {
		return last
	}
	e.epoch.Store(epoch)
	for i := last + 1; i <= epoch; i++ {
		e.scheduleEpoch(epoch, tasks)
	}
	e.epochs.Add(epoch - last)
	return epoch
}

func (e *Engine) scheduleEpoch(epoch int64, tasks chan<- Packet) {
	trials := e.rng.ForSubsystem(SubsystemTransmit)
	for src := range e.hosts {
		if trials.Float64() >= e.cfg.PTx {
			continue
		}
		p := e.gen.Generate(epoch, e.elapsed(), src, e.pickDestination(trials.Intn, src))
		e.counters.generated[p.Priority].Add(1)
		e.observer.OnGenerated(p)
		select {
		case tasks <- p:
		default:
			e.counters.shed.Add(1)
			e.log.Warnf("admission queue full, shedding packet %d from host %d", p.ID, src)
		}
	}
}

// pickDestination draws a destination uniformly among the other hosts.
func (e *Engine) pickDestination(intn func(int) int, src int) int {
	if len(e.hosts) == 1 {
		return src
	}
	dst := intn(len(e.hosts) - 1)
	if dst >= src {
		dst++
	}
	return dst
}

func (e *Engine) runAdmissions(ctx context.Context, tasks <-chan Packet) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-tasks:
			e.admit(ctx, p)
		}
	}
}

// admit offers p to its host's rate limiter, retrying once per epoch while
// rejected, until admitted or the simulation ends.
func (e *Engine) admit(ctx context.Context, p Packet) {
	host := e.hosts[p.Src]
	var retry *time.Timer
	defer func() {
		if retry != nil {
			retry.Stop()
		}
	}()
	for {
		if ctx.Err() != nil {
			e.abandon(p)
			return
		}
		epoch := e.epoch.Load()
		if err := host.Admit(p, epoch); err == nil {
			e.counters.admitted.Add(1)
			e.observer.OnAdmitted(p, epoch)
			return
		}
		e.counters.rejections[p.Priority].Add(1)
		e.observer.OnRejected(p, epoch)

		if retry == nil {
			retry = time.NewTimer(e.cfg.EpochDuration)
		} else {
			retry.Reset(e.cfg.EpochDuration)
		}
		select {
		case <-ctx.Done():
			e.abandon(p)
			return
		case <-retry.C:
		}
	}
}

func (e *Engine) abandon(p Packet) {
	e.counters.abandoned.Add(1)
	e.observer.OnAbandoned(p)
}

// collect builds the metrics once every goroutine has stopped. Packets still
// waiting for an admission worker are abandoned; admitted packets left in
// host buffers or switch queues are stranded.
func (e *Engine) collect(tasks chan Packet) *Metrics {
	for len(tasks) > 0 {
		e.abandon(<-tasks)
	}

	m := &Metrics{
		Admitted:      e.counters.admitted.Load(),
		Abandoned:     e.counters.abandoned.Load(),
		Shed:          e.counters.shed.Load(),
		EpochsElapsed: e.epochs.Load(),
		WallTime:      e.elapsed(),
	}
	for l := 0; l < NumLevels; l++ {
		m.GeneratedByPriority[l] = e.counters.generated[l].Load()
		m.RejectionsByPriority[l] = e.counters.rejections[l].Load()
		m.Generated += m.GeneratedByPriority[l]
		m.Rejections += m.RejectionsByPriority[l]
	}

	delivered := e.fabric.Delivered()
	m.Delivered = int64(len(delivered))
	for _, p := range delivered {
		m.DeliveredByPriority[p.Priority]++
	}
	m.recordLatencies(delivered)
	m.Misrouted = int64(len(e.fabric.Misrouted()))

	stranded := e.fabric.Queued()
	for _, h := range e.hosts {
		for _, n := range h.Buffered() {
			stranded += n
		}
	}
	m.Stranded = int64(stranded)

	if m.Generated != m.Admitted+m.Abandoned+m.Shed || m.Admitted != m.Delivered+m.Misrouted+m.Stranded {
		e.log.Errorf("packet accounting mismatch: %+v", *m)
	}
	e.log.Infof("finished: generated=%d delivered=%d discrepancy=%d", m.Generated, m.Delivered, m.Discrepancy())
	return m
}
