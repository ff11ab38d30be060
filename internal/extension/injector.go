package extension

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"github.com/GriffinCanCode/modhost/internal/shared/textenc"
)

// Target is a page that accepts module sources
type Target interface {
	ID() id.PageID
	Inject(ctx context.Context, name, src string) error
}

// Config controls discovery
type Config struct {
	Dir    string
	Suffix string
}

// Injector runs injection cycles. Cycles for different pages may overlap;
// modules within one cycle are strictly sequential.
type Injector struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu   sync.RWMutex
	last *Cycle
}

// NewInjector creates an injector
func NewInjector(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Injector {
	if cfg.Suffix == "" {
		cfg.Suffix = ".js"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{cfg: cfg, logger: logger, metrics: metrics}
}

// Dir returns the extension directory
func (i *Injector) Dir() string {
	return i.cfg.Dir
}

// Discover lists the modules the next cycle would inject
func (i *Injector) Discover() ([]Descriptor, error) {
	return Discover(i.cfg.Dir, i.cfg.Suffix)
}

// Survey returns the extension tree inventory
func (i *Injector) Survey() (Inventory, error) {
	return Survey(i.cfg.Dir, i.cfg.Suffix)
}

// Run injects every discovered module into target in load order. A module
// that fails to read or throws is recorded and the cycle moves on. Once ctx
// is done the remaining modules stay Pending.
func (i *Injector) Run(ctx context.Context, target Target) Cycle {
	cycle := Cycle{
		ID:      id.NewCycleID(),
		Page:    target.ID(),
		Started: time.Now(),
	}
	log := i.logger.With(
		zap.String("cycle", cycle.ID.String()),
		zap.String("page", target.ID().String()),
	)

	mods, err := i.Discover()
	if err != nil {
		log.Error("extension discovery failed", zap.String("dir", i.cfg.Dir), zap.Error(err))
	}
	cycle.Modules = mods
	if len(mods) == 0 {
		log.Debug("no extension modules", zap.String("dir", i.cfg.Dir))
	}

	for k := range cycle.Modules {
		if ctx.Err() != nil {
			cycle.Cancelled = true
			break
		}
		i.inject(ctx, log, target, &cycle.Modules[k])
	}

	cycle.Finished = time.Now()
	i.metrics.RecordCycle(cycle.Finished.Sub(cycle.Started))

	injected, failed, pending := cycle.Counts()
	log.Info("injection cycle finished",
		zap.Int("injected", injected),
		zap.Int("failed", failed),
		zap.Int("pending", pending),
		zap.Bool("cancelled", cycle.Cancelled),
		zap.Duration("duration", cycle.Finished.Sub(cycle.Started)),
	)

	i.mu.Lock()
	c := cycle
	i.last = &c
	i.mu.Unlock()
	return cycle
}

func (i *Injector) inject(ctx context.Context, log *zap.Logger, target Target, d *Descriptor) {
	start := time.Now()
	defer func() { d.Duration = time.Since(start) }()

	src, err := textenc.ReadFile(d.Path)
	if err != nil {
		i.fail(log, d, "extension read failed", err)
		return
	}

	if err := target.Inject(ctx, d.Name, src); err != nil {
		if ctx.Err() != nil {
			// cancelled mid-module; leave it for the next cycle
			d.Status = Pending
			return
		}
		i.fail(log, d, "extension failed", err)
		return
	}

	d.Status = Injected
	i.metrics.RecordInjection(string(Injected))
	log.Info("injected extension", zap.String("module", d.Name), zap.Int("order", d.LoadOrder))
}

func (i *Injector) fail(log *zap.Logger, d *Descriptor, msg string, err error) {
	d.Status = Failed
	d.Error = err.Error()
	i.metrics.RecordInjection(string(Failed))
	log.Error(msg, zap.String("module", d.Name), zap.Error(err))
}

// Last returns the most recently finished cycle
func (i *Injector) Last() (Cycle, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.last == nil {
		return Cycle{}, false
	}
	c := *i.last
	c.Modules = append([]Descriptor(nil), i.last.Modules...)
	return c, true
}
