package shutdown

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/todokit/logging"
)

// DefaultTimeout bounds Stop and signal-driven shutdowns when Config.Timeout
// is zero.
const DefaultTimeout = 30 * time.Second

// Config configures a Coordinator.
type Config struct {
	// Timeout for Stop and for shutdowns started by a signal.
	// Default: DefaultTimeout
	Timeout time.Duration

	// StopOnError skips later phases once a step fails. By default every
	// phase runs regardless.
	StopOnError bool

	// Logger records signals and step outcomes. Default: discards output.
	Logger *logging.Logger
}

type entry struct {
	name  string
	phase Phase
	fn    Func
}

// Coordinator runs registered teardown steps once, phase by phase. Steps
// sharing a phase run concurrently.
type Coordinator struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	entries []entry
	started bool

	once   sync.Once
	done   chan struct{}
	report *Report
}

// NewCoordinator creates a coordinator with nothing registered.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Coordinator{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("shutdown"),
		done:   make(chan struct{}),
	}
}

// Add registers fn under phase. Steps added once shutdown has begun are
// not run.
func (c *Coordinator) Add(name string, phase Phase, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		c.logger.Warn("late_registration", map[string]interface{}{
			"step":  name,
			"phase": phase.String(),
		})
		return
	}
	c.entries = append(c.entries, entry{name: name, phase: phase, fn: fn})
}

// AddCloser registers closer under phase.
func (c *Coordinator) AddCloser(name string, phase Phase, closer io.Closer) {
	c.Add(name, phase, Closer(closer))
}

// Shutdown runs every phase in order and returns the report's error. Only
// the first call does any work; later calls wait for it and return the
// same error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.report = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.report.Err
}

// Stop is Shutdown bounded by the configured timeout.
func (c *Coordinator) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals calls Stop on the first SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-ch:
			c.logger.Info("signal_received", map[string]interface{}{
				"signal":  sig.String(),
				"timeout": c.cfg.Timeout.String(),
			})
			signal.Stop(ch)
			c.Stop()
		case <-c.done:
			signal.Stop(ch)
		}
	}()
}

// Done is closed once shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Report returns the outcome, or nil while shutdown has not finished.
func (c *Coordinator) Report() *Report {
	select {
	case <-c.done:
		return c.report
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) *Report {
	start := time.Now()

	c.mu.Lock()
	c.started = true
	entries := append([]entry(nil), c.entries...)
	c.mu.Unlock()

	// Stable so steps keep registration order inside a phase.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].phase < entries[j].phase
	})

	report := &Report{}
	for len(entries) > 0 {
		n := 1
		for n < len(entries) && entries[n].phase == entries[0].phase {
			n++
		}
		group := entries[:n]
		entries = entries[n:]

		if ctx.Err() != nil {
			c.logger.Warn("shutdown_timeout", map[string]interface{}{
				"phase":   group[0].phase.String(),
				"skipped": len(group) + len(entries),
			})
			report.Err = ErrTimeout
			break
		}

		steps := c.runPhase(ctx, group)
		report.Steps = append(report.Steps, steps...)

		failed := false
		for _, s := range steps {
			if s.Err != nil {
				failed = true
			}
		}
		if failed {
			report.Err = ErrStepFailed
			if c.cfg.StopOnError {
				break
			}
		}
	}

	report.Duration = time.Since(start)
	return report
}

func (c *Coordinator) runPhase(ctx context.Context, group []entry) []Step {
	steps := make([]Step, len(group))

	var wg sync.WaitGroup
	for i, e := range group {
		wg.Add(1)
		go func(i int, e entry) {
			defer wg.Done()
			began := time.Now()
			err := e.fn(ctx)
			steps[i] = Step{
				Name:     e.name,
				Phase:    e.phase,
				Duration: time.Since(began),
				Err:      err,
			}
			c.logStep(steps[i])
		}(i, e)
	}
	wg.Wait()

	return steps
}

func (c *Coordinator) logStep(s Step) {
	fields := map[string]interface{}{
		"step":        s.Name,
		"phase":       s.Phase.String(),
		"duration_ms": s.Duration.Milliseconds(),
	}
	if s.Err != nil {
		fields["error"] = s.Err.Error()
		c.logger.Error("step_failed", fields)
		return
	}
	c.logger.Info("step_done", fields)
}
