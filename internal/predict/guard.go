package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
)

// DefaultDemotionProbability is the chance a production call is routed to
// the fallback predictor even when the runtime is healthy.
const DefaultDemotionProbability = 0.3

// Availability is the Guard's verdict for one forecast call.
type Availability struct {
	Reason     string
	Available  bool
	Demoted    bool
	Production bool
}

// UseSequenceModel reports whether the call may train the sequence model.
func (a Availability) UseSequenceModel() bool {
	return a.Available && !a.Demoted
}

// Guard decides per call whether the sequence model runtime may be used.
type Guard struct {
	pctx     *PredictorContext
	backend  Backend
	roll     func() float64
	logger   *slog.Logger
	env      Environment
	demotion float64
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithDemotionProbability sets the production demotion probability.
func WithDemotionProbability(p float64) GuardOption {
	return func(g *Guard) {
		g.demotion = p
	}
}

// WithRoll replaces the random source used for demotion. roll must return
// values in [0, 1).
func WithRoll(roll func() float64) GuardOption {
	return func(g *Guard) {
		g.roll = roll
	}
}

// WithGuardLogger sets the logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = l
	}
}

// NewGuard creates a Guard. pctx must not be nil.
func NewGuard(pctx *PredictorContext, backend Backend, env Environment, opts ...GuardOption) *Guard {
	g := &Guard{
		pctx:     pctx,
		backend:  backend,
		env:      env,
		demotion: DefaultDemotionProbability,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.roll == nil {
		g.roll = rand.Float64
	}
	g.logger = common.LoggerOrDefault(g.logger)
	return g
}

// Context returns the shared predictor context.
func (g *Guard) Context() *PredictorContext {
	return g.pctx
}

// Environment returns the environment the guard was built for.
func (g *Guard) Environment() Environment {
	return g.env
}

// Probe reports whether the runtime is usable at all. A failed probe
// disables the context so the runtime is never probed again.
func (g *Guard) Probe(ctx context.Context) bool {
	if !g.pctx.IsEnabled(ctx) {
		return false
	}
	if err := g.safeProbe(); err != nil {
		g.env.logNative(err.Error())
		g.pctx.Disable(ctx, fmt.Sprintf("runtime probe failed: %v", err))
		return false
	}
	if g.env.Native != nil && !g.env.Native.Supported() {
		return false
	}
	return true
}

func (g *Guard) safeProbe() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: probe panicked: %v", common.ErrRuntimeUnavailable, r)
		}
	}()
	if g.backend == nil {
		return fmt.Errorf("%w: no backend", common.ErrRuntimeUnavailable)
	}
	if err := g.backend.Probe(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrRuntimeUnavailable, err)
	}
	return nil
}

// Check returns the verdict for a single forecast call.
func (g *Guard) Check(ctx context.Context) Availability {
	a := Availability{Production: g.env.IsProduction()}

	if !g.Probe(ctx) {
		a.Reason = g.pctx.Reason()
		if a.Reason == "" {
			a.Reason = "runtime not supported by host"
		}
		return a
	}
	a.Available = true

	if g.env.IsLowPower() {
		a.Demoted = true
		a.Reason = "low-power environment"
		if a.Production {
			g.pctx.Disable(ctx, "low-power environment")
		}
		return a
	}

	if a.Production && g.roll() < g.demotion {
		a.Demoted = true
		a.Reason = "random production demotion"
		g.logger.Debug("sequence model demoted for this call", "probability", g.demotion)
	}

	return a
}
