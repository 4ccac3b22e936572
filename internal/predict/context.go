// Package predict forecasts daily amounts, choosing between a trained
// sequence model and a trend-adjusted moving average.
package predict

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/the-cash-must-flow/internal/common"
	"github.com/Veraticus/the-cash-must-flow/internal/service"
)

// FlagFeatureEnabled is the persisted key mirroring the sequence model verdict.
const FlagFeatureEnabled = "ai_feature_enabled"

// PredictorContext remembers whether the sequence model may be used.
// Once disabled it stays disabled until Enable is called explicitly.
// It is safe for concurrent use.
type PredictorContext struct {
	store    service.FlagStore
	logger   *slog.Logger
	reason   atomic.Value
	loadOnce sync.Once
	disabled atomic.Bool
}

// NewPredictorContext creates an enabled context. store may be nil, in which
// case the verdict lives only as long as the process.
func NewPredictorContext(store service.FlagStore, logger *slog.Logger) *PredictorContext {
	return &PredictorContext{
		store:  store,
		logger: common.LoggerOrDefault(logger),
	}
}

// load reads the persisted verdict once. An explicit false disables the context.
func (p *PredictorContext) load(ctx context.Context) {
	p.loadOnce.Do(func() {
		if p.store == nil {
			return
		}
		enabled, ok, err := p.store.GetFlag(ctx, FlagFeatureEnabled)
		if err != nil {
			p.logger.Warn("failed to read persisted sequence model flag", "error", err)
			return
		}
		if ok && !enabled {
			p.reason.Store("disabled by stored setting")
			p.disabled.Store(true)
			p.logger.Debug("sequence model disabled by stored setting")
		}
	})
}

// IsEnabled reports whether the sequence model may be attempted.
func (p *PredictorContext) IsEnabled(ctx context.Context) bool {
	p.load(ctx)
	return !p.disabled.Load()
}

// Reason returns why the context was disabled, or "".
func (p *PredictorContext) Reason() string {
	if r, ok := p.reason.Load().(string); ok {
		return r
	}
	return ""
}

// Disable turns the sequence model off and mirrors the verdict to the store.
func (p *PredictorContext) Disable(ctx context.Context, reason string) {
	p.load(ctx)
	if p.disabled.Swap(true) {
		return
	}
	p.reason.Store(reason)
	p.logger.Warn("sequence model disabled", "reason", reason)

	if p.store == nil {
		return
	}
	if err := p.store.SetFlag(ctx, FlagFeatureEnabled, false); err != nil {
		p.logger.Warn("failed to persist sequence model flag", "error", err)
	}
}

// Enable clears both the in-memory and the persisted verdict.
func (p *PredictorContext) Enable(ctx context.Context) error {
	p.load(ctx)
	p.disabled.Store(false)
	p.reason.Store("")
	if p.store == nil {
		return nil
	}
	return p.store.DeleteFlag(ctx, FlagFeatureEnabled)
}
