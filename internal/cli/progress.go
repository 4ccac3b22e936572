package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/the-cash-must-flow/internal/neural"
)

// TrainingProgress draws one progress bar per sequence model fit. A new
// bar starts whenever an epoch-1 report arrives.
type TrainingProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	label  string
	fits   int
	last   neural.EpochStats
	mu     sync.Mutex
}

// NewTrainingProgress creates a progress reporter writing to w.
func NewTrainingProgress(w io.Writer, label string) *TrainingProgress {
	if w == nil {
		w = os.Stderr
	}
	if label == "" {
		label = "Training sequence model"
	}
	return &TrainingProgress{writer: w, label: label}
}

// OnEpoch is the training callback.
func (p *TrainingProgress) OnEpoch(stats neural.EpochStats) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || stats.Epoch == 1 {
		p.finishLocked()
		p.fits++
		p.bar = p.newBar(stats.Epochs)
	}
	p.last = stats

	desc := fmt.Sprintf("[cyan][bold]%s (fit %d)[reset] loss %.4f", p.label, p.fits, stats.Loss)
	if stats.HasValidation {
		desc += fmt.Sprintf(" val %.4f", stats.ValLoss)
	}
	p.bar.Describe(desc)
	if err := p.bar.Set(stats.Epoch); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Fits returns the number of training runs observed.
func (p *TrainingProgress) Fits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fits
}

// Last returns the most recent epoch report.
func (p *TrainingProgress) Last() neural.EpochStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Finish completes the current bar, if any.
func (p *TrainingProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *TrainingProgress) finishLocked() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
	p.bar = nil
}

func (p *TrainingProgress) newBar(epochs int) *progressbar.ProgressBar {
	return progressbar.NewOptions(epochs,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+p.label+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
