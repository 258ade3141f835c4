package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/registry"
)

// PropagateConfig renders the final address set into downstream config files
type PropagateConfig struct {
	files      ConfigFileStore
	formatters map[models.PropagationFormat]ConfigFormatter
	progress   ProgressSink
	metrics    MetricsRecorder
	log        *slog.Logger
}

// NewPropagateConfig creates a new propagation use case
func NewPropagateConfig(files ConfigFileStore, formatters []ConfigFormatter, progress ProgressSink, metrics MetricsRecorder, log *slog.Logger) *PropagateConfig {
	byFormat := make(map[models.PropagationFormat]ConfigFormatter, len(formatters))
	for _, f := range formatters {
		byFormat[f.Format()] = f
	}
	return &PropagateConfig{
		files:      files,
		formatters: byFormat,
		progress:   progress,
		metrics:    metrics,
		log:        log.With("component", "Propagator"),
	}
}

// Propagate merges the registry addresses into every target. Each target
// is replaced atomically; content that would not change is left untouched.
func (p *PropagateConfig) Propagate(ctx context.Context, reg *registry.Registry) *models.PropagationReport {
	targets := reg.Targets()
	report := &models.PropagationReport{Entries: make([]*models.PropagationEntry, 0, len(targets))}
	addresses := reg.Addresses()

	for i, target := range targets {
		p.progress.OnProgress(ctx, ProgressEvent{
			Stage:   models.StagePropagation,
			Current: i + 1,
			Total:   len(targets),
			Message: target.FilePath,
		})

		values := make([]PropagatedValue, 0, len(addresses))
		for _, a := range addresses {
			if !target.Includes(a.Name) {
				continue
			}
			values = append(values, PropagatedValue{
				Contract: a.Name,
				Key:      target.KeyFor(a.Name),
				Address:  a.Address,
				Block:    a.Block,
			})
		}

		entry := p.propagateOne(target, values)
		p.metrics.ObservePropagation(entry)
		report.Entries = append(report.Entries, entry)
	}
	return report
}

func (p *PropagateConfig) propagateOne(target *models.PropagationTarget, values []PropagatedValue) *models.PropagationEntry {
	entry := &models.PropagationEntry{FilePath: target.FilePath, Format: target.Format}

	fail := func(err error) *models.PropagationEntry {
		entry.Status = models.PropagationStatusFailed
		entry.Error = err.Error()
		p.log.Error("propagation failed", "file", target.FilePath, "error", err)
		p.progress.Error(fmt.Sprintf("%s: %v", target.FilePath, err))
		return entry
	}

	formatter, ok := p.formatters[target.Format]
	if !ok {
		return fail(fmt.Errorf("no writer for format %q", target.Format))
	}

	existing, exists, err := p.files.Read(target.FilePath)
	if err != nil {
		return fail(err)
	}

	merged, err := formatter.Merge(existing, target, values)
	if err != nil {
		return fail(err)
	}
	entry.KeysUpdated = merged.Updated
	entry.KeysRemoved = merged.Removed

	if exists && bytes.Equal(existing, merged.Content) {
		entry.Status = models.PropagationStatusUnchanged
		p.log.Debug("config unchanged", "file", target.FilePath)
		return entry
	}

	if err := p.files.WriteAtomic(target.FilePath, merged.Content); err != nil {
		return fail(err)
	}
	entry.Status = models.PropagationStatusWritten
	p.log.Info("config written", "file", target.FilePath, "keys", len(merged.Updated))
	p.progress.Info(fmt.Sprintf("%s updated (%d keys)", target.FilePath, len(merged.Updated)))
	return entry
}
