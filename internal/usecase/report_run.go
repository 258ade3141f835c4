package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
)

// ReportRun aggregates stage reports into the persisted run report
type ReportRun struct {
	store   ReportStore
	metrics MetricsRecorder
	log     *slog.Logger
	now     func() time.Time
}

// NewReportRun creates a new run reporter
func NewReportRun(store ReportStore, metrics MetricsRecorder, log *slog.Logger) *ReportRun {
	return &ReportRun{
		store:   store,
		metrics: metrics,
		log:     log.With("component", "Reporter"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start creates an empty report for a command
func (r *ReportRun) Start(command string, manifest *models.Manifest) *models.RunReport {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		Command:   command,
		StartedAt: r.now(),
	}
	if manifest != nil {
		report.Manifest = manifest.Path
		report.ManifestName = manifest.Name
		report.ChainID = manifest.ChainID
	}
	return report
}

// Finish computes the summary, persists the report and flushes metrics.
// The returned report carries the path it was written to.
func (r *ReportRun) Finish(ctx context.Context, report *models.RunReport) (*models.RunReport, error) {
	report.FinishedAt = r.now()
	report.Summary = Summarize(report)

	path, err := r.store.Save(ctx, report)
	if err != nil {
		return report, fmt.Errorf("failed to save run report: %w", err)
	}
	report.Path = path

	r.metrics.ObserveRun(report)
	if err := r.metrics.Flush(); err != nil {
		r.log.Warn("failed to write metrics", "error", err)
	}

	r.log.Info("run report written", "path", path, "run_id", report.RunID, "failed", report.FailedCount())
	return report, nil
}

// Load reads a previous run report (for --resume-from)
func (r *ReportRun) Load(ctx context.Context, path string) (*models.RunReport, error) {
	return r.store.Load(ctx, path)
}

// Summarize counts succeeded, skipped and failed items per stage. Blocked
// deployments count as failed; already-verified contracts count as skipped.
func Summarize(report *models.RunReport) []models.StageSummary {
	var summary []models.StageSummary

	if report.Deploy != nil {
		s := models.StageSummary{Stage: models.StageDeploy}
		for _, e := range report.Deploy.Entries {
			switch e.Status {
			case models.DeployStatusDeployed:
				s.Succeeded++
			case models.DeployStatusSkipped:
				s.Skipped++
			default:
				s.Failed++
			}
		}
		summary = append(summary, s)
	}

	if report.Wire != nil {
		s := models.StageSummary{Stage: models.StageWire}
		for _, e := range report.Wire.Entries {
			switch e.Status {
			case models.WireStatusSucceeded:
				s.Succeeded++
			case models.WireStatusSkippedAlreadySet:
				s.Skipped++
			default:
				s.Failed++
			}
		}
		summary = append(summary, s)
	}

	if report.Verification != nil {
		s := models.StageSummary{Stage: models.StageVerify}
		for _, rec := range report.Verification {
			switch rec.Status {
			case models.VerificationStatusVerified:
				s.Succeeded++
			case models.VerificationStatusAlreadyVerified, models.VerificationStatusSkipped:
				s.Skipped++
			default:
				s.Failed++
			}
		}
		summary = append(summary, s)
	}

	if report.Propagation != nil {
		s := models.StageSummary{Stage: models.StagePropagation}
		for _, e := range report.Propagation.Entries {
			switch e.Status {
			case models.PropagationStatusWritten:
				s.Succeeded++
			case models.PropagationStatusUnchanged:
				s.Skipped++
			default:
				s.Failed++
			}
		}
		summary = append(summary, s)
	}

	return summary
}
