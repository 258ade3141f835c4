package metrics

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

const Namespace = "delvectl"

// Recorder collects run outcomes in a private Prometheus registry and writes
// them to a node_exporter textfile when flushed
type Recorder struct {
	path     string
	registry *prometheus.Registry
	log      *slog.Logger

	deploys      *prometheus.CounterVec
	gasUsed      prometheus.Counter
	wireOps      *prometheus.CounterVec
	verification *prometheus.CounterVec
	propagation  *prometheus.CounterVec

	runFailed    *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec
	runTimestamp *prometheus.GaugeVec
}

var _ usecase.MetricsRecorder = (*Recorder)(nil)

// NewRecorder creates a recorder writing to cfg.MetricsFile. An empty path
// keeps metrics in memory only.
func NewRecorder(cfg *config.RuntimeConfig, log *slog.Logger) *Recorder {
	return newRecorder(cfg.MetricsFile, prometheus.NewRegistry(), log)
}

func newRecorder(path string, registry *prometheus.Registry, log *slog.Logger) *Recorder {
	r := &Recorder{
		path:     path,
		registry: registry,
		log:      log.With("component", "Metrics"),

		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deploy_total",
			Help:      "Contracts handled by the deployer, by outcome",
		}, []string{"status"}),
		gasUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deploy_gas_used_total",
			Help:      "Gas used by contract creations",
		}),
		wireOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "wire_total",
			Help:      "Wire ops handled by the wiring engine, by outcome",
		}, []string{"status"}),
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verify_total",
			Help:      "Source verifications, by outcome",
		}, []string{"status"}),
		propagation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "propagate_total",
			Help:      "Propagation targets, by outcome",
		}, []string{"format", "status"}),

		runFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_failed_items",
			Help:      "Failed items of the last run",
		}, []string{"command", "stage"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}, []string{"command"}),
		runTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}, []string{"command"}),
	}

	registry.MustRegister(
		r.deploys, r.gasUsed, r.wireOps, r.verification, r.propagation,
		r.runFailed, r.runDuration, r.runTimestamp,
	)
	return r
}

func (r *Recorder) ObserveDeploy(entry *models.DeployEntry) {
	r.deploys.WithLabelValues(string(entry.Status)).Inc()
	if entry.GasUsed > 0 {
		r.gasUsed.Add(float64(entry.GasUsed))
	}
}

func (r *Recorder) ObserveWire(entry *models.WireEntry) {
	r.wireOps.WithLabelValues(string(entry.Status)).Inc()
}

func (r *Recorder) ObserveVerification(record *models.VerificationRecord) {
	r.verification.WithLabelValues(string(record.Status)).Inc()
}

func (r *Recorder) ObservePropagation(entry *models.PropagationEntry) {
	r.propagation.WithLabelValues(string(entry.Format), string(entry.Status)).Inc()
}

func (r *Recorder) ObserveRun(report *models.RunReport) {
	for _, s := range report.Summary {
		r.runFailed.WithLabelValues(report.Command, s.Stage).Set(float64(s.Failed))
	}
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		r.runDuration.WithLabelValues(report.Command).Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	if !report.FinishedAt.IsZero() {
		r.runTimestamp.WithLabelValues(report.Command).Set(float64(report.FinishedAt.Unix()))
	}
}

// Flush writes the textfile. It is a no-op without a metrics file.
func (r *Recorder) Flush() error {
	if r.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", r.path, err)
	}
	r.log.Debug("metrics written", "path", r.path)
	return nil
}
