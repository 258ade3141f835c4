package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

const reportTimeLayout = "20060102T150405Z"

// ReportStoreAdapter writes run reports as JSON files under the reports
// directory. Files are created exclusively and never overwritten.
type ReportStoreAdapter struct {
	fs  afero.Fs
	dir string
	log *slog.Logger
}

// NewReportStoreAdapter creates a report store rooted at cfg.ReportsDir
func NewReportStoreAdapter(fs afero.Fs, cfg *config.RuntimeConfig, log *slog.Logger) *ReportStoreAdapter {
	return &ReportStoreAdapter{
		fs:  fs,
		dir: cfg.ReportsDir,
		log: log.With("component", "ReportStore"),
	}
}

// Save implements usecase.ReportStore
func (s *ReportStoreAdapter) Save(ctx context.Context, report *models.RunReport) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, reportFileName(report))
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) || errors.Is(err, afero.ErrFileExists) {
			return "", fmt.Errorf("%w: %s", domain.ErrReportExists, path)
		}
		return "", fmt.Errorf("failed to create run report: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close run report: %w", err)
	}

	s.log.Debug("run report saved", "path", path)
	return path, nil
}

// Load implements usecase.ReportStore
func (s *ReportStoreAdapter) Load(ctx context.Context, path string) (*models.RunReport, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}
	var report models.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse run report %s: %w", path, err)
	}
	report.Path = path
	return &report, nil
}

func reportFileName(report *models.RunReport) string {
	id := strings.ReplaceAll(report.RunID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "local"
	}
	return fmt.Sprintf("run-%s-%s.json", report.StartedAt.UTC().Format(reportTimeLayout), id)
}

var _ usecase.ReportStore = (*ReportStoreAdapter)(nil)
