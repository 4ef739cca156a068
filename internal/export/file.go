package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/plan"
	apperrors "github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/metrics"
)

// FileSink stores schedules as <dir>/<pattern formatted with days>. An
// existing file for the same day count is replaced.
type FileSink struct {
	dir     string
	pattern string
	lang    string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFileSink creates a sink. m may be nil.
func NewFileSink(dir, pattern, lang string, m *metrics.Metrics) *FileSink {
	return &FileSink{
		dir:     dir,
		pattern: pattern,
		lang:    lang,
		metrics: m,
		logger:  slog.Default().With("component", "file-sink"),
	}
}

// Path returns where the schedule for days is stored.
func (s *FileSink) Path(days int) string {
	return filepath.Join(s.dir, FileName(s.pattern, days))
}

func (s *FileSink) Emit(ctx context.Context, p plan.Partition, days int) (Artifact, error) {
	art, err := s.emit(ctx, p, days)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.ExportsTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		s.logger.Error("schedule export failed", "days", days, "error", err)
		return Artifact{}, fmt.Errorf("%w: %w", apperrors.ErrExportFailed, err)
	}
	s.logger.Info("schedule written", "path", art.Path, "rows", art.Rows, "bytes", art.Bytes)
	return art, nil
}

func (s *FileSink) emit(ctx context.Context, p plan.Partition, days int) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating result directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".schedule-*.csv")
	if err != nil {
		return Artifact{}, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, p, s.lang); err != nil {
		tmp.Close()
		return Artifact{}, fmt.Errorf("writing csv: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return Artifact{}, err
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, err
	}
	path := s.Path(days)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Artifact{}, fmt.Errorf("moving schedule into place: %w", err)
	}
	return Artifact{
		Name:  filepath.Base(path),
		Path:  path,
		Rows:  len(p),
		Bytes: info.Size(),
	}, nil
}
