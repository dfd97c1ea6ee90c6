package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/body-chart/internal/domain"
)

// Sink implements pipeline.BatchLoader by writing each chart to its destination.
type Sink struct {
	logger *slog.Logger
}

// NewSink creates a Sink.
func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// LoadBatch writes every chart, replacing existing files. Each file is written
// to a temporary name first and renamed into place.
func (s *Sink) LoadBatch(ctx context.Context, charts []domain.RenderedChart) error {
	for _, c := range charts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Destination == "" {
			return fmt.Errorf("write chart %s: no destination", c.Chart.ID)
		}
		if err := writeFile(c.Destination, c.Data); err != nil {
			return fmt.Errorf("write chart %s: %w", c.Chart.ID, err)
		}
		s.logger.Info("chart written",
			"survey", c.Chart.Survey,
			"variant", c.Chart.Variant.Name,
			"path", c.Destination,
			"max", c.Chart.Max,
		)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
