// Package fs reads survey exports from files and writes rendered charts to files.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/pipeline"
)

// ErrOutputAmbiguous is returned when an explicit output path is given for a
// run that would produce more than one chart.
var ErrOutputAmbiguous = errors.New("an explicit output path requires a single input and a single variant")

// Source implements pipeline.BatchExtractor over a fixed list of input files.
type Source struct {
	inputs   []string
	variants []domain.Variant
	format   string
	output   string
	next     int
	skipped  int
}

// NewSource creates a Source. Each input renders every variant into
// "<dir>/<base>.<variant>.<format>" next to the input, where base is the file
// name without a ".csv" suffix. A non-empty output replaces that path and is
// only accepted for one input rendering one variant.
func NewSource(inputs []string, variants []domain.Variant, format, output string) (*Source, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no input files")
	}
	if len(variants) == 0 {
		return nil, errors.New("no variants")
	}
	if output != "" && (len(inputs) != 1 || len(variants) != 1) {
		return nil, ErrOutputAmbiguous
	}
	return &Source{
		inputs:   inputs,
		variants: variants,
		format:   format,
		output:   output,
	}, nil
}

// ExtractBatch reads up to batchSize input files. It returns
// pipeline.ErrSourceExhausted together with the final batch. An unreadable
// file is reported once and then skipped.
func (s *Source) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawSurvey, error) {
	batch := make([]domain.RawSurvey, 0, batchSize)
	for len(batch) < batchSize && s.next < len(s.inputs) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := s.inputs[s.next]
		data, err := os.ReadFile(path)
		if err != nil {
			if len(batch) > 0 {
				// Hand over what was read; the next call reports the failure.
				return batch, nil
			}
			s.next++
			s.skipped++
			return nil, fmt.Errorf("read survey: %w", err)
		}
		s.next++

		batch = append(batch, domain.RawSurvey{
			Name:         surveyName(path),
			Data:         data,
			Variants:     s.variants,
			Destinations: s.destinations(path),
		})
	}

	if s.next >= len(s.inputs) {
		return batch, pipeline.ErrSourceExhausted
	}
	return batch, nil
}

// Skipped returns the number of inputs that could not be read.
func (s *Source) Skipped() int { return s.skipped }

func (s *Source) destinations(input string) map[string]string {
	out := make(map[string]string, len(s.variants))
	if s.output != "" {
		out[s.variants[0].Name] = s.output
		return out
	}
	dir := filepath.Dir(input)
	base := surveyName(input)
	for _, v := range s.variants {
		out[v.Name] = filepath.Join(dir, base+"."+v.Name+"."+s.format)
	}
	return out
}

func surveyName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".csv")
}
