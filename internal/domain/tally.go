package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidThreshold is returned for thresholds below 1.
	ErrInvalidThreshold = errors.New("threshold must be at least 1")
	// ErrUnknownVariant is returned by ParseVariant for unrecognized names.
	ErrUnknownVariant = errors.New("unknown variant")
)

// Variant is a named tally pass.
type Variant struct {
	Name      string
	Threshold int
}

var (
	// VariantAny counts every reported pain.
	VariantAny = Variant{Name: "any", Threshold: 1}
	// VariantWorst counts only worst-pain reports.
	VariantWorst = Variant{Name: "worst", Threshold: 2}
)

// Variants lists the built-in variants in output order.
func Variants() []Variant {
	return []Variant{VariantAny, VariantWorst}
}

// ParseVariant looks up a built-in variant by name. "all" and "extreme" are
// accepted as aliases used by older scripts.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "any", "all":
		return VariantAny, nil
	case "worst", "extreme":
		return VariantWorst, nil
	default:
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// ParseVariants parses a comma-separated variant list, dropping duplicates.
func ParseVariants(list string) ([]Variant, error) {
	var out []Variant
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		v, err := ParseVariant(name)
		if err != nil {
			return nil, err
		}
		if seen[v.Name] {
			continue
		}
		seen[v.Name] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty variant list", ErrUnknownVariant)
	}
	return out, nil
}

// TallyVector counts, per zone, the rows whose observation met a threshold.
type TallyVector []int

// Max returns the largest zone tally, or 0 for an empty or all-zero vector.
func (v TallyVector) Max() int {
	m := 0
	for _, n := range v {
		if n > m {
			m = n
		}
	}
	return m
}

// Tally counts, for each of segments zones, how many rows report at least
// threshold. Rows are not modified and their order does not matter.
func Tally(rows []ObservationRow, segments, threshold int) (TallyVector, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("tally: %w, got %d", ErrInvalidThreshold, threshold)
	}
	if segments < 1 {
		return nil, fmt.Errorf("tally: segments must be positive, got %d", segments)
	}

	out := make(TallyVector, segments)
	for _, row := range rows {
		n := min(len(row), segments)
		for i := 0; i < n; i++ {
			if row[i].Counts(threshold) {
				out[i]++
			}
		}
	}
	return out, nil
}
