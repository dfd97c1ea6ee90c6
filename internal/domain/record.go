package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Observation is one respondent's report for one zone.
type Observation int

// Unreported marks a zone with no usable report. It never meets a threshold.
const Unreported Observation = math.MinInt

// Reported reports whether the observation holds a real value.
func (o Observation) Reported() bool { return o != Unreported }

// Counts reports whether the observation meets the threshold.
func (o Observation) Counts(threshold int) bool {
	return o.Reported() && int(o) >= threshold
}

// ObservationRow holds one respondent's reports, indexed by zone.
type ObservationRow []Observation

// Records is the outcome of parsing one survey export.
type Records struct {
	Rows      []ObservationRow
	Parsed    int // rows read from the input, valid or not
	Discarded int // rows dropped because the first two fields were not integers
}

// ParseRecords reads a survey export and returns one ObservationRow per valid
// row, each with exactly segments observations. Rows whose first two fields
// do not start with an integer are skipped. A malformed CSV document is an error.
func ParseRecords(r io.Reader, segments int) (Records, error) {
	if segments < 1 {
		return Records{}, fmt.Errorf("parse records: segments must be positive, got %d", segments)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var out Records
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Records{}, fmt.Errorf("parse records: %w", err)
		}
		out.Parsed++

		row, ok := parseRow(fields, segments)
		if !ok {
			out.Discarded++
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// parseRow drops the respondent id and reads the remaining fields as zones.
func parseRow(fields []string, segments int) (ObservationRow, bool) {
	if len(fields) < 2 {
		return nil, false
	}
	if _, ok := parseInt(fields[0]); !ok {
		return nil, false
	}
	if _, ok := parseInt(fields[1]); !ok {
		return nil, false
	}

	zones := fields[1:]
	row := make(ObservationRow, segments)
	for i := range row {
		row[i] = Unreported
		if i >= len(zones) {
			continue
		}
		if v, ok := parseInt(zones[i]); ok {
			row[i] = Observation(v)
		}
	}
	return row, true
}

// parseInt reads an optional sign and the leading base-10 digits of s after
// trimming whitespace and byte order marks, so "2.0" and "2 (worst)" read as 2.
// A field without leading digits is not an integer.
func parseInt(s string) (int, bool) {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil || v == int(Unreported) {
		return 0, false
	}
	return v, true
}
