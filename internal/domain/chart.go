package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Survey is one parsed survey export.
type Survey struct {
	Name    string
	Digest  string // hex SHA-256 of the raw export
	Records Records
}

// NewSurvey parses a raw export into a Survey.
func NewSurvey(name string, data []byte, segments int) (Survey, error) {
	records, err := ParseRecords(bytes.NewReader(data), segments)
	if err != nil {
		return Survey{}, err
	}
	sum := sha256.Sum256(data)
	return Survey{
		Name:    name,
		Digest:  hex.EncodeToString(sum[:]),
		Records: records,
	}, nil
}

// Chart is one filled chart: a survey tallied under one variant.
type Chart struct {
	ID         string
	Survey     string
	Variant    Variant
	Tally      TallyVector
	Max        int
	Rows       int // respondents counted toward the tally
	SVG        string
	RenderedAt time.Time
}

// ZoneTally pairs a zone with its tally.
type ZoneTally struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Tally int    `json:"tally"`
}

// Zones lists every zone with its name and tally.
func (c Chart) Zones() []ZoneTally {
	out := make([]ZoneTally, len(c.Tally))
	for i, n := range c.Tally {
		out[i] = ZoneTally{Index: i, Name: ZoneName(i), Tally: n}
	}
	return out
}

// TallySurvey tallies a survey under a variant without filling a template.
// The returned Chart has no SVG.
func TallySurvey(s Survey, v Variant, segments int) (Chart, error) {
	tally, err := Tally(s.Records.Rows, segments, v.Threshold)
	if err != nil {
		return Chart{}, fmt.Errorf("tally %s/%s: %w", s.Name, v.Name, err)
	}
	return Chart{
		ID:         generateID(s.Name, s.Digest, v),
		Survey:     s.Name,
		Variant:    v,
		Tally:      tally,
		Max:        tally.Max(),
		Rows:       len(s.Records.Rows),
		RenderedAt: clock.Now(),
	}, nil
}

// RenderChart tallies a survey under a variant and fills the template.
// The template is not modified, so one template can serve any number of
// concurrent renders.
func RenderChart(s Survey, v Variant, tmpl *Template, imageBase64 string) (Chart, error) {
	chart, err := TallySurvey(s, v, tmpl.Layout().Segments)
	if err != nil {
		return Chart{}, fmt.Errorf("render chart: %w", err)
	}

	chart.SVG, err = tmpl.Fill(chart.Tally, imageBase64)
	if err != nil {
		return Chart{}, fmt.Errorf("render chart %s/%s: %w", s.Name, v.Name, err)
	}
	return chart, nil
}

// generateID derives a chart ID from its inputs, so re-rendering the same
// export under the same variant yields the same ID.
func generateID(survey, digest string, v Variant) string {
	input := fmt.Sprintf("%s|%s|%s|%d", survey, digest, v.Name, v.Threshold)
	hash := sha256.Sum256([]byte(input))
	return v.Name + "-" + hex.EncodeToString(hash[:8])
}
