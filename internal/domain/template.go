package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTemplateContract is returned when a template does not have the line
// structure a Layout expects.
var ErrTemplateContract = errors.New("template contract violated")

// Template is a parsed chart template. It is read-only after parsing; every
// fill works on a copy of its lines.
type Template struct {
	layout  Layout
	lines   []string
	imageAt int
	gradAt  int
	maxAt   int
}

// ParseTemplate splits text into lines and checks it against the layout:
// each zone line holds exactly one fill placeholder, and the image, gradient
// and max placeholders each appear exactly once outside the zone lines.
func ParseTemplate(text string, layout Layout) (*Template, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	lines := strings.Split(text, "\n")
	first, last := layout.SVGOffset, layout.SVGOffset+layout.Segments
	if len(lines) < last {
		return nil, fmt.Errorf("%w: %d lines, need at least %d", ErrTemplateContract, len(lines), last)
	}

	t := &Template{layout: layout, lines: lines, imageAt: -1, gradAt: -1, maxAt: -1}
	ph := layout.Placeholders
	for i, line := range lines {
		fills := strings.Count(line, ph.Fill)
		if i >= first && i < last {
			if fills != 1 {
				return nil, fmt.Errorf("%w: zone %d (line %d) has %d fill placeholders, want 1",
					ErrTemplateContract, i-first, i+1, fills)
			}
		} else if fills != 0 {
			return nil, fmt.Errorf("%w: line %d has a fill placeholder outside the zone lines",
				ErrTemplateContract, i+1)
		}

		for _, m := range []struct {
			marker string
			at     *int
		}{
			{ph.Image, &t.imageAt},
			{ph.Gradient, &t.gradAt},
			{ph.Max, &t.maxAt},
		} {
			n := strings.Count(line, m.marker)
			if n == 0 {
				continue
			}
			if n > 1 || *m.at >= 0 {
				return nil, fmt.Errorf("%w: %s appears more than once (line %d)", ErrTemplateContract, m.marker, i+1)
			}
			if i >= first && i < last {
				return nil, fmt.Errorf("%w: %s on zone line %d", ErrTemplateContract, m.marker, i+1)
			}
			*m.at = i
		}
	}

	for marker, at := range map[string]int{ph.Image: t.imageAt, ph.Gradient: t.gradAt, ph.Max: t.maxAt} {
		if at < 0 {
			return nil, fmt.Errorf("%w: missing %s", ErrTemplateContract, marker)
		}
	}
	return t, nil
}

// Layout returns the layout the template was parsed against.
func (t *Template) Layout() Layout { return t.layout }

// Lines returns a copy of the template lines.
func (t *Template) Lines() []string {
	return append([]string(nil), t.lines...)
}

// PaintZones returns a copy of the template lines with every zone's fill
// placeholder replaced by its color. Only zone lines differ from the template.
func (t *Template) PaintZones(tally TallyVector) ([]string, error) {
	if len(tally) != t.layout.Segments {
		return nil, fmt.Errorf("paint zones: tally has %d zones, layout has %d", len(tally), t.layout.Segments)
	}

	lines := t.Lines()
	max := tally.Max()
	for i, n := range tally {
		at := t.layout.SVGOffset + i
		fill := ColorFor(t.layout.Palette, n, max)
		lines[at] = strings.Replace(lines[at], t.layout.Placeholders.Fill, fill.Attr(), 1)
	}
	return lines, nil
}

// Fill produces the complete chart document for a tally: painted zones, the
// body backdrop, the legend gradient and the legend max label.
func (t *Template) Fill(tally TallyVector, imageBase64 string) (string, error) {
	lines, err := t.PaintZones(tally)
	if err != nil {
		return "", err
	}

	ph := t.layout.Placeholders
	lines[t.imageAt] = strings.Replace(lines[t.imageAt], ph.Image, imageBase64, 1)
	lines[t.gradAt] = strings.Replace(lines[t.gradAt], ph.Gradient, GradientStops(t.layout.Palette, t.layout.StopOpacity), 1)
	lines[t.maxAt] = strings.Replace(lines[t.maxAt], ph.Max, strconv.Itoa(tally.Max()), 1)
	return strings.Join(lines, "\n"), nil
}

// GradientStops renders the legend stops, darkest first, evenly spaced from 0% to 100%.
func GradientStops(p Palette, opacity float64) string {
	rev := p.Reversed()
	stops := make([]string, len(rev))
	for i, c := range rev {
		offset := 0.0
		if len(rev) > 1 {
			offset = 100 * float64(i) / float64(len(rev)-1)
		}
		stops[i] = fmt.Sprintf(`      <stop offset="%s%%" stop-color="%s" stop-opacity="%s" />`,
			strconv.FormatFloat(offset, 'f', -1, 64), c, strconv.FormatFloat(opacity, 'f', -1, 64))
	}
	return strings.Join(stops, "\n")
}
