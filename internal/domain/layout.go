package domain

import (
	"errors"
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultSegments is the number of anatomical zones on the chart.
	DefaultSegments = 82
	// DefaultSVGOffset is the template line holding zone 0.
	DefaultSVGOffset = 4
	// DefaultStopOpacity is the opacity of each legend gradient stop.
	DefaultStopOpacity = 0.8
)

// DefaultPaletteHex runs from lightest (tally 1) to darkest (max tally).
var DefaultPaletteHex = []string{"#fee5d9", "#fcae91", "#fb6a4a", "#de2d26", "#a50f15"}

// Placeholders are the markers a chart template must carry.
type Placeholders struct {
	Fill     string // one per zone line
	Image    string // base64 body backdrop
	Gradient string // legend gradient stops
	Max      string // legend max label
}

// Layout fixes the shape of the chart: zone count, where the zones start in
// the template, the color palette and the template markers. A Layout is a
// value; copies never share palette storage with the caller.
type Layout struct {
	Segments     int
	SVGOffset    int
	Palette      Palette
	StopOpacity  float64
	Placeholders Placeholders
}

// DefaultLayout returns the layout matching the embedded chart template.
func DefaultLayout() Layout {
	return Layout{
		Segments:    DefaultSegments,
		SVGOffset:   DefaultSVGOffset,
		Palette:     defaultPalette(),
		StopOpacity: DefaultStopOpacity,
		Placeholders: Placeholders{
			Fill:     `fill=""`,
			Image:    "$IMAGE_DATA",
			Gradient: "$GRADIENT",
			Max:      "$MAX",
		},
	}
}

// WithPalette returns a copy of l using p.
func (l Layout) WithPalette(p Palette) Layout {
	l.Palette = append(Palette(nil), p...)
	return l
}

// Validate reports the first structural problem with the layout.
func (l Layout) Validate() error {
	if l.Segments < 1 {
		return fmt.Errorf("layout: segments must be positive, got %d", l.Segments)
	}
	if l.SVGOffset < 0 {
		return fmt.Errorf("layout: svg offset must not be negative, got %d", l.SVGOffset)
	}
	if len(l.Palette) < 2 {
		return fmt.Errorf("layout: palette needs at least 2 stops, got %d", len(l.Palette))
	}
	p := l.Placeholders
	if p.Fill == "" || p.Image == "" || p.Gradient == "" || p.Max == "" {
		return errors.New("layout: placeholders must not be empty")
	}
	return nil
}

// ParsePalette parses hex colors ("#fee5d9" or "#fed") into palette stops, in order.
func ParsePalette(hexes []string) (Palette, error) {
	p := make(Palette, 0, len(hexes))
	for _, h := range hexes {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("parse palette stop %q: %w", h, err)
		}
		r, g, b := c.RGB255()
		p = append(p, RGB{R: r, G: g, B: b})
	}
	if len(p) < 2 {
		return nil, fmt.Errorf("parse palette: need at least 2 stops, got %d", len(p))
	}
	return p, nil
}

func defaultPalette() Palette {
	p, err := ParsePalette(DefaultPaletteHex)
	if err != nil {
		panic(err)
	}
	return p
}
