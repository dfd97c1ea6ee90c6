package domain

import (
	"math"
	"strconv"
)

// RGB is one opaque color.
type RGB struct {
	R, G, B uint8
}

// String renders the color as SVG functional notation, e.g. "rgb(251,106,74)".
func (c RGB) String() string {
	b := make([]byte, 0, len("rgb(255,255,255)"))
	b = append(b, "rgb("...)
	b = strconv.AppendUint(b, uint64(c.R), 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, uint64(c.G), 10)
	b = append(b, ',')
	b = strconv.AppendUint(b, uint64(c.B), 10)
	b = append(b, ')')
	return string(b)
}

// Palette is an ordered list of color stops, lightest first.
type Palette []RGB

// Reversed returns a new palette with the stops in the opposite order.
func (p Palette) Reversed() Palette {
	out := make(Palette, len(p))
	for i, c := range p {
		out[len(p)-1-i] = c
	}
	return out
}

// At interpolates the palette at distance d in [0,1]. Out-of-range distances
// are clamped to the end stops.
func (p Palette) At(d float64) RGB {
	if len(p) == 0 {
		return RGB{}
	}
	if len(p) == 1 || math.IsNaN(d) || d <= 0 {
		return p[0]
	}
	if d >= 1 {
		return p[len(p)-1]
	}

	pos := d * float64(len(p)-1)
	lo := math.Floor(pos)
	from := p[int(lo)]
	to := p[int(math.Ceil(pos))]
	frac := pos - lo

	return RGB{
		R: lerpChannel(from.R, to.R, frac),
		G: lerpChannel(from.G, to.G, frac),
		B: lerpChannel(from.B, to.B, frac),
	}
}

// lerpChannel rounds half up, matching how report charts have always been colored.
func lerpChannel(from, to uint8, frac float64) uint8 {
	v := float64(from) + frac*(float64(to)-float64(from))
	return uint8(math.Floor(v + 0.5))
}

// Fill is the paint for one zone: either transparent or a solid color.
type Fill struct {
	Transparent bool
	Color       RGB
}

// Attr renders the fill as an SVG attribute.
func (f Fill) Attr() string {
	if f.Transparent {
		return `fill-opacity="0"`
	}
	return `fill="` + f.Color.String() + `"`
}

// ColorFor maps a zone tally to its fill. Zero tallies are transparent
// regardless of max. With max <= 1 every non-zero tally gets the lightest stop.
func ColorFor(p Palette, tally, max int) Fill {
	if tally <= 0 {
		return Fill{Transparent: true}
	}
	distance := 0.0
	if max > 1 {
		distance = float64(tally-1) / float64(max-1)
	}
	return Fill{Color: p.At(distance)}
}
