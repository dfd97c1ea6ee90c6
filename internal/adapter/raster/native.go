package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// Native rasterizes in process with oksvg. oksvg does not draw <image> or
// <text> elements, so the backdrop is composited here and the legend labels
// are absent from the output.
type Native struct {
	backdrop image.Image
	width    int
}

// NewNative creates a Native rasterizer. backdrop is the PNG drawn under the
// chart and may be nil. width scales the output, keeping the aspect ratio;
// zero keeps the template's own size.
func NewNative(backdrop []byte, width int) (*Native, error) {
	n := &Native{width: width}
	if len(backdrop) > 0 {
		img, err := png.Decode(bytes.NewReader(backdrop))
		if err != nil {
			return nil, fmt.Errorf("decode backdrop: %w", err)
		}
		n.backdrop = img
	}
	return n, nil
}

// Rasterize implements domain.Rasterizer.
func (n *Native) Rasterize(ctx context.Context, svg string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	w, h := int(math.Ceil(icon.ViewBox.W)), int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("parse svg: empty viewBox %vx%v", icon.ViewBox.W, icon.ViewBox.H)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if n.backdrop != nil {
		draw.CatmullRom.Scale(img, img.Bounds(), n.backdrop, n.backdrop.Bounds(), draw.Over, nil)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	var out image.Image = img
	if n.width > 0 && n.width != w {
		sh := int(math.Round(float64(h) * float64(n.width) / float64(w)))
		scaled := image.NewRGBA(image.Rect(0, 0, n.width, max(sh, 1)))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// CheckReadiness always succeeds; Native has no external dependencies.
func (n *Native) CheckReadiness(_ context.Context) error { return nil }
