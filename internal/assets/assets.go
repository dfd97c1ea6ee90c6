// Package assets embeds the default chart template and body backdrop.
package assets

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/couchcryptid/body-chart/internal/domain"
)

//go:embed chart.svg
var chartSVG string

//go:embed body.png
var bodyPNG []byte

// ChartTemplate returns the raw embedded chart template.
func ChartTemplate() string { return chartSVG }

// BodyImage returns the embedded backdrop PNG.
func BodyImage() []byte {
	return append([]byte(nil), bodyPNG...)
}

// Bundle is a parsed template with the backdrop it is drawn over.
type Bundle struct {
	Template    *domain.Template
	Image       []byte
	ImageBase64 string
}

// Load parses the embedded template against layout. When templatePath or
// imagePath are set, those files replace the embedded assets.
func Load(layout domain.Layout, templatePath, imagePath string) (*Bundle, error) {
	text := chartSVG
	if templatePath != "" {
		b, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("read chart template: %w", err)
		}
		text = string(b)
	}

	img := BodyImage()
	if imagePath != "" {
		b, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("read body image: %w", err)
		}
		img = b
	}

	tmpl, err := domain.ParseTemplate(text, layout)
	if err != nil {
		return nil, fmt.Errorf("load chart template: %w", err)
	}

	return &Bundle{
		Template:    tmpl,
		Image:       img,
		ImageBase64: base64.StdEncoding.EncodeToString(img),
	}, nil
}
