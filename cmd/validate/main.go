// Command validate checks a chart template, a survey export and an optional
// expected-tallies fixture against each other before they are used in
// production. It runs the same parsing and filling code as the pipeline.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -survey data/mock/survey.csv \
//	  -expected data/mock/survey.expected.json \
//	  -template custom/chart.svg
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/body-chart/internal/assets"
	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/lucasb-eyer/go-colorful"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// expectedFixture mirrors the file written by genmock.
type expectedFixture struct {
	Rows      int `json:"rows"`
	Parsed    int `json:"parsed"`
	Discarded int `json:"discarded"`
	Variants  []struct {
		Variant string `json:"variant"`
		Max     int    `json:"max"`
		Tally   []int  `json:"tally"`
	} `json:"variants"`
}

type inputs struct {
	surveyPath   string
	expectedPath string
	templatePath string
	imagePath    string
	palette      string
}

func main() {
	var in inputs
	flag.StringVar(&in.surveyPath, "survey", "", "survey CSV to validate")
	flag.StringVar(&in.expectedPath, "expected", "", "expected tallies JSON (optional)")
	flag.StringVar(&in.templatePath, "template", "", "chart template (default: embedded)")
	flag.StringVar(&in.imagePath, "image", "", "backdrop PNG (default: embedded)")
	flag.StringVar(&in.palette, "palette", strings.Join(domain.DefaultPaletteHex, ","), "comma-separated hex palette")
	flag.Parse()

	if in.surveyPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, in))
}

func run(w io.Writer, in inputs) int {
	fmt.Fprintln(w, "=== Body Chart Validation ===")
	fmt.Fprintln(w)

	data, err := os.ReadFile(in.surveyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load survey: %v\n", err)
		return 1
	}

	var expected *expectedFixture
	if in.expectedPath != "" {
		expected, err = loadExpected(in.expectedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load expected tallies: %v\n", err)
			return 1
		}
	}

	layoutPhase, layout := validateLayout(in.palette)
	templatePhase, bundle := validateTemplate(layout, in.templatePath, in.imagePath)
	surveyPhase, survey := validateSurvey(data, layout)

	phases := []*phase{layoutPhase, templatePhase, surveyPhase}
	if bundle != nil && survey != nil {
		phases = append(phases, validateRender(bundle, *survey))
		if expected != nil {
			phases = append(phases, validateExpected(*expected, *survey, layout))
		}
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	if survey != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Rows: %d parsed, %d valid, %d discarded\n",
			survey.Records.Parsed, len(survey.Records.Rows), survey.Records.Discarded)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func validateLayout(palette string) (*phase, domain.Layout) {
	p := &phase{name: "Phase 1: Layout (palette)"}
	layout := domain.DefaultLayout()

	hexes := strings.Split(palette, ",")
	pal, err := domain.ParsePalette(hexes)
	if err != nil {
		p.errorf("%v", err)
		return p, layout
	}
	layout = layout.WithPalette(pal)
	if err := layout.Validate(); err != nil {
		p.errorf("%v", err)
	}

	// Stops should darken monotonically so higher tallies read as worse.
	for i := 1; i < len(hexes); i++ {
		prev, _ := colorful.Hex(strings.TrimSpace(hexes[i-1]))
		cur, _ := colorful.Hex(strings.TrimSpace(hexes[i]))
		l0, _, _ := prev.Lab()
		l1, _, _ := cur.Lab()
		if l1 > l0 {
			p.errorf("palette stop %d (%s) is lighter than stop %d", i, hexes[i], i-1)
		}
	}
	return p, layout
}

func validateTemplate(layout domain.Layout, templatePath, imagePath string) (*phase, *assets.Bundle) {
	p := &phase{name: "Phase 2: Template Contract"}
	bundle, err := assets.Load(layout, templatePath, imagePath)
	if err != nil {
		p.errorf("%v", err)
		return p, nil
	}
	return p, bundle
}

func validateSurvey(data []byte, layout domain.Layout) (*phase, *domain.Survey) {
	p := &phase{name: "Phase 3: Survey Export"}
	survey, err := domain.NewSurvey("survey", data, layout.Segments)
	if err != nil {
		p.errorf("%v", err)
		return p, nil
	}
	if len(survey.Records.Rows) == 0 {
		p.errorf("no valid respondent rows among %d parsed", survey.Records.Parsed)
	}
	return p, &survey
}

func validateRender(bundle *assets.Bundle, survey domain.Survey) *phase {
	p := &phase{name: "Phase 4: Render (tally, color, fill)"}
	layout := bundle.Template.Layout()

	var anyTally domain.TallyVector
	for _, v := range domain.Variants() {
		chart, err := domain.RenderChart(survey, v, bundle.Template, bundle.ImageBase64)
		if err != nil {
			p.errorf("%s: %v", v.Name, err)
			continue
		}
		for _, ph := range []string{layout.Placeholders.Fill, layout.Placeholders.Image, layout.Placeholders.Gradient, layout.Placeholders.Max} {
			if strings.Contains(chart.SVG, ph) {
				p.errorf("%s: placeholder %q left in output", v.Name, ph)
			}
		}
		for i, n := range chart.Tally {
			if n > chart.Rows {
				p.errorf("%s: zone %d tally %d exceeds %d rows", v.Name, i, n, chart.Rows)
			}
		}
		if v == domain.VariantAny {
			anyTally = chart.Tally
			continue
		}
		for i := range chart.Tally {
			if anyTally != nil && chart.Tally[i] > anyTally[i] {
				p.errorf("%s: zone %d tally %d exceeds any-pain tally %d", v.Name, i, chart.Tally[i], anyTally[i])
			}
		}
	}
	return p
}

func validateExpected(exp expectedFixture, survey domain.Survey, layout domain.Layout) *phase {
	p := &phase{name: "Phase 5: Expected Tallies"}

	if exp.Rows != len(survey.Records.Rows) {
		p.errorf("rows: expected %d, got %d", exp.Rows, len(survey.Records.Rows))
	}
	if exp.Parsed != survey.Records.Parsed || exp.Discarded != survey.Records.Discarded {
		p.errorf("parsed/discarded: expected %d/%d, got %d/%d",
			exp.Parsed, exp.Discarded, survey.Records.Parsed, survey.Records.Discarded)
	}

	for _, ev := range exp.Variants {
		v, err := domain.ParseVariant(ev.Variant)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		tally, err := domain.Tally(survey.Records.Rows, layout.Segments, v.Threshold)
		if err != nil {
			p.errorf("%s: %v", v.Name, err)
			continue
		}
		if tally.Max() != ev.Max {
			p.errorf("%s: max expected %d, got %d", v.Name, ev.Max, tally.Max())
		}
		if len(ev.Tally) != len(tally) {
			p.errorf("%s: expected %d zones, got %d", v.Name, len(ev.Tally), len(tally))
			continue
		}
		for i := range tally {
			if tally[i] != ev.Tally[i] {
				p.errorf("%s: zone %d (%s) expected %d, got %d", v.Name, i, domain.ZoneName(i), ev.Tally[i], tally[i])
			}
		}
	}
	return p
}

func loadExpected(path string) (*expectedFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exp expectedFixture
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &exp, nil
}
