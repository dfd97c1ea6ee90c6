// Command genmock generates a synthetic survey export and the tallies the
// chart pipeline is expected to produce for it. It uses the actual domain
// package so the expected fixture matches real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -respondents 120 -seed 7 \
//	  -survey-out data/mock/survey.csv \
//	  -expected-out data/mock/survey.expected.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/couchcryptid/body-chart/internal/domain"
)

// expectedFixture is the tally summary written next to the generated survey.
type expectedFixture struct {
	Rows      int               `json:"rows"`
	Parsed    int               `json:"parsed"`
	Discarded int               `json:"discarded"`
	Variants  []expectedVariant `json:"variants"`
}

type expectedVariant struct {
	Variant   string `json:"variant"`
	Threshold int    `json:"threshold"`
	Max       int    `json:"max"`
	Tally     []int  `json:"tally"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	respondents := flag.Int("respondents", 100, "number of respondent rows")
	seed := flag.Uint64("seed", 1, "random seed")
	surveyOut := flag.String("survey-out", "", "output path for the survey CSV")
	expectedOut := flag.String("expected-out", "", "output path for the expected tallies JSON")
	flag.Parse()

	if *surveyOut == "" || *expectedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -survey-out, -expected-out")
	}
	if *respondents < 1 {
		return fmt.Errorf("-respondents must be positive")
	}

	f, err := os.Create(*surveyOut)
	if err != nil {
		return fmt.Errorf("create survey: %w", err)
	}
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	if err := writeSurvey(f, rng, *respondents, domain.DefaultSegments); err != nil {
		f.Close()
		return fmt.Errorf("write survey: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write survey: %w", err)
	}
	log.Printf("wrote survey: %s (%d respondents)", *surveyOut, *respondents)

	data, err := os.ReadFile(*surveyOut)
	if err != nil {
		return err
	}
	fixture, err := expectedFor(data, domain.DefaultSegments)
	if err != nil {
		return err
	}
	if err := writeJSON(*expectedOut, fixture); err != nil {
		return fmt.Errorf("writing expected fixture: %w", err)
	}
	log.Printf("wrote expected fixture: %s", *expectedOut)

	for _, v := range fixture.Variants {
		log.Printf("%s: max %d", v.Variant, v.Max)
	}
	return nil
}

// writeSurvey writes a header row and one row per respondent. Zones are
// mostly unreported; reported zones are 0 (none), 1 (pain) or 2 (worst pain).
func writeSurvey(w io.Writer, rng *rand.Rand, respondents, segments int) error {
	cw := csv.NewWriter(w)

	header := make([]string, segments+1)
	header[0] = "respondent"
	for i := range segments {
		header[i+1] = domain.ZoneName(i)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, segments+1)
	for r := range respondents {
		row[0] = strconv.Itoa(r + 1)
		for i := range segments {
			row[i+1] = observation(rng, i == 0)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// observation draws one zone value. The first zone is always reported so
// that every respondent row is valid.
func observation(rng *rand.Rand, required bool) string {
	n := rng.IntN(10)
	switch {
	case n < 5 && !required:
		return ""
	case n < 7:
		return "0"
	case n < 9:
		return "1"
	default:
		return "2"
	}
}

func expectedFor(data []byte, segments int) (expectedFixture, error) {
	survey, err := domain.NewSurvey("mock", data, segments)
	if err != nil {
		return expectedFixture{}, err
	}

	out := expectedFixture{
		Rows:      len(survey.Records.Rows),
		Parsed:    survey.Records.Parsed,
		Discarded: survey.Records.Discarded,
	}
	for _, v := range domain.Variants() {
		tally, err := domain.Tally(survey.Records.Rows, segments, v.Threshold)
		if err != nil {
			return expectedFixture{}, err
		}
		out.Variants = append(out.Variants, expectedVariant{
			Variant:   v.Name,
			Threshold: v.Threshold,
			Max:       tally.Max(),
			Tally:     tally,
		})
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
