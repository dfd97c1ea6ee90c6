package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const survey = "id,head,neck\n1,1,0\n2,2,1\n3,2,\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// tallyJSON renders a full-length tally with the given non-zero zones.
func tallyJSON(zones map[int]int) string {
	parts := make([]string, domain.DefaultSegments)
	for i := range parts {
		parts[i] = strconv.Itoa(zones[i])
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func expectedJSON(worstHead int) string {
	return `{"rows":3,"parsed":4,"discarded":1,"variants":[` +
		`{"variant":"any","max":3,"tally":` + tallyJSON(map[int]int{0: 3, 1: 1}) + `},` +
		`{"variant":"worst","max":2,"tally":` + tallyJSON(map[int]int{0: worstHead}) + `}]}`
}

func defaultInputs(t *testing.T) inputs {
	t.Helper()
	return inputs{
		surveyPath: writeFile(t, "survey.csv", survey),
		palette:    strings.Join(domain.DefaultPaletteHex, ","),
	}
}

func TestRun_Passes(t *testing.T) {
	in := defaultInputs(t)
	in.expectedPath = writeFile(t, "expected.json", expectedJSON(2))

	var out bytes.Buffer
	code := run(&out, in)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "Phase 5: Expected Tallies")
}

func TestRun_ExpectedMismatch(t *testing.T) {
	in := defaultInputs(t)
	in.expectedPath = writeFile(t, "expected.json", expectedJSON(1))

	var out bytes.Buffer
	code := run(&out, in)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "worst: zone 0 (head) expected 1, got 2")
}

func TestRun_LighterPaletteStopFails(t *testing.T) {
	in := defaultInputs(t)
	in.palette = "#a50f15,#fee5d9"

	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, in))
	assert.Contains(t, out.String(), "is lighter than stop 0")
}

func TestRun_BrokenTemplateFails(t *testing.T) {
	in := defaultInputs(t)
	in.templatePath = writeFile(t, "chart.svg", "<svg>\n</svg>\n")

	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, in))
	assert.Contains(t, out.String(), "Phase 2: Template Contract")
	assert.NotContains(t, out.String(), "Phase 4")
}

func TestRun_SurveyWithoutValidRows(t *testing.T) {
	in := defaultInputs(t)
	in.surveyPath = writeFile(t, "survey.csv", "id,head\nx,y\n")

	var out bytes.Buffer
	assert.Equal(t, 1, run(&out, in))
	assert.Contains(t, out.String(), "no valid respondent rows among 2 parsed")
}
