package main

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSurvey_EveryRespondentIsValid(t *testing.T) {
	var buf bytes.Buffer
	rng := rand.New(rand.NewPCG(7, 7))
	require.NoError(t, writeSurvey(&buf, rng, 40, domain.DefaultSegments))

	fixture, err := expectedFor(buf.Bytes(), domain.DefaultSegments)
	require.NoError(t, err)

	assert.Equal(t, 40, fixture.Rows)
	assert.Equal(t, 41, fixture.Parsed)
	assert.Equal(t, 1, fixture.Discarded, "only the header row is discarded")
	require.Len(t, fixture.Variants, 2)

	anyV, worst := fixture.Variants[0], fixture.Variants[1]
	require.Len(t, anyV.Tally, domain.DefaultSegments)
	for i := range anyV.Tally {
		assert.LessOrEqual(t, worst.Tally[i], anyV.Tally[i], "zone %d", i)
		assert.LessOrEqual(t, anyV.Tally[i], fixture.Rows, "zone %d", i)
	}
}

func TestWriteSurvey_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, writeSurvey(&a, rand.New(rand.NewPCG(1, 2)), 10, 5))
	require.NoError(t, writeSurvey(&b, rand.New(rand.NewPCG(1, 2)), 10, 5))
	assert.Equal(t, a.String(), b.String())
}
