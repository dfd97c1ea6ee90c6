package assets

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedTemplateMatchesDefaultLayout(t *testing.T) {
	b, err := Load(domain.DefaultLayout(), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ImageBase64)

	lines := b.Template.Lines()
	for i := 0; i < domain.DefaultSegments; i++ {
		line := lines[domain.DefaultSVGOffset+i]
		assert.Contains(t, line, domain.ZoneNames[i], "zone %d line should carry its name", i)
	}
}

func TestBodyImage_IsPNG(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(BodyImage()))
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestLoad_FilledTemplateHasNoPlaceholders(t *testing.T) {
	b, err := Load(domain.DefaultLayout(), "", "")
	require.NoError(t, err)

	tally := make(domain.TallyVector, domain.DefaultSegments)
	tally[0], tally[41] = 1, 4
	out, err := b.Template.Fill(tally, b.ImageBase64)
	require.NoError(t, err)

	assert.NotContains(t, out, `fill=""`)
	assert.NotContains(t, out, "$")
	assert.Equal(t, domain.DefaultSegments-2, strings.Count(out, `fill-opacity="0"`))
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "body.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("png"), 0o600))

	b, err := Load(domain.DefaultLayout(), "", imgPath)
	require.NoError(t, err)
	assert.Equal(t, "cG5n", b.ImageBase64)

	_, err = Load(domain.DefaultLayout(), filepath.Join(dir, "missing.svg"), "")
	assert.Error(t, err)

	badTmpl := filepath.Join(dir, "chart.svg")
	require.NoError(t, os.WriteFile(badTmpl, []byte("<svg></svg>"), 0o600))
	_, err = Load(domain.DefaultLayout(), badTmpl, "")
	require.ErrorIs(t, err, domain.ErrTemplateContract)
}
