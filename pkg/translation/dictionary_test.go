package translation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Mineralische Baustoffe", "mineralische baustoffe"},
		{"  Steine, Ziegel  ", "steine ziegel"},
		{"Dämmstoffe", "dämmstoffe"},
		{"Da\u0308mmstoffe", "dämmstoffe"}, // decomposed umlaut folds to NFC
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestDictionary_Translate(t *testing.T) {
	d := New(map[string]string{
		"Mineralische Baustoffe": "Mineral building products",
		"Steine und Elemente":    "Stones and elements",
	})

	got, ok := d.Translate("mineralische baustoffe")
	assert.True(t, ok)
	assert.Equal(t, "Mineral building products", got)

	got, ok = d.Translate(" Steine, und Elemente ")
	assert.True(t, ok)
	assert.Equal(t, "Stones and elements", got)

	got, ok = d.Translate("Holz")
	assert.False(t, ok)
	assert.Equal(t, "Holz", got, "untranslatable text passes through unchanged")

	got, ok = d.Translate("")
	assert.True(t, ok)
	assert.Equal(t, "", got)
}

func TestDictionary_NilIsPassThrough(t *testing.T) {
	var d *Dictionary
	got, ok := d.Translate("Beton")
	assert.False(t, ok)
	assert.Equal(t, "Beton", got)
	assert.Equal(t, 0, d.Len())
}

func TestParse_SkipsShortAndEmptyRows(t *testing.T) {
	input := strings.Join([]string{
		"Mineralische Baustoffe,Mineral building products",
		"only-one-column",
		",missing german",
		"missing english,",
		`"Steine, Ziegel",Bricks`,
		"Holz,Wood,extra column ignored",
	}, "\n")

	d, err := Parse(strings.NewReader(input), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())

	got, ok := d.Translate("Steine, Ziegel")
	assert.True(t, ok)
	assert.Equal(t, "Bricks", got)

	got, ok = d.Translate("holz")
	assert.True(t, ok)
	assert.Equal(t, "Wood", got)
}

func TestParse_StripsUTF8BOM(t *testing.T) {
	d, err := Parse(strings.NewReader("\ufeffBeton,Concrete\n"), "utf-8")
	require.NoError(t, err)

	got, ok := d.Translate("Beton")
	assert.True(t, ok)
	assert.Equal(t, "Concrete", got)
}

func TestParse_Windows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Dämmstoffe,Insulation\n"))
	require.NoError(t, err)

	d, err := Parse(bytes.NewReader(encoded), "windows-1252")
	require.NoError(t, err)

	got, ok := d.Translate("Dämmstoffe")
	assert.True(t, ok)
	assert.Equal(t, "Insulation", got)
}

func TestParse_UnknownEncoding(t *testing.T) {
	_, err := Parse(strings.NewReader("a,b"), "ebcdic")
	assert.Error(t, err)
}

func TestIsSupportedEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF8", "windows-1252", "cp1252", "ISO-8859-1", "latin1"} {
		assert.True(t, IsSupportedEncoding(name), name)
		_, err := Parse(strings.NewReader("a,b"), name)
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"ebcdic", "utf-16"} {
		assert.False(t, IsSupportedEncoding(name), name)
	}
}

func TestLoad_MissingFileIsEmptyDictionary(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "missing.csv"), "utf-8", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translations.csv")
	require.NoError(t, os.WriteFile(path, []byte("Beton,Concrete\nGlas,Glass\n"), 0o644))

	d, err := Load(path, "utf-8", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}
