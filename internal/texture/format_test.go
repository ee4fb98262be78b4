package texture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat_CaseInsensitive(t *testing.T) {
	for _, name := range []string{"bc1", "BC1", " Bc1 "} {
		f, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, BC1, f)
	}
}

func TestParseFormat_Unknown(t *testing.T) {
	_, err := ParseFormat("BC7")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), "BC1, BC2, BC3")
}

func TestParseFormats_EmptySelectsAll(t *testing.T) {
	formats, err := ParseFormats(nil)
	require.NoError(t, err)
	assert.Equal(t, []Format{BC1, BC2, BC3}, formats)
}

func TestParseFormats_CollapsesDuplicatesInCanonicalOrder(t *testing.T) {
	formats, err := ParseFormats([]string{"bc3", "BC1", "bc3"})
	require.NoError(t, err)
	assert.Equal(t, []Format{BC1, BC3}, formats)
}

func TestFormats_ToolCodesAndExtensions(t *testing.T) {
	for _, f := range Formats() {
		assert.Equal(t, ".dds", f.Extension)
		assert.Equal(t, f.Name, f.Code)
		assert.NotEmpty(t, f.Description)
	}
	assert.Equal(t, []string{"BC1", "BC2", "BC3"}, FormatNames())
}
