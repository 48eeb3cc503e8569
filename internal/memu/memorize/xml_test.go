package memorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractionIgnoresRootTagName(t *testing.T) {
	raw := `<behaviors><memory><content>eats breakfast daily</content><categories><category>Routine</category></categories></memory></behaviors>`
	memories, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "eats breakfast daily", memories[0].Content)
	assert.Equal(t, []string{"Routine"}, memories[0].Categories)
}

func TestParseExtractionToleratesSurroundingProse(t *testing.T) {
	raw := "Here is the XML:\n```xml\n<profile><memory><content>x</content></memory></profile>\n```"
	memories, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
}

func TestParseExtractionEscapesStrayAmpersands(t *testing.T) {
	raw := `<profile><memory><content>Bob & Alice went out</content></memory></profile>`
	memories, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "Bob & Alice went out", memories[0].Content)
}

func TestParseExtractionPreservesRealEntities(t *testing.T) {
	raw := `<profile><memory><content>Tom &amp; Jerry</content></memory></profile>`
	memories, err := parseExtraction(raw)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "Tom & Jerry", memories[0].Content)
}

func TestParseExtractionMalformedReturnsError(t *testing.T) {
	_, err := parseExtraction(`not xml at all`)
	assert.Error(t, err)
}
