package animations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGenerationSourceRoundTrip(t *testing.T) {
	source := GenerationSource{
		SourceType:       SourceCharacter,
		CharacterAssetID: 42,
		SequencePrompt:   "a running cycle",
		AnglePreset:      "side",
	}

	raw, err := EncodeGenerationSource(source)
	require.NoError(t, err)

	decoded, err := DecodeGenerationSource(raw)
	require.NoError(t, err)
	assert.Equal(t, source, decoded)
}

func TestGenerationSourceValidation(t *testing.T) {
	assert.Error(t, GenerationSource{SourceType: SourceCharacter}.Validate())
	assert.Error(t, GenerationSource{SourceType: SourceCharacter, CharacterAssetID: 1}.Validate())
	assert.NoError(t, GenerationSource{SourceType: SourceCharacter, CharacterAssetID: 1, SequencePrompt: "x"}.Validate())

	assert.Error(t, GenerationSource{SourceType: SourceSpritesheet}.Validate())
	assert.NoError(t, GenerationSource{SourceType: SourceSpritesheet, SpriteSheetID: 7}.Validate())
}

func TestDecodeGenerationSourceRejectsUnknownType(t *testing.T) {
	_, err := DecodeGenerationSource(datatypes.JSON(`{"sourceType":"video"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source type")

	_, err = DecodeGenerationSource(nil)
	assert.Error(t, err)
}
