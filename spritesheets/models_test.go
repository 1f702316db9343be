package spritesheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSettingsNormalizeDefaults(t *testing.T) {
	var s Settings
	s.Normalize()
	assert.Equal(t, 4, s.FrameCount)
	assert.Equal(t, 4, s.Cols)
	assert.Equal(t, 1, s.Rows)

	s = Settings{FrameCount: 6}
	s.Normalize()
	assert.Equal(t, 6, s.Cols, "cols defaults to the frame count")
	assert.Equal(t, 1, s.Rows)

	s = Settings{FrameCount: 8, Cols: 4, Rows: 2}
	s.Normalize()
	assert.Equal(t, 4, s.Cols)
	assert.Equal(t, 2, s.Rows)
}

func TestSettingsRoundTrip(t *testing.T) {
	raw, err := EncodeSettings(Settings{FrameCount: 8, Cols: 4, Rows: 2, AnglePreset: "side"})
	require.NoError(t, err)

	decoded, err := DecodeSettings(raw)
	require.NoError(t, err)
	assert.Equal(t, Settings{FrameCount: 8, Cols: 4, Rows: 2, AnglePreset: "side"}, decoded)
}

func TestDecodeSettingsEmptyColumn(t *testing.T) {
	decoded, err := DecodeSettings(nil)
	require.NoError(t, err)
	assert.Equal(t, Settings{FrameCount: 4, Cols: 4, Rows: 1}, decoded)

	_, err = DecodeSettings(datatypes.JSON(`{broken`))
	assert.Error(t, err)
}
