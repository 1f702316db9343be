package animations

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Generation source discriminators.
const (
	SourceCharacter   = "character"
	SourceSpritesheet = "spritesheet"
)

// GenerationSource records how an animation's frames are produced: either
// generated frame by frame from a character asset, or extracted cell by
// cell from a spritesheet. SourceType selects which field group applies.
type GenerationSource struct {
	SourceType string `json:"sourceType"`

	// character source
	CharacterAssetID uint64 `json:"characterAssetId,omitempty"`
	SequencePrompt   string `json:"sequencePrompt,omitempty"`

	// spritesheet source
	SpriteSheetID uint64 `json:"spriteSheetId,omitempty"`
	FrameCount    int    `json:"frameCount,omitempty"`
	Cols          int    `json:"cols,omitempty"`
	Rows          int    `json:"rows,omitempty"`

	// shared
	AnglePreset string `json:"anglePreset,omitempty"`
}

// Validate checks the field group selected by SourceType.
func (s GenerationSource) Validate() error {
	switch s.SourceType {
	case SourceCharacter:
		if s.CharacterAssetID == 0 {
			return fmt.Errorf("animations: character source requires characterAssetId")
		}
		if s.SequencePrompt == "" {
			return fmt.Errorf("animations: character source requires sequencePrompt")
		}
	case SourceSpritesheet:
		if s.SpriteSheetID == 0 {
			return fmt.Errorf("animations: spritesheet source requires spriteSheetId")
		}
	default:
		return fmt.Errorf("animations: unknown source type %q", s.SourceType)
	}
	return nil
}

// EncodeGenerationSource validates and marshals a source for the JSON column.
func EncodeGenerationSource(s GenerationSource) (datatypes.JSON, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("animations: encode generation source: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeGenerationSource reads a source back from the JSON column, rejecting
// unknown discriminators.
func DecodeGenerationSource(raw datatypes.JSON) (GenerationSource, error) {
	var s GenerationSource
	if len(raw) == 0 {
		return s, fmt.Errorf("animations: generation source is empty")
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("animations: decode generation source: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// frameProvenance is stored on assets produced by generative runs.
type frameProvenance struct {
	SequencePrompt string `json:"sequencePrompt,omitempty"`
	FrameIndex     int    `json:"frameIndex"`
	TotalFrames    int    `json:"totalFrames"`
}

type gridPosition struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// extractionProvenance is stored on assets produced by extraction runs.
type extractionProvenance struct {
	SourceType    string       `json:"sourceType"`
	SpriteSheetID uint64       `json:"spriteSheetId"`
	FrameIndex    int          `json:"frameIndex"`
	TotalFrames   int          `json:"totalFrames"`
	GridPosition  gridPosition `json:"gridPosition"`
}
