package spritesheets

import (
	"encoding/json"
	"fmt"
	"time"

	"pixelsmith_back/assets"

	"gorm.io/datatypes"
)

// SpriteSheet is a generated grid of character poses. The asset holds the
// sheet image itself; GenerationSettings records the grid layout used to
// produce it so extraction can address individual cells later.
type SpriteSheet struct {
	ID                 uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID          uint64         `gorm:"column:project_id;not null;index" json:"project_id"`
	CharacterID        uint64         `gorm:"column:character_id;not null;index" json:"character_id"`
	AssetID            uint64         `gorm:"column:asset_id;not null" json:"asset_id"`
	Name               string         `gorm:"column:name;size:255;not null" json:"name"`
	Description        *string        `gorm:"column:description;type:text" json:"description"`
	GenerationSettings datatypes.JSON `gorm:"column:generation_settings" json:"generation_settings"`
	CreatedAt          time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Asset              *assets.Asset  `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (SpriteSheet) TableName() string {
	return "sprite_sheets"
}

// Settings is the grid layout stored in a sheet's generation settings.
type Settings struct {
	FrameCount  int    `json:"frameCount"`
	Cols        int    `json:"cols,omitempty"`
	Rows        int    `json:"rows,omitempty"`
	AnglePreset string `json:"anglePreset,omitempty"`
}

// Normalize fills layout defaults: four frames when unset, a single row of
// frameCount columns when the grid is unspecified.
func (s *Settings) Normalize() {
	if s.FrameCount <= 0 {
		s.FrameCount = 4
	}
	if s.Cols <= 0 {
		s.Cols = s.FrameCount
	}
	if s.Rows <= 0 {
		s.Rows = 1
	}
}

// EncodeSettings marshals normalized settings for the JSON column.
func EncodeSettings(s Settings) (datatypes.JSON, error) {
	s.Normalize()
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("spritesheets: encode settings: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeSettings reads settings back from the JSON column, applying layout
// defaults. A nil column yields the default layout.
func DecodeSettings(raw datatypes.JSON) (Settings, error) {
	var s Settings
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("spritesheets: decode settings: %w", err)
		}
	}
	s.Normalize()
	return s, nil
}
