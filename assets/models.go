package assets

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Asset type tags. Assets are immutable once created except for deletion.
const (
	TypeCharacter   = "character"
	TypeFrame       = "frame"
	TypeReference   = "reference"
	TypeScene       = "scene"
	TypeSprite      = "sprite"
	TypeSpritesheet = "spritesheet"
)

// Asset is a stored image plus its generation provenance: the exact prompts
// sent to the model, the ordered assets consumed as visual references, and an
// opaque settings bag captured by whichever pipeline produced it.
type Asset struct {
	ID                 uint64         `gorm:"primaryKey" json:"id"`
	ProjectID          uint64         `gorm:"not null;index" json:"project_id"`
	CharacterID        *uint64        `gorm:"index" json:"character_id,omitempty"`
	FilePath           string         `gorm:"size:500;not null" json:"file_path"`
	Type               string         `gorm:"size:32;not null;default:'reference'" json:"type"`
	SystemPrompt       *string        `gorm:"type:text" json:"system_prompt,omitempty"`
	UserPrompt         *string        `gorm:"type:text" json:"user_prompt,omitempty"`
	ReferenceAssetIDs  datatypes.JSON `gorm:"type:json" json:"reference_asset_ids,omitempty"`
	GenerationSettings datatypes.JSON `gorm:"type:json" json:"generation_settings,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// TableName pins the storage table for Asset.
func (Asset) TableName() string {
	return "assets"
}

// EncodeReferenceIDs serializes an ordered reference-asset id list for the
// ReferenceAssetIDs column. Order is provenance and must be preserved.
func EncodeReferenceIDs(ids []uint64) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// DecodeReferenceIDs reads back the ordered reference-asset id list.
func DecodeReferenceIDs(raw datatypes.JSON) []uint64 {
	if len(raw) == 0 {
		return nil
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}
