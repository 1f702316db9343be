package animations

import (
	"time"

	"pixelsmith_back/assets"
	"pixelsmith_back/characters"

	"gorm.io/datatypes"
)

// Animation is an ordered frame sequence belonging to a character.
// FrameCount tracks the number of committed frames and is updated after
// every successful frame commit, so a partially failed run still reports
// what actually landed.
type Animation struct {
	ID                 uint64                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID          uint64                `gorm:"column:project_id;not null;index" json:"project_id"`
	CharacterID        uint64                `gorm:"column:character_id;not null;index" json:"character_id"`
	Name               string                `gorm:"column:name;size:255;not null" json:"name"`
	Description        *string               `gorm:"column:description;type:text" json:"description"`
	FrameCount         int                   `gorm:"column:frame_count;not null;default:0" json:"frame_count"`
	GenerationSettings datatypes.JSON        `gorm:"column:generation_settings" json:"generation_settings"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Character          *characters.Character `gorm:"foreignKey:CharacterID" json:"character,omitempty"`
	Frames             []Frame               `gorm:"foreignKey:AnimationID" json:"frames,omitempty"`
}

func (Animation) TableName() string {
	return "animations"
}

// Frame links an animation position to the asset holding its image.
// FrameIndex is zero-based and kept contiguous per animation: generation
// appends at the tail and deletion reindexes everything after the gap.
type Frame struct {
	ID          uint64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	AnimationID uint64        `gorm:"column:animation_id;not null;index" json:"animation_id"`
	AssetID     uint64        `gorm:"column:asset_id;not null" json:"asset_id"`
	FrameIndex  int           `gorm:"column:frame_index;not null" json:"frame_index"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	Asset       *assets.Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (Frame) TableName() string {
	return "frames"
}
