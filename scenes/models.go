package scenes

import (
	"time"

	"pixelsmith_back/assets"
)

// Scene is a background environment belonging to a project. The preset
// columns record which catalog selections produced the current artwork.
type Scene struct {
	ID             uint64        `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID      uint64        `gorm:"column:project_id;not null;index" json:"project_id"`
	Name           string        `gorm:"column:name;size:255;not null" json:"name"`
	Description    *string       `gorm:"column:description;type:text" json:"description"`
	ArtStyle       *string       `gorm:"column:art_style;size:64" json:"art_style"`
	Mood           *string       `gorm:"column:mood;size:64" json:"mood"`
	TimeOfDay      *string       `gorm:"column:time_of_day;size:64" json:"time_of_day"`
	Environment    *string       `gorm:"column:environment;size:64" json:"environment"`
	StyleNotes     *string       `gorm:"column:style_notes;type:text" json:"style_notes"`
	PrimaryAssetID *uint64       `gorm:"column:primary_asset_id" json:"primary_asset_id"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	PrimaryAsset   *assets.Asset `gorm:"foreignKey:PrimaryAssetID" json:"primary_asset,omitempty"`
}

func (Scene) TableName() string {
	return "scenes"
}
