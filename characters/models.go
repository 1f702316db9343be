package characters

import (
	"time"

	"pixelsmith_back/assets"
)

// Character is one playable figure in a project. Its primary asset is the
// canonical look used to seed animation and spritesheet generation.
type Character struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	ProjectID      uint64    `gorm:"not null;index" json:"project_id"`
	Name           string    `gorm:"size:120;not null" json:"name"`
	UserPrompt     *string   `gorm:"type:text" json:"user_prompt,omitempty"`
	PrimaryAssetID *uint64   `json:"primary_asset_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	PrimaryAsset *assets.Asset  `gorm:"foreignKey:PrimaryAssetID" json:"primary_asset,omitempty"`
	Assets       []assets.Asset `gorm:"foreignKey:CharacterID" json:"assets,omitempty"`
}

// TableName pins the storage table for Character.
func (Character) TableName() string {
	return "characters"
}
