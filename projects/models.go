package projects

import "time"

// Project is the top-level container. Every generated asset, character,
// scene and animation belongs to exactly one project.
type Project struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	CharacterCount int64 `gorm:"-" json:"character_count"`
	AnimationCount int64 `gorm:"-" json:"animation_count"`
}

// TableName pins the storage table for Project.
func (Project) TableName() string {
	return "projects"
}
