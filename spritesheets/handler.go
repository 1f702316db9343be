package spritesheets

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"pixelsmith_back/assets"
	"pixelsmith_back/characters"
	"pixelsmith_back/imagegen"
	"pixelsmith_back/imageops"
	"pixelsmith_back/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module aggregates spritesheet CRUD, model-driven sheet generation and
// deterministic local splitting.
type Module struct {
	db        *gorm.DB
	generator imagegen.Generator
	store     *storage.ImageStore
}

// RegisterRoutes initialises the spritesheets module and mounts its routes.
func RegisterRoutes(router *gin.Engine, generator imagegen.Generator, store *storage.ImageStore) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&SpriteSheet{}); err != nil {
		return nil, err
	}

	module := &Module{db: db, generator: generator, store: store}

	group := router.Group("/spritesheets")
	group.POST("", module.handleCreateSpriteSheet)
	group.GET("/:id", module.handleGetSpriteSheet)
	group.PATCH("/:id", module.handleUpdateSpriteSheet)
	group.DELETE("/:id", module.handleDeleteSpriteSheet)
	group.POST("/generate", module.handleGenerateSpriteSheet)
	group.POST("/:id/split", module.handleSplitSpriteSheet)

	return module, nil
}

// DB exposes the module's database handle.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createSpriteSheetRequest struct {
	Name               string          `json:"name" binding:"required"`
	CharacterID        uint64          `json:"character_id" binding:"required"`
	AssetID            uint64          `json:"asset_id" binding:"required"`
	Description        *string         `json:"description"`
	GenerationSettings json.RawMessage `json:"generation_settings"`
}

type updateSpriteSheetRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type generateSpriteSheetRequest struct {
	Name        string  `json:"name" binding:"required"`
	CharacterID uint64  `json:"character_id" binding:"required"`
	Description *string `json:"description"`
	Prompt      string  `json:"prompt"`
	FrameCount  int     `json:"frame_count"`
	Cols        int     `json:"cols"`
	Rows        int     `json:"rows"`
	AnglePreset string  `json:"angle_preset"`
	AspectRatio string  `json:"aspect_ratio"`
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (m *Module) handleCreateSpriteSheet(c *gin.Context) {
	var req createSpriteSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, character_id and asset_id are required"})
		return
	}

	var character characters.Character
	if err := m.db.WithContext(c.Request.Context()).First(&character, "id = ?", req.CharacterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
			return
		}
		log.Printf("spritesheets: load character failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load character"})
		return
	}

	settings := datatypes.JSON(req.GenerationSettings)
	if len(settings) > 0 {
		decoded, err := DecodeSettings(settings)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid generation settings"})
			return
		}
		settings, err = EncodeSettings(decoded)
		if err != nil {
			log.Printf("spritesheets: normalize settings failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store settings"})
			return
		}
	}

	sheet := SpriteSheet{
		ProjectID:          character.ProjectID,
		CharacterID:        req.CharacterID,
		AssetID:            req.AssetID,
		Name:               req.Name,
		Description:        req.Description,
		GenerationSettings: settings,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&sheet).Error; err != nil {
		log.Printf("spritesheets: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create spritesheet"})
		return
	}

	c.JSON(http.StatusCreated, sheet)
}

func (m *Module) handleGetSpriteSheet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var sheet SpriteSheet
	if err := m.db.WithContext(c.Request.Context()).Preload("Asset").First(&sheet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "spritesheet not found"})
			return
		}
		log.Printf("spritesheets: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load spritesheet"})
		return
	}

	c.JSON(http.StatusOK, sheet)
}

func (m *Module) handleUpdateSpriteSheet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateSpriteSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make(map[string]any, 2)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = req.Description
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).Model(&SpriteSheet{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Printf("spritesheets: update failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update spritesheet"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "spritesheet not found"})
		return
	}

	var sheet SpriteSheet
	if err := m.db.WithContext(c.Request.Context()).Preload("Asset").First(&sheet, "id = ?", id).Error; err != nil {
		log.Printf("spritesheets: reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload spritesheet"})
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (m *Module) handleDeleteSpriteSheet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result := m.db.WithContext(c.Request.Context()).Delete(&SpriteSheet{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("spritesheets: delete failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete spritesheet"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "spritesheet not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleGenerateSpriteSheet renders a pose grid for a character from its
// primary artwork and records both the asset and the sheet.
func (m *Module) handleGenerateSpriteSheet(c *gin.Context) {
	var req generateSpriteSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and character_id are required"})
		return
	}

	var character characters.Character
	if err := m.db.WithContext(c.Request.Context()).Preload("PrimaryAsset").First(&character, "id = ?", req.CharacterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
			return
		}
		log.Printf("spritesheets: load character failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load character"})
		return
	}
	if character.PrimaryAsset == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "character has no primary artwork to reference"})
		return
	}

	settings := Settings{
		FrameCount:  req.FrameCount,
		Cols:        req.Cols,
		Rows:        req.Rows,
		AnglePreset: req.AnglePreset,
	}
	settings.Normalize()

	refData, err := m.store.Load(character.PrimaryAsset.FilePath)
	if err != nil {
		log.Printf("spritesheets: load reference image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load character artwork"})
		return
	}
	refs := []imagegen.ImageContent{{
		MimeType: "image/png",
		Data:     base64.StdEncoding.EncodeToString(refData),
	}}

	prompt := buildSheetPrompt(character.Name, req.Prompt, settings)

	result, err := m.generator.Generate(c.Request.Context(), prompt, refs, imagegen.Options{AspectRatio: req.AspectRatio})
	if err != nil {
		log.Printf("spritesheets: generate failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "spritesheet generation failed"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(result.Image.Data)
	if err != nil {
		log.Printf("spritesheets: decode generated image failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "model returned an unreadable image"})
		return
	}

	filename := fmt.Sprintf("sheet_%s_%s.png", storage.Slugify(req.Name), storage.Filestamp())
	filePath, err := m.store.SaveImage(data, "sprites", filename)
	if err != nil {
		log.Printf("spritesheets: save generated image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save generated image"})
		return
	}

	encoded, err := EncodeSettings(settings)
	if err != nil {
		log.Printf("spritesheets: encode settings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store settings"})
		return
	}

	asset := assets.Asset{
		ProjectID:          character.ProjectID,
		CharacterID:        &character.ID,
		FilePath:           filePath,
		Type:               assets.TypeSpritesheet,
		SystemPrompt:       &prompt,
		GenerationSettings: encoded,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
		log.Printf("spritesheets: record generated asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record generated asset"})
		return
	}

	sheet := SpriteSheet{
		ProjectID:          character.ProjectID,
		CharacterID:        character.ID,
		AssetID:            asset.ID,
		Name:               req.Name,
		Description:        req.Description,
		GenerationSettings: encoded,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&sheet).Error; err != nil {
		log.Printf("spritesheets: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create spritesheet"})
		return
	}
	sheet.Asset = &asset

	c.JSON(http.StatusCreated, sheet)
}

// handleSplitSpriteSheet crops the sheet image into its grid cells and
// records each frame as a sprite asset. This is a deterministic local
// operation; no model call is involved.
func (m *Module) handleSplitSpriteSheet(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var sheet SpriteSheet
	if err := m.db.WithContext(c.Request.Context()).Preload("Asset").First(&sheet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "spritesheet not found"})
			return
		}
		log.Printf("spritesheets: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load spritesheet"})
		return
	}
	if sheet.Asset == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "spritesheet has no image asset"})
		return
	}

	settings, err := DecodeSettings(sheet.GenerationSettings)
	if err != nil {
		log.Printf("spritesheets: decode settings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sheet settings"})
		return
	}

	data, err := m.store.Load(sheet.Asset.FilePath)
	if err != nil {
		log.Printf("spritesheets: load sheet image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sheet image"})
		return
	}

	tiles, err := imageops.SplitSpritesheet(data, settings.Cols, settings.Rows)
	if err != nil {
		log.Printf("spritesheets: split failed: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to split sheet image"})
		return
	}
	if settings.FrameCount < len(tiles) {
		tiles = tiles[:settings.FrameCount]
	}

	created := make([]assets.Asset, 0, len(tiles))
	for i, tile := range tiles {
		filename := fmt.Sprintf("sprite_%d_%d_%s.png", sheet.ID, i, storage.Filestamp())
		filePath, err := m.store.SaveImage(tile, "sprites", filename)
		if err != nil {
			log.Printf("spritesheets: save tile %d failed: %v", i, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save split frame"})
			return
		}

		provenance, _ := json.Marshal(map[string]any{
			"sourceType":    "spritesheet",
			"spriteSheetId": sheet.ID,
			"frameIndex":    i,
			"totalFrames":   len(tiles),
			"gridPosition": map[string]int{
				"col": i % settings.Cols,
				"row": i / settings.Cols,
			},
		})

		asset := assets.Asset{
			ProjectID:          sheet.ProjectID,
			CharacterID:        &sheet.CharacterID,
			FilePath:           filePath,
			Type:               assets.TypeSprite,
			GenerationSettings: datatypes.JSON(provenance),
		}
		if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
			log.Printf("spritesheets: record split frame failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record split frame"})
			return
		}
		created = append(created, asset)
	}

	c.JSON(http.StatusCreated, gin.H{"assets": created, "count": len(created)})
}

func buildSheetPrompt(characterName, extra string, s Settings) string {
	lines := []string{
		fmt.Sprintf("Create a sprite sheet for the character in the reference image (%s).", characterName),
		fmt.Sprintf("Arrange exactly %d animation frames in a grid of %d columns by %d rows, ordered left to right, top to bottom.", s.FrameCount, s.Cols, s.Rows),
		"Every cell must show the SAME character with identical proportions, palette and art style.",
		"Keep consistent spacing and a plain background so the cells can be cut apart cleanly.",
	}
	if fragment := characters.AngleFragment(s.AnglePreset); fragment != "" {
		lines = append(lines, "Camera angle: "+fragment+".")
	}
	if trimmed := strings.TrimSpace(extra); trimmed != "" {
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}
