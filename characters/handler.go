package characters

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
	"pixelsmith_back/imagegen"
	"pixelsmith_back/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module aggregates character CRUD with model-driven generation and editing.
type Module struct {
	db        *gorm.DB
	generator imagegen.Generator
	store     *storage.ImageStore
}

// RegisterRoutes initialises the characters module and mounts its routes.
func RegisterRoutes(router *gin.Engine, generator imagegen.Generator, store *storage.ImageStore) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Character{}); err != nil {
		return nil, err
	}

	module := &Module{db: db, generator: generator, store: store}

	group := router.Group("/characters")
	group.GET("/presets", module.handleGetPresets)
	group.POST("", module.handleCreateCharacter)
	group.GET("/:id", module.handleGetCharacter)
	group.PATCH("/:id", module.handleUpdateCharacter)
	group.DELETE("/:id", module.handleDeleteCharacter)
	group.POST("/generate", module.handleGenerateCharacter)
	group.POST("/edit", module.handleEditCharacter)

	return module, nil
}

// DB exposes the module's database handle.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createCharacterRequest struct {
	Name           string  `json:"name" binding:"required"`
	ProjectID      uint64  `json:"project_id" binding:"required"`
	UserPrompt     *string `json:"user_prompt"`
	PrimaryAssetID *uint64 `json:"primary_asset_id"`
}

type updateCharacterRequest struct {
	Name           *string `json:"name"`
	UserPrompt     *string `json:"user_prompt"`
	PrimaryAssetID *uint64 `json:"primary_asset_id"`
}

type generateCharacterRequest struct {
	Prompt           string   `json:"prompt" binding:"required"`
	ProjectID        uint64   `json:"project_id" binding:"required"`
	CharacterID      *uint64  `json:"character_id"`
	SystemPrompt     string   `json:"system_prompt"`
	BackgroundPreset string   `json:"background_preset"`
	StylePreset      string   `json:"style_preset"`
	AnglePreset      string   `json:"angle_preset"`
	ReferenceImages  []string `json:"reference_images"`
	AspectRatio      string   `json:"aspect_ratio"`
	SetAsPrimary     bool     `json:"set_as_primary"`
}

type editCharacterRequest struct {
	SourceAssetID   uint64   `json:"source_asset_id"`
	SourceImage     string   `json:"source_image"`
	Prompt          string   `json:"prompt" binding:"required"`
	ProjectID       uint64   `json:"project_id" binding:"required"`
	CharacterID     *uint64  `json:"character_id"`
	ReferenceImages []string `json:"reference_images"`
	AspectRatio     string   `json:"aspect_ratio"`
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (m *Module) handleGetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, PresetCatalog())
}

func (m *Module) handleCreateCharacter(c *gin.Context) {
	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and project_id are required"})
		return
	}

	character := Character{
		ProjectID:      req.ProjectID,
		Name:           req.Name,
		UserPrompt:     req.UserPrompt,
		PrimaryAssetID: req.PrimaryAssetID,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&character).Error; err != nil {
		log.Printf("characters: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create character"})
		return
	}

	c.JSON(http.StatusCreated, character)
}

func (m *Module) handleGetCharacter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var character Character
	if err := m.db.WithContext(c.Request.Context()).
		Preload("PrimaryAsset").
		Preload("Assets", func(db *gorm.DB) *gorm.DB {
			return db.Where("type <> ?", assets.TypeSpritesheet).Order("created_at DESC")
		}).
		First(&character, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
			return
		}
		log.Printf("characters: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load character"})
		return
	}

	c.JSON(http.StatusOK, character)
}

func (m *Module) handleUpdateCharacter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make(map[string]any, 3)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.UserPrompt != nil {
		updates["user_prompt"] = req.UserPrompt
	}
	if req.PrimaryAssetID != nil {
		updates["primary_asset_id"] = *req.PrimaryAssetID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).Model(&Character{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Printf("characters: update failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update character"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	var character Character
	if err := m.db.WithContext(c.Request.Context()).Preload("PrimaryAsset").First(&character, "id = ?", id).Error; err != nil {
		log.Printf("characters: reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload character"})
		return
	}
	c.JSON(http.StatusOK, character)
}

func (m *Module) handleDeleteCharacter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result := m.db.WithContext(c.Request.Context()).Delete(&Character{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("characters: delete failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete character"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleGenerateCharacter invokes the image model with the composed system
// prompt and saves the result as a character asset.
func (m *Module) handleGenerateCharacter(c *gin.Context) {
	var req generateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt and project_id are required"})
		return
	}

	systemPrompt := strings.TrimSpace(req.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(req.BackgroundPreset, req.StylePreset, req.AnglePreset)
	}
	fullPrompt := req.Prompt
	if systemPrompt != "" {
		fullPrompt = systemPrompt + "\n\nCharacter description: " + req.Prompt
	}

	refs := decodeInlineReferences(req.ReferenceImages)

	result, err := m.generator.Generate(c.Request.Context(), fullPrompt, refs, imagegen.Options{AspectRatio: req.AspectRatio})
	if err != nil {
		log.Printf("characters: generate failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "character generation failed"})
		return
	}

	asset, err := m.saveGeneratedAsset(c, result, req.ProjectID, req.CharacterID, fullPrompt, req.Prompt, generationSettings(req))
	if err != nil {
		return
	}

	if req.SetAsPrimary && req.CharacterID != nil {
		if err := m.db.WithContext(c.Request.Context()).
			Model(&Character{}).
			Where("id = ?", *req.CharacterID).
			Update("primary_asset_id", asset.ID).Error; err != nil {
			log.Printf("characters: set primary asset failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"asset":     asset,
		"file_path": asset.FilePath,
		"text":      result.Text,
	})
}

// handleEditCharacter reworks an existing image via the model's edit
// capability.
func (m *Module) handleEditCharacter(c *gin.Context) {
	var req editCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt and project_id are required"})
		return
	}

	var source imagegen.ImageContent
	switch {
	case strings.TrimSpace(req.SourceImage) != "":
		source = imagegen.ImageContent{MimeType: "image/png", Data: stripDataURL(req.SourceImage)}
	case req.SourceAssetID != 0:
		var sourceAsset assets.Asset
		if err := m.db.WithContext(c.Request.Context()).First(&sourceAsset, "id = ?", req.SourceAssetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "source asset not found"})
				return
			}
			log.Printf("characters: load source asset failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load source asset"})
			return
		}
		data, err := m.store.Load(sourceAsset.FilePath)
		if err != nil {
			log.Printf("characters: load source image failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load source image"})
			return
		}
		source = imagegen.ImageContent{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(data)}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_image or source_asset_id is required"})
		return
	}

	refs := decodeInlineReferences(req.ReferenceImages)

	result, err := m.generator.Edit(c.Request.Context(), source, req.Prompt, refs, imagegen.Options{AspectRatio: req.AspectRatio})
	if err != nil {
		log.Printf("characters: edit failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "character edit failed"})
		return
	}

	asset, err := m.saveGeneratedAsset(c, result, req.ProjectID, req.CharacterID, req.Prompt, req.Prompt, nil)
	if err != nil {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"asset":     asset,
		"file_path": asset.FilePath,
		"text":      result.Text,
	})
}

func (m *Module) saveGeneratedAsset(c *gin.Context, result imagegen.Result, projectID uint64, characterID *uint64, systemPrompt, userPrompt string, settings datatypes.JSON) (*assets.Asset, error) {
	data, err := base64.StdEncoding.DecodeString(result.Image.Data)
	if err != nil {
		log.Printf("characters: decode generated image failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "model returned an unreadable image"})
		return nil, err
	}

	filename := fmt.Sprintf("char_%s.png", storage.Filestamp())
	filePath, err := m.store.SaveImage(data, "characters", filename)
	if err != nil {
		log.Printf("characters: save generated image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save generated image"})
		return nil, err
	}

	asset := assets.Asset{
		ProjectID:          projectID,
		CharacterID:        characterID,
		FilePath:           filePath,
		Type:               assets.TypeCharacter,
		SystemPrompt:       &systemPrompt,
		UserPrompt:         &userPrompt,
		GenerationSettings: settings,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
		log.Printf("characters: record generated asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record generated asset"})
		return nil, err
	}
	return &asset, nil
}

func generationSettings(req generateCharacterRequest) datatypes.JSON {
	selected := make(map[string]string, 3)
	for key, value := range map[string]string{
		"background": req.BackgroundPreset,
		"style":      req.StylePreset,
		"angle":      req.AnglePreset,
	} {
		if strings.TrimSpace(value) != "" {
			selected[key] = value
		}
	}
	if len(selected) == 0 {
		return nil
	}
	raw, err := json.Marshal(selected)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func decodeInlineReferences(images []string) []imagegen.ImageContent {
	refs := make([]imagegen.ImageContent, 0, len(images))
	for _, img := range images {
		data := stripDataURL(img)
		if data == "" {
			continue
		}
		refs = append(refs, imagegen.ImageContent{MimeType: "image/png", Data: data})
	}
	return refs
}

var dataURLPrefix = "base64,"

func stripDataURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.Index(trimmed, dataURLPrefix); idx >= 0 && strings.HasPrefix(trimmed, "data:") {
		return trimmed[idx+len(dataURLPrefix):]
	}
	return trimmed
}
