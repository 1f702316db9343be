package scenes

import (
	"encoding/base64"
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
	"gorm.io/gorm"
)

// Module aggregates scene CRUD and background generation.
type Module struct {
	db        *gorm.DB
	generator imagegen.Generator
	store     *storage.ImageStore
}

// RegisterRoutes initialises the scenes module and mounts its routes.
func RegisterRoutes(router *gin.Engine, generator imagegen.Generator, store *storage.ImageStore) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Scene{}); err != nil {
		return nil, err
	}

	module := &Module{db: db, generator: generator, store: store}

	group := router.Group("/scenes")
	group.GET("/presets", module.handleGetPresets)
	group.POST("", module.handleCreateScene)
	group.GET("/:id", module.handleGetScene)
	group.PATCH("/:id", module.handleUpdateScene)
	group.DELETE("/:id", module.handleDeleteScene)
	group.POST("/generate", module.handleGenerateScene)

	return module, nil
}

// DB exposes the module's database handle.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createSceneRequest struct {
	Name        string  `json:"name" binding:"required"`
	ProjectID   uint64  `json:"project_id" binding:"required"`
	Description *string `json:"description"`
	ArtStyle    *string `json:"art_style"`
	Mood        *string `json:"mood"`
	TimeOfDay   *string `json:"time_of_day"`
	Environment *string `json:"environment"`
	StyleNotes  *string `json:"style_notes"`
}

type updateSceneRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	ArtStyle       *string `json:"art_style"`
	Mood           *string `json:"mood"`
	TimeOfDay      *string `json:"time_of_day"`
	Environment    *string `json:"environment"`
	StyleNotes     *string `json:"style_notes"`
	PrimaryAssetID *uint64 `json:"primary_asset_id"`
}

type generateSceneRequest struct {
	SceneID     uint64 `json:"scene_id" binding:"required"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
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

func (m *Module) handleCreateScene(c *gin.Context) {
	var req createSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and project_id are required"})
		return
	}

	scene := Scene{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		ArtStyle:    req.ArtStyle,
		Mood:        req.Mood,
		TimeOfDay:   req.TimeOfDay,
		Environment: req.Environment,
		StyleNotes:  req.StyleNotes,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&scene).Error; err != nil {
		log.Printf("scenes: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create scene"})
		return
	}

	c.JSON(http.StatusCreated, scene)
}

func (m *Module) handleGetScene(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var scene Scene
	if err := m.db.WithContext(c.Request.Context()).Preload("PrimaryAsset").First(&scene, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
			return
		}
		log.Printf("scenes: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scene"})
		return
	}

	c.JSON(http.StatusOK, scene)
}

func (m *Module) handleUpdateScene(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make(map[string]any, 8)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = req.Description
	}
	if req.ArtStyle != nil {
		updates["art_style"] = req.ArtStyle
	}
	if req.Mood != nil {
		updates["mood"] = req.Mood
	}
	if req.TimeOfDay != nil {
		updates["time_of_day"] = req.TimeOfDay
	}
	if req.StyleNotes != nil {
		updates["style_notes"] = req.StyleNotes
	}
	if req.Environment != nil {
		updates["environment"] = req.Environment
	}
	if req.PrimaryAssetID != nil {
		updates["primary_asset_id"] = *req.PrimaryAssetID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).Model(&Scene{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Printf("scenes: update failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update scene"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
		return
	}

	var scene Scene
	if err := m.db.WithContext(c.Request.Context()).Preload("PrimaryAsset").First(&scene, "id = ?", id).Error; err != nil {
		log.Printf("scenes: reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload scene"})
		return
	}
	c.JSON(http.StatusOK, scene)
}

func (m *Module) handleDeleteScene(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result := m.db.WithContext(c.Request.Context()).Delete(&Scene{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("scenes: delete failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete scene"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleGenerateScene composes the preset prompt from the stored scene
// fields, generates a background image and sets it as the scene's primary
// asset.
func (m *Module) handleGenerateScene(c *gin.Context) {
	var req generateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scene_id is required"})
		return
	}

	var scene Scene
	if err := m.db.WithContext(c.Request.Context()).First(&scene, "id = ?", req.SceneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scene not found"})
			return
		}
		log.Printf("scenes: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load scene"})
		return
	}

	systemPrompt := BuildSystemPrompt(
		derefOr(scene.ArtStyle), derefOr(scene.Mood), derefOr(scene.TimeOfDay), derefOr(scene.Environment),
	)
	parts := []string{systemPrompt}
	if desc := strings.TrimSpace(derefOr(scene.Description)); desc != "" {
		parts = append(parts, "Scene description: "+desc)
	}
	if notes := strings.TrimSpace(derefOr(scene.StyleNotes)); notes != "" {
		parts = append(parts, "Additional style notes: "+notes)
	}
	if extra := strings.TrimSpace(req.Prompt); extra != "" {
		parts = append(parts, extra)
	}
	fullPrompt := strings.Join(parts, "\n\n")

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	result, err := m.generator.Generate(c.Request.Context(), fullPrompt, nil, imagegen.Options{AspectRatio: aspect})
	if err != nil {
		log.Printf("scenes: generate failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "scene generation failed"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(result.Image.Data)
	if err != nil {
		log.Printf("scenes: decode generated image failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "model returned an unreadable image"})
		return
	}

	filename := fmt.Sprintf("scene_%s_%s.png", storage.Slugify(scene.Name), storage.Filestamp())
	filePath, err := m.store.SaveImage(data, "scenes", filename)
	if err != nil {
		log.Printf("scenes: save generated image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save generated image"})
		return
	}

	asset := assets.Asset{
		ProjectID:    scene.ProjectID,
		FilePath:     filePath,
		Type:         assets.TypeScene,
		SystemPrompt: &fullPrompt,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
		log.Printf("scenes: record generated asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record generated asset"})
		return
	}

	if err := m.db.WithContext(c.Request.Context()).
		Model(&Scene{}).
		Where("id = ?", scene.ID).
		Update("primary_asset_id", asset.ID).Error; err != nil {
		log.Printf("scenes: set primary asset failed: %v", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"asset":     asset,
		"file_path": filePath,
		"text":      result.Text,
	})
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
