package animations

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"pixelsmith_back/cache"
	"pixelsmith_back/characters"
	"pixelsmith_back/imagegen"
	"pixelsmith_back/realtime"
	"pixelsmith_back/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Module owns animation CRUD, frame maintenance and the two streaming
// pipelines that fill animations with frames.
type Module struct {
	db       *gorm.DB
	pipeline *Pipeline
	cache    *animationCache
}

// RegisterRoutes initialises the animations module and mounts its routes.
func RegisterRoutes(router *gin.Engine, generator imagegen.Generator, store *storage.ImageStore, hub *realtime.Hub) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Animation{}, &Frame{}); err != nil {
		return nil, err
	}

	var detailCache *animationCache
	if redisClient, err := cache.Client(); err != nil {
		log.Printf("animations: cache disabled: %v", err)
	} else {
		detailCache = newAnimationCache(redisClient)
	}

	module := &Module{
		db:       db,
		cache:    detailCache,
		pipeline: NewPipeline(db, generator, store, hub, detailCache),
	}

	group := router.Group("/animations")
	group.POST("", module.handleCreateAnimation)
	group.GET("/:id", module.handleGetAnimation)
	group.PATCH("/:id", module.handleUpdateAnimation)
	group.DELETE("/:id", module.handleDeleteAnimation)
	group.POST("/:id/generate", module.handleGenerateFrames)
	group.POST("/:id/extract", module.handleExtractFrames)
	group.POST("/:id/reorder", module.handleReorderFrames)

	router.DELETE("/frames/:id", module.handleDeleteFrame)

	return module, nil
}

// DB exposes the module's database handle.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createAnimationRequest struct {
	Name             string          `json:"name" binding:"required"`
	CharacterID      uint64          `json:"character_id" binding:"required"`
	Description      *string         `json:"description"`
	FrameCount       int             `json:"frame_count"`
	GenerationConfig json.RawMessage `json:"generation_config"`
}

type updateAnimationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	FrameCount  *int    `json:"frame_count"`
}

type perFrameInstruction struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
}

type generateFramesRequest struct {
	CharacterAssetID     uint64                `json:"character_asset_id" binding:"required"`
	SequencePrompt       string                `json:"sequence_prompt" binding:"required"`
	FrameCount           int                   `json:"frame_count" binding:"required"`
	AnglePreset          string                `json:"angle_preset"`
	PerFrameInstructions []perFrameInstruction `json:"per_frame_instructions"`
}

type extractFramesRequest struct {
	SpriteSheetID uint64 `json:"sprite_sheet_id" binding:"required"`
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (m *Module) handleCreateAnimation(c *gin.Context) {
	var req createAnimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and character_id are required"})
		return
	}

	var character characters.Character
	if err := m.db.WithContext(c.Request.Context()).First(&character, "id = ?", req.CharacterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
			return
		}
		log.Printf("animations: load character failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load character"})
		return
	}

	var settings datatypes.JSON
	if len(req.GenerationConfig) > 0 {
		source, err := DecodeGenerationSource(datatypes.JSON(req.GenerationConfig))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		settings, err = EncodeGenerationSource(source)
		if err != nil {
			log.Printf("animations: encode generation source failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store generation settings"})
			return
		}
	}

	frameCount := req.FrameCount
	if frameCount <= 0 {
		frameCount = 4
	}

	animation := Animation{
		ProjectID:          character.ProjectID,
		CharacterID:        req.CharacterID,
		Name:               req.Name,
		Description:        req.Description,
		FrameCount:         frameCount,
		GenerationSettings: settings,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&animation).Error; err != nil {
		log.Printf("animations: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create animation"})
		return
	}

	c.JSON(http.StatusCreated, animation)
}

func (m *Module) handleGetAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if cached, err := m.cache.get(c.Request.Context(), id); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("animations: cache read failed: %v", err)
	}

	var animation Animation
	if err := m.db.WithContext(c.Request.Context()).
		Preload("Character").
		Preload("Character.PrimaryAsset").
		Preload("Frames", func(db *gorm.DB) *gorm.DB {
			return db.Order("frame_index ASC")
		}).
		Preload("Frames.Asset").
		First(&animation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "animation not found"})
			return
		}
		log.Printf("animations: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load animation"})
		return
	}

	m.cache.store(c.Request.Context(), &animation)
	c.JSON(http.StatusOK, animation)
}

func (m *Module) handleUpdateAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateAnimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updates := make(map[string]any, 3)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = req.Description
	}
	if req.FrameCount != nil {
		updates["frame_count"] = *req.FrameCount
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	result := m.db.WithContext(c.Request.Context()).Model(&Animation{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		log.Printf("animations: update failed: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update animation"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "animation not found"})
		return
	}

	m.cache.invalidate(c.Request.Context(), id)

	var animation Animation
	if err := m.db.WithContext(c.Request.Context()).
		Preload("Frames", func(db *gorm.DB) *gorm.DB {
			return db.Order("frame_index ASC")
		}).
		First(&animation, "id = ?", id).Error; err != nil {
		log.Printf("animations: reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reload animation"})
		return
	}
	c.JSON(http.StatusOK, animation)
}

func (m *Module) handleDeleteAnimation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := m.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Frame{}, "animation_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&Animation{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "animation not found"})
		return
	}
	if err != nil {
		log.Printf("animations: delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete animation"})
		return
	}

	m.cache.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleGenerateFrames prepares a generative run and streams its progress
// as server-sent events. Preparation failures are plain JSON errors; once
// streaming starts, per-frame failures ride the stream instead.
func (m *Module) handleGenerateFrames(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req generateFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "character_asset_id, sequence_prompt and frame_count are required"})
		return
	}

	perFrame := make(map[int]string, len(req.PerFrameInstructions))
	for _, instruction := range req.PerFrameInstructions {
		if instruction.Prompt != "" {
			perFrame[instruction.Index] = instruction.Prompt
		}
	}

	run, err := m.pipeline.PrepareGenerate(c.Request.Context(), GenerateParams{
		AnimationID:      id,
		CharacterAssetID: req.CharacterAssetID,
		SequencePrompt:   req.SequencePrompt,
		FrameCount:       req.FrameCount,
		AnglePreset:      req.AnglePreset,
		PerFrame:         perFrame,
	})
	if err != nil {
		m.respondPrepareError(c, err)
		return
	}

	m.streamRun(c, run)
}

// handleExtractFrames prepares a spritesheet extraction run and streams its
// progress the same way as generation.
func (m *Module) handleExtractFrames(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req extractFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sprite_sheet_id is required"})
		return
	}

	run, err := m.pipeline.PrepareExtract(c.Request.Context(), id, req.SpriteSheetID)
	if err != nil {
		m.respondPrepareError(c, err)
		return
	}

	m.streamRun(c, run)
}

func (m *Module) respondPrepareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("animations: prepare run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare run"})
	}
}

func (m *Module) streamRun(c *gin.Context, run *Run) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	sseHeaders(c)
	writer := newSSEWriter(c.Writer, flusher)
	run.Execute(c.Request.Context(), writer.Send)
}
