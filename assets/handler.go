package assets

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"pixelsmith_back/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var validListFolders = map[string]bool{
	"characters": true,
	"sprites":    true,
	"reference":  true,
}

const referenceURLExpiry = 15 * time.Minute

// Module owns asset records, the local asset tree listing, and reference
// bundle ingestion into the object store.
type Module struct {
	db         *gorm.DB
	store      *storage.ImageStore
	references *storage.ReferenceStorage
}

// RegisterRoutes initialises the assets module and mounts its routes.
func RegisterRoutes(router *gin.Engine, store *storage.ImageStore, references *storage.ReferenceStorage) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Asset{}); err != nil {
		return nil, err
	}

	module := &Module{db: db, store: store, references: references}

	group := router.Group("/assets")
	group.GET("", module.handleListFolder)
	group.POST("", module.handleCreateAsset)
	group.GET("/:id", module.handleGetAsset)
	group.DELETE("/:id", module.handleDeleteAsset)
	group.POST("/:id/remove-background", module.handleRemoveBackground)

	router.POST("/projects/:id/references", module.handleUploadReferenceBundle)
	router.GET("/projects/:id/references", module.handleListReferences)

	return module, nil
}

// DB exposes the module's database handle.
func (m *Module) DB() *gorm.DB {
	return m.db
}

type createAssetRequest struct {
	ProjectID          uint64         `json:"project_id" binding:"required"`
	FilePath           string         `json:"file_path" binding:"required"`
	Type               string         `json:"type"`
	SystemPrompt       *string        `json:"system_prompt"`
	UserPrompt         *string        `json:"user_prompt"`
	ReferenceAssetIDs  []uint64       `json:"reference_asset_ids"`
	GenerationSettings datatypes.JSON `json:"generation_settings"`
	CharacterID        *uint64        `json:"character_id"`
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// handleListFolder lists raw image files from the local asset tree. This is
// the filesystem view, independent of Asset records.
func (m *Module) handleListFolder(c *gin.Context) {
	folder := c.Query("folder")
	if !validListFolders[folder] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder; must be characters, sprites, or reference"})
		return
	}

	images, err := m.store.ListFolder(folder)
	if err != nil {
		log.Printf("assets: list folder %q failed: %v", folder, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assets": images})
}

func (m *Module) handleCreateAsset(c *gin.Context) {
	var req createAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id and file_path are required"})
		return
	}

	assetType := req.Type
	if assetType == "" {
		assetType = TypeReference
	}

	asset := Asset{
		ProjectID:          req.ProjectID,
		CharacterID:        req.CharacterID,
		FilePath:           req.FilePath,
		Type:               assetType,
		SystemPrompt:       req.SystemPrompt,
		UserPrompt:         req.UserPrompt,
		ReferenceAssetIDs:  EncodeReferenceIDs(req.ReferenceAssetIDs),
		GenerationSettings: req.GenerationSettings,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&asset).Error; err != nil {
		log.Printf("assets: create failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create asset"})
		return
	}

	c.JSON(http.StatusCreated, asset)
}

func (m *Module) handleGetAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var asset Asset
	if err := m.db.WithContext(c.Request.Context()).First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}
		log.Printf("assets: load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load asset"})
		return
	}

	c.JSON(http.StatusOK, asset)
}

func (m *Module) handleDeleteAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var asset Asset
	if err := m.db.WithContext(c.Request.Context()).First(&asset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}
		log.Printf("assets: load for delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load asset"})
		return
	}

	if err := m.db.WithContext(c.Request.Context()).Delete(&Asset{}, "id = ?", id).Error; err != nil {
		log.Printf("assets: delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete asset"})
		return
	}

	// Stored bytes are cleaned up best-effort; the record is already gone.
	if asset.Type == TypeReference && m.references.Enabled() {
		if err := m.references.Remove(c.Request.Context(), asset.FilePath); err != nil {
			log.Printf("assets: remove reference object %q failed: %v", asset.FilePath, err)
		}
	} else if err := m.store.Remove(asset.FilePath); err != nil {
		log.Printf("assets: remove file %q failed: %v", asset.FilePath, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (m *Module) handleListReferences(c *gin.Context) {
	projectID, ok := parseID(c)
	if !ok {
		return
	}

	var refs []Asset
	if err := m.db.WithContext(c.Request.Context()).
		Where("project_id = ? AND type = ?", projectID, TypeReference).
		Order("created_at DESC").
		Find(&refs).Error; err != nil {
		log.Printf("assets: list references failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list references"})
		return
	}

	type referenceRecord struct {
		Asset
		URL string `json:"url,omitempty"`
	}

	records := make([]referenceRecord, 0, len(refs))
	for _, ref := range refs {
		record := referenceRecord{Asset: ref}
		if m.references.Enabled() {
			signed, err := m.references.PresignedURL(c.Request.Context(), ref.FilePath, referenceURLExpiry)
			if err != nil {
				log.Printf("assets: presign reference %q failed: %v", ref.FilePath, err)
			} else {
				record.URL = signed
			}
		}
		records = append(records, record)
	}

	c.JSON(http.StatusOK, gin.H{"references": records})
}
