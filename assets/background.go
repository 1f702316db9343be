package assets

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"pixelsmith_back/imageops"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type removeBackgroundRequest struct {
	FuzzPercent float64 `json:"fuzz_percent"`
	CornerX     int     `json:"corner_x"`
	CornerY     int     `json:"corner_y"`
	Replace     bool    `json:"replace"`
}

// handleRemoveBackground flood-fills the background color away from an
// asset's image. By default the cleaned image is stored as a new asset;
// with replace=true the original file is overwritten in place.
func (m *Module) handleRemoveBackground(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req removeBackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
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
	if asset.Type == TypeReference {
		c.JSON(http.StatusConflict, gin.H{"error": "reference material cannot be edited in place"})
		return
	}

	data, err := m.store.Load(asset.FilePath)
	if err != nil {
		log.Printf("assets: load image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load asset image"})
		return
	}

	cleaned, err := imageops.RemoveBackground(data, imageops.RemoveBackgroundOptions{
		FuzzPercent: req.FuzzPercent,
		CornerX:     req.CornerX,
		CornerY:     req.CornerY,
	})
	if err != nil {
		log.Printf("assets: remove background failed: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to process asset image"})
		return
	}

	folder, name := path.Split(asset.FilePath)
	folder = strings.Trim(strings.TrimPrefix(folder, "/assets/"), "/")

	if req.Replace {
		if _, err := m.store.SaveImage(cleaned, folder, name); err != nil {
			log.Printf("assets: overwrite image failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cleaned image"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"asset": asset, "file_path": asset.FilePath})
		return
	}

	base := strings.TrimSuffix(name, path.Ext(name))
	cleanedName := fmt.Sprintf("%s_nobg.png", base)

	filePath, err := m.store.SaveImage(cleaned, folder, cleanedName)
	if err != nil {
		log.Printf("assets: save cleaned image failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cleaned image"})
		return
	}

	cleanedAsset := Asset{
		ProjectID:          asset.ProjectID,
		CharacterID:        asset.CharacterID,
		FilePath:           filePath,
		Type:               asset.Type,
		SystemPrompt:       asset.SystemPrompt,
		UserPrompt:         asset.UserPrompt,
		GenerationSettings: asset.GenerationSettings,
	}
	if err := m.db.WithContext(c.Request.Context()).Create(&cleanedAsset).Error; err != nil {
		log.Printf("assets: record cleaned asset failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record cleaned asset"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"asset": cleanedAsset, "file_path": filePath})
}
