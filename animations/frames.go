package animations

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type reorderRequest struct {
	FrameIDs []uint64 `json:"frame_ids" binding:"required"`
}

// handleReorderFrames rewrites every frame index of an animation from the
// given permutation. The whole reorder happens in one transaction: if any
// listed frame does not belong to the animation, nothing changes.
func (m *Module) handleReorderFrames(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame_ids must be an array"})
		return
	}

	err := m.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Ownership is checked up front with a count rather than per-update
		// RowsAffected: mysql reports changed rows, so a frame that already
		// sits at its target index would be misread as foreign. The count
		// also rejects duplicate ids, which would silently collapse indices.
		var owned int64
		if err := tx.Model(&Frame{}).
			Where("animation_id = ? AND id IN ?", id, req.FrameIDs).
			Count(&owned).Error; err != nil {
			return err
		}
		if owned != int64(len(req.FrameIDs)) {
			return fmt.Errorf("animations: %d frame ids do not belong to animation %d", int64(len(req.FrameIDs))-owned, id)
		}

		for index, frameID := range req.FrameIDs {
			if err := tx.Model(&Frame{}).
				Where("id = ? AND animation_id = ?", frameID, id).
				Update("frame_index", index).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("animations: reorder failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reorder frames"})
		return
	}

	m.cache.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleDeleteFrame removes one frame, closes the index gap by shifting
// every later frame down one, and refreshes the animation's frame count.
func (m *Module) handleDeleteFrame(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var frame Frame
	if err := m.db.WithContext(c.Request.Context()).First(&frame, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "frame not found"})
			return
		}
		log.Printf("animations: load frame failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load frame"})
		return
	}

	err := m.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Frame{}, "id = ?", frame.ID).Error; err != nil {
			return err
		}

		if err := tx.Model(&Frame{}).
			Where("animation_id = ? AND frame_index > ?", frame.AnimationID, frame.FrameIndex).
			Update("frame_index", gorm.Expr("frame_index - 1")).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&Frame{}).Where("animation_id = ?", frame.AnimationID).Count(&remaining).Error; err != nil {
			return err
		}

		return tx.Model(&Animation{}).
			Where("id = ?", frame.AnimationID).
			Update("frame_count", remaining).Error
	})
	if err != nil {
		log.Printf("animations: delete frame failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete frame"})
		return
	}

	m.cache.invalidate(c.Request.Context(), frame.AnimationID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
