package animations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type framesFixture struct {
	db     *gorm.DB
	router *gin.Engine

	animation Animation
	frames    []Frame
}

func newFramesFixture(t *testing.T, frameCount int) *framesFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Animation{}, &Frame{}))

	module := &Module{db: db}
	router := gin.New()
	router.POST("/animations/:id/reorder", module.handleReorderFrames)
	router.DELETE("/frames/:id", module.handleDeleteFrame)

	f := &framesFixture{db: db, router: router}

	f.animation = Animation{ProjectID: 1, CharacterID: 1, Name: "Walk", FrameCount: frameCount}
	require.NoError(t, db.Create(&f.animation).Error)

	for i := 0; i < frameCount; i++ {
		frame := Frame{AnimationID: f.animation.ID, AssetID: uint64(100 + i), FrameIndex: i}
		require.NoError(t, db.Create(&frame).Error)
		f.frames = append(f.frames, frame)
	}

	return f
}

func (f *framesFixture) currentFrames(t *testing.T) []Frame {
	t.Helper()
	var frames []Frame
	require.NoError(t, f.db.Order("frame_index ASC").Find(&frames, "animation_id = ?", f.animation.ID).Error)
	return frames
}

func TestDeleteFrameReindexes(t *testing.T) {
	f := newFramesFixture(t, 4)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/frames/%d", f.frames[1].ID), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	frames := f.currentFrames(t)
	require.Len(t, frames, 3)

	// indices stay contiguous and ordering is preserved
	expectedAssets := []uint64{100, 102, 103}
	for i, frame := range frames {
		assert.Equal(t, i, frame.FrameIndex)
		assert.Equal(t, expectedAssets[i], frame.AssetID)
	}

	var animation Animation
	require.NoError(t, f.db.First(&animation, "id = ?", f.animation.ID).Error)
	assert.Equal(t, 3, animation.FrameCount)
}

func TestDeleteFrameNotFound(t *testing.T) {
	f := newFramesFixture(t, 1)

	req := httptest.NewRequest(http.MethodDelete, "/frames/99999", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (f *framesFixture) reorder(t *testing.T, frameIDs []uint64) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]any{"frame_ids": frameIDs})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/animations/%d/reorder", f.animation.ID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestReorderFrames(t *testing.T) {
	f := newFramesFixture(t, 3)

	rec := f.reorder(t, []uint64{f.frames[2].ID, f.frames[0].ID, f.frames[1].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	frames := f.currentFrames(t)
	require.Len(t, frames, 3)
	assert.Equal(t, f.frames[2].ID, frames[0].ID)
	assert.Equal(t, f.frames[0].ID, frames[1].ID)
	assert.Equal(t, f.frames[1].ID, frames[2].ID)
}

func TestReorderFramesKeepsFixedPoint(t *testing.T) {
	f := newFramesFixture(t, 3)

	// frame 0 keeps its index; only 1 and 2 swap. A frame already at its
	// target index must not be mistaken for one outside the animation.
	rec := f.reorder(t, []uint64{f.frames[0].ID, f.frames[2].ID, f.frames[1].ID})
	require.Equal(t, http.StatusOK, rec.Code)

	frames := f.currentFrames(t)
	require.Len(t, frames, 3)
	assert.Equal(t, f.frames[0].ID, frames[0].ID)
	assert.Equal(t, f.frames[2].ID, frames[1].ID)
	assert.Equal(t, f.frames[1].ID, frames[2].ID)
}

func TestReorderFramesRejectsDuplicateIDs(t *testing.T) {
	f := newFramesFixture(t, 3)

	rec := f.reorder(t, []uint64{f.frames[0].ID, f.frames[0].ID, f.frames[1].ID})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	frames := f.currentFrames(t)
	for i, frame := range frames {
		assert.Equal(t, f.frames[i].ID, frame.ID)
		assert.Equal(t, i, frame.FrameIndex)
	}
}

func TestReorderFramesRejectsForeignFrame(t *testing.T) {
	f := newFramesFixture(t, 3)

	otherAnimation := Animation{ProjectID: 1, CharacterID: 1, Name: "Other"}
	require.NoError(t, f.db.Create(&otherAnimation).Error)
	foreign := Frame{AnimationID: otherAnimation.ID, AssetID: 999, FrameIndex: 0}
	require.NoError(t, f.db.Create(&foreign).Error)

	rec := f.reorder(t, []uint64{f.frames[1].ID, foreign.ID, f.frames[0].ID})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// nothing moved: the reorder is all-or-nothing
	frames := f.currentFrames(t)
	for i, frame := range frames {
		assert.Equal(t, f.frames[i].ID, frame.ID)
		assert.Equal(t, i, frame.FrameIndex)
	}
}
