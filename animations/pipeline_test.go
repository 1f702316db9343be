package animations

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pixelsmith_back/assets"
	"pixelsmith_back/characters"
	"pixelsmith_back/imagegen"
	"pixelsmith_back/spritesheets"
	"pixelsmith_back/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testPNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type generatorCall struct {
	prompt string
	refs   []imagegen.ImageContent
}

// fakeGenerator returns a distinct image per call and fails on demand.
type fakeGenerator struct {
	t      *testing.T
	failOn map[int]bool
	calls  []generatorCall
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, refs []imagegen.ImageContent, _ imagegen.Options) (imagegen.Result, error) {
	call := len(f.calls)
	f.calls = append(f.calls, generatorCall{prompt: prompt, refs: refs})
	if f.failOn[call] {
		return imagegen.Result{}, errors.New("model unavailable")
	}
	data := testPNG(f.t, uint8(call+1))
	return imagegen.Result{
		Image: imagegen.ImageContent{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(data)},
	}, nil
}

func (f *fakeGenerator) Edit(ctx context.Context, _ imagegen.ImageContent, prompt string, refs []imagegen.ImageContent, opts imagegen.Options) (imagegen.Result, error) {
	return f.Generate(ctx, prompt, refs, opts)
}

type recordedEvent struct {
	name    string
	payload any
}

func collectEvents(events *[]recordedEvent) func(string, any) error {
	return func(name string, payload any) error {
		*events = append(*events, recordedEvent{name: name, payload: payload})
		return nil
	}
}

type pipelineFixture struct {
	db        *gorm.DB
	store     *storage.ImageStore
	generator *fakeGenerator
	pipeline  *Pipeline

	character characters.Character
	seedAsset assets.Asset
	animation Animation
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&Animation{}, &Frame{}, &assets.Asset{}, &characters.Character{}, &spritesheets.SpriteSheet{},
	))

	store, err := storage.NewImageStore(t.TempDir())
	require.NoError(t, err)

	generator := &fakeGenerator{t: t, failOn: map[int]bool{}}

	f := &pipelineFixture{
		db:        db,
		store:     store,
		generator: generator,
		pipeline:  NewPipeline(db, generator, store, nil, nil),
	}

	f.character = characters.Character{ProjectID: 1, Name: "Hero"}
	require.NoError(t, db.Create(&f.character).Error)

	seedPath, err := store.SaveImage(testPNG(t, 200), "characters", "hero.png")
	require.NoError(t, err)
	f.seedAsset = assets.Asset{ProjectID: 1, FilePath: seedPath, Type: assets.TypeCharacter}
	require.NoError(t, db.Create(&f.seedAsset).Error)

	f.animation = Animation{ProjectID: 1, CharacterID: f.character.ID, Name: "Run Cycle"}
	require.NoError(t, db.Create(&f.animation).Error)

	return f
}

func (f *pipelineFixture) generateRun(t *testing.T, frameCount int) []recordedEvent {
	t.Helper()
	run, err := f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      f.animation.ID,
		CharacterAssetID: f.seedAsset.ID,
		SequencePrompt:   "a running cycle",
		FrameCount:       frameCount,
	})
	require.NoError(t, err)

	var events []recordedEvent
	run.Execute(context.Background(), collectEvents(&events))
	return events
}

func eventNames(events []recordedEvent) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.name)
	}
	return names
}

func TestPipelineGeneratesFramesInOrder(t *testing.T) {
	f := newPipelineFixture(t)

	events := f.generateRun(t, 3)

	assert.Equal(t, []string{
		"start",
		"frame_start", "frame_complete",
		"frame_start", "frame_complete",
		"frame_start", "frame_complete",
		"complete",
	}, eventNames(events))
	assert.Equal(t, startEvent{TotalFrames: 3}, events[0].payload)
	assert.Equal(t, completeEvent{TotalGenerated: 3}, events[len(events)-1].payload)

	var frames []Frame
	require.NoError(t, f.db.Order("frame_index ASC").Find(&frames, "animation_id = ?", f.animation.ID).Error)
	require.Len(t, frames, 3)
	for i, frame := range frames {
		assert.Equal(t, i, frame.FrameIndex)
	}

	var animation Animation
	require.NoError(t, f.db.First(&animation, "id = ?", f.animation.ID).Error)
	assert.Equal(t, 3, animation.FrameCount)

	// every committed frame has a stored image and a prompt-carrying asset
	var frameAssets []assets.Asset
	require.NoError(t, f.db.Find(&frameAssets, "type = ?", assets.TypeFrame).Error)
	require.Len(t, frameAssets, 3)
	for _, asset := range frameAssets {
		data, err := f.store.Load(asset.FilePath)
		assert.NoError(t, err)
		assert.NotEmpty(t, data)
		require.NotNil(t, asset.SystemPrompt)
		assert.Contains(t, *asset.SystemPrompt, "Run Cycle")
	}
}

func TestPipelineReferenceProgression(t *testing.T) {
	f := newPipelineFixture(t)

	f.generateRun(t, 5)

	calls := f.generator.calls
	require.Len(t, calls, 5)

	seed := calls[0].refs[0]

	// frame 0: character artwork only
	require.Len(t, calls[0].refs, 1)

	// frames 1-3: previous frame only
	for i := 1; i <= 3; i++ {
		require.Len(t, calls[i].refs, 1, "frame %d", i)
		assert.NotEqual(t, seed.Data, calls[i].refs[0].Data, "frame %d must chain off the previous frame", i)
	}

	// frame 4: character artwork first, previous frame second
	require.Len(t, calls[4].refs, 2)
	assert.Equal(t, seed, calls[4].refs[0])
	assert.NotEqual(t, seed.Data, calls[4].refs[1].Data)
}

func TestPipelinePartialFailureContinues(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.failOn[1] = true

	events := f.generateRun(t, 3)

	assert.Equal(t, []string{
		"start",
		"frame_start", "frame_complete",
		"frame_start", "frame_error",
		"frame_start", "frame_complete",
		"complete",
	}, eventNames(events))
	assert.Equal(t, frameErrorEvent{Index: 1, Error: "model unavailable"}, events[4].payload)
	assert.Equal(t, completeEvent{TotalGenerated: 2}, events[len(events)-1].payload)

	// the failed index stays vacant; committed frames keep their indices
	var frames []Frame
	require.NoError(t, f.db.Order("frame_index ASC").Find(&frames, "animation_id = ?", f.animation.ID).Error)
	require.Len(t, frames, 2)
	assert.Equal(t, 0, frames[0].FrameIndex)
	assert.Equal(t, 2, frames[1].FrameIndex)

	var animation Animation
	require.NoError(t, f.db.First(&animation, "id = ?", f.animation.ID).Error)
	assert.Equal(t, 3, animation.FrameCount)

	// after the failure, frame 2 references the last successful image (frame 0)
	frame0Image := testPNG(t, 1)
	require.Len(t, f.generator.calls[2].refs, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(frame0Image), f.generator.calls[2].refs[0].Data)
}

func TestPipelineAppendsAfterExistingFrames(t *testing.T) {
	f := newPipelineFixture(t)

	f.generateRun(t, 2)
	f.generateRun(t, 2)

	var frames []Frame
	require.NoError(t, f.db.Order("frame_index ASC").Find(&frames, "animation_id = ?", f.animation.ID).Error)
	require.Len(t, frames, 4)
	for i, frame := range frames {
		assert.Equal(t, i, frame.FrameIndex)
	}

	var animation Animation
	require.NoError(t, f.db.First(&animation, "id = ?", f.animation.ID).Error)
	assert.Equal(t, 4, animation.FrameCount)
}

func TestPipelineStopsWhenEmitFails(t *testing.T) {
	f := newPipelineFixture(t)

	run, err := f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      f.animation.ID,
		CharacterAssetID: f.seedAsset.ID,
		SequencePrompt:   "a running cycle",
		FrameCount:       4,
	})
	require.NoError(t, err)

	sent := 0
	run.Execute(context.Background(), func(string, any) error {
		sent++
		if sent > 3 {
			return errors.New("client went away")
		}
		return nil
	})

	// start, frame_start, frame_complete landed; the second frame_start
	// failed to send and the run stopped without generating more
	assert.Len(t, f.generator.calls, 1)
}

func TestPipelinePrepareGenerateValidation(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      f.animation.ID,
		CharacterAssetID: f.seedAsset.ID,
		SequencePrompt:   "",
		FrameCount:       4,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      99999,
		CharacterAssetID: f.seedAsset.ID,
		SequencePrompt:   "x",
		FrameCount:       4,
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      f.animation.ID,
		CharacterAssetID: 99999,
		SequencePrompt:   "x",
		FrameCount:       4,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPipelineExtractRun(t *testing.T) {
	f := newPipelineFixture(t)

	sheetPath, err := f.store.SaveImage(testPNG(t, 100), "sprites", "sheet.png")
	require.NoError(t, err)
	sheetAsset := assets.Asset{ProjectID: 1, FilePath: sheetPath, Type: assets.TypeSpritesheet}
	require.NoError(t, f.db.Create(&sheetAsset).Error)

	settings, err := spritesheets.EncodeSettings(spritesheets.Settings{FrameCount: 4, Cols: 2, Rows: 2})
	require.NoError(t, err)
	sheet := spritesheets.SpriteSheet{
		ProjectID:          1,
		CharacterID:        f.character.ID,
		AssetID:            sheetAsset.ID,
		Name:               "Run Sheet",
		GenerationSettings: settings,
	}
	require.NoError(t, f.db.Create(&sheet).Error)

	run, err := f.pipeline.PrepareExtract(context.Background(), f.animation.ID, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, run.TotalFrames())

	var events []recordedEvent
	run.Execute(context.Background(), collectEvents(&events))

	assert.Equal(t, completeEvent{TotalGenerated: 4}, events[len(events)-1].payload)

	calls := f.generator.calls
	require.Len(t, calls, 4)

	// frame 0: spritesheet only; later frames: spritesheet first, previous second
	require.Len(t, calls[0].refs, 1)
	sheetRef := calls[0].refs[0]
	for i := 1; i < 4; i++ {
		require.Len(t, calls[i].refs, 2, "frame %d", i)
		assert.Equal(t, sheetRef, calls[i].refs[0])
	}

	// grid addressing walks the sheet row-major
	assert.Contains(t, calls[0].prompt, "Target cell: column 1, row 1 (0-indexed: col 0, row 0)")
	assert.Contains(t, calls[3].prompt, "Target cell: column 2, row 2 (0-indexed: col 1, row 1)")

	var frames []Frame
	require.NoError(t, f.db.Order("frame_index ASC").Find(&frames, "animation_id = ?", f.animation.ID).Error)
	assert.Len(t, frames, 4)
}

func TestPipelinePrepareExtractMissingSheet(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.PrepareExtract(context.Background(), f.animation.ID, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPrepareGenerateCreatesFrameDirectory(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.PrepareGenerate(context.Background(), GenerateParams{
		AnimationID:      f.animation.ID,
		CharacterAssetID: f.seedAsset.ID,
		SequencePrompt:   "a running cycle",
		FrameCount:       2,
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(f.store.BaseDir(), "1", "frames", "run-cycle"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// delRecorder intercepts redis commands in place of a live server, keeping
// only the keys removed by DEL. Commands are swallowed without dialing.
type delRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *delRecorder) DialHook(next redis.DialHook) redis.DialHook { return next }

func (r *delRecorder) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "del") && len(cmd.Args()) > 1 {
			r.mu.Lock()
			r.keys = append(r.keys, fmt.Sprint(cmd.Args()[1]))
			r.mu.Unlock()
		}
		return nil
	}
}

func (r *delRecorder) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(context.Context, []redis.Cmder) error { return nil }
}

func TestPipelineInvalidatesDetailCachePerFrame(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.failOn[1] = true

	recorder := &delRecorder{}
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	client.AddHook(recorder)
	f.pipeline.cache = newAnimationCache(client)

	events := f.generateRun(t, 3)
	require.Equal(t, "complete", events[len(events)-1].name)

	// each committed frame drops the cached detail as it lands; the failed
	// frame commits nothing and drops nothing
	key := fmt.Sprintf("animations:detail:%d", f.animation.ID)
	require.Len(t, recorder.keys, 2)
	for _, deleted := range recorder.keys {
		assert.Equal(t, key, deleted)
	}
}
