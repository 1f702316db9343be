package animations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"pixelsmith_back/assets"
	"pixelsmith_back/imagegen"
	"pixelsmith_back/realtime"
	"pixelsmith_back/spritesheets"
	"pixelsmith_back/storage"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Preparation failures the handler maps to client errors.
var (
	ErrNotFound       = errors.New("animations: not found")
	ErrInvalidRequest = errors.New("animations: invalid request")
)

type runKind int

const (
	runGenerate runKind = iota
	runExtract
)

// Pipeline produces animation frames sequentially through the image model,
// committing each success independently so one bad frame never aborts the
// run or rolls back earlier frames.
type Pipeline struct {
	db        *gorm.DB
	generator imagegen.Generator
	store     *storage.ImageStore
	hub       *realtime.Hub
	cache     *animationCache
}

// NewPipeline wires the pipeline's collaborators. hub and cache may be nil.
func NewPipeline(db *gorm.DB, generator imagegen.Generator, store *storage.ImageStore, hub *realtime.Hub, cache *animationCache) *Pipeline {
	return &Pipeline{db: db, generator: generator, store: store, hub: hub, cache: cache}
}

// GenerateParams is the validated input of a generative run.
type GenerateParams struct {
	AnimationID      uint64
	CharacterAssetID uint64
	SequencePrompt   string
	FrameCount       int
	AnglePreset      string
	PerFrame         map[int]string
}

// Run is a prepared pipeline execution: all lookups and image loads have
// succeeded, so Execute can stream without needing to fail the HTTP exchange.
type Run struct {
	p *Pipeline

	kind          runKind
	animation     Animation
	characterName string

	// seed is the anchor reference: character artwork for generative runs,
	// the spritesheet image for extraction runs.
	seed        imagegen.ImageContent
	seedAssetID uint64

	totalFrames   int
	startingIndex int
	frameFolder   []string
	frameSlug     string

	// generative
	sequencePrompt string
	anglePreset    string
	perFrame       map[int]string

	// extraction
	spriteSheetID uint64
	cols          int
	rows          int
}

func (p *Pipeline) loadAnimation(ctx context.Context, id uint64) (Animation, error) {
	var animation Animation
	err := p.db.WithContext(ctx).
		Preload("Character").
		Preload("Frames", func(db *gorm.DB) *gorm.DB {
			return db.Order("frame_index ASC")
		}).
		First(&animation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return animation, fmt.Errorf("%w: animation %d", ErrNotFound, id)
	}
	if err != nil {
		return animation, fmt.Errorf("animations: load animation: %w", err)
	}
	if animation.Character == nil {
		return animation, fmt.Errorf("animations: animation %d has no character", id)
	}
	return animation, nil
}

func (p *Pipeline) newRun(animation Animation) *Run {
	return &Run{
		p:             p,
		animation:     animation,
		characterName: animation.Character.Name,
		startingIndex: len(animation.Frames),
		frameSlug:     storage.Slugify(animation.Character.Name) + "_" + storage.Slugify(animation.Name),
		frameFolder: []string{
			strconv.FormatUint(animation.ProjectID, 10),
			"frames",
			storage.Slugify(animation.Name),
		},
	}
}

// PrepareGenerate resolves a generative run: the animation, the character
// asset used as the style anchor, and its image bytes.
func (p *Pipeline) PrepareGenerate(ctx context.Context, params GenerateParams) (*Run, error) {
	if params.CharacterAssetID == 0 || params.SequencePrompt == "" || params.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: character asset, sequence prompt and frame count are required", ErrInvalidRequest)
	}

	animation, err := p.loadAnimation(ctx, params.AnimationID)
	if err != nil {
		return nil, err
	}

	var seedAsset struct {
		ID       uint64
		FilePath string
	}
	err = p.db.WithContext(ctx).Table("assets").
		Select("id", "file_path").
		Where("id = ?", params.CharacterAssetID).
		Take(&seedAsset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: character asset %d", ErrNotFound, params.CharacterAssetID)
	}
	if err != nil {
		return nil, fmt.Errorf("animations: load character asset: %w", err)
	}

	seedData, err := p.store.Load(seedAsset.FilePath)
	if err != nil {
		return nil, fmt.Errorf("animations: load character image: %w", err)
	}

	run := p.newRun(animation)
	run.kind = runGenerate
	run.seed = imagegen.ImageContent{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(seedData)}
	run.seedAssetID = seedAsset.ID
	run.totalFrames = params.FrameCount
	run.sequencePrompt = params.SequencePrompt
	run.anglePreset = params.AnglePreset
	run.perFrame = params.PerFrame

	if _, err := p.store.EnsureDir(run.frameFolder...); err != nil {
		return nil, err
	}
	return run, nil
}

// PrepareExtract resolves an extraction run: the animation, the spritesheet
// and its grid layout, and the sheet image bytes.
func (p *Pipeline) PrepareExtract(ctx context.Context, animationID, spriteSheetID uint64) (*Run, error) {
	if spriteSheetID == 0 {
		return nil, fmt.Errorf("%w: sprite sheet id is required", ErrInvalidRequest)
	}

	animation, err := p.loadAnimation(ctx, animationID)
	if err != nil {
		return nil, err
	}

	var sheet spritesheets.SpriteSheet
	err = p.db.WithContext(ctx).Preload("Asset").First(&sheet, "id = ?", spriteSheetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: spritesheet %d", ErrNotFound, spriteSheetID)
	}
	if err != nil {
		return nil, fmt.Errorf("animations: load spritesheet: %w", err)
	}
	if sheet.Asset == nil {
		return nil, fmt.Errorf("animations: spritesheet %d has no image asset", spriteSheetID)
	}

	settings, err := spritesheets.DecodeSettings(sheet.GenerationSettings)
	if err != nil {
		return nil, err
	}

	seedData, err := p.store.Load(sheet.Asset.FilePath)
	if err != nil {
		return nil, fmt.Errorf("animations: load spritesheet image: %w", err)
	}

	run := p.newRun(animation)
	run.kind = runExtract
	run.seed = imagegen.ImageContent{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(seedData)}
	run.seedAssetID = sheet.AssetID
	run.totalFrames = settings.FrameCount
	run.anglePreset = settings.AnglePreset
	run.spriteSheetID = sheet.ID
	run.cols = settings.Cols
	run.rows = settings.Rows

	if _, err := p.store.EnsureDir(run.frameFolder...); err != nil {
		return nil, err
	}
	return run, nil
}

// TotalFrames reports how many frames the run will attempt.
func (r *Run) TotalFrames() int {
	return r.totalFrames
}

// Execute walks the run's frames in order, emitting progress through emit.
// The previous-frame accumulator starts at the seed image and only advances
// on success, so a failed frame leaves the last good image as the reference
// for the next attempt. An emit error means the client is gone and the run
// stops; a frame error is reported and skipped. The terminal complete event
// carries the number of frames that actually committed.
func (r *Run) Execute(ctx context.Context, emit func(event string, payload any) error) {
	if err := emit("start", startEvent{TotalFrames: r.totalFrames}); err != nil {
		return
	}

	previous := r.seed
	successCount := 0

	for i := 0; i < r.totalFrames; i++ {
		if ctx.Err() != nil {
			log.Printf("animations: run for animation %d canceled after %d frames", r.animation.ID, successCount)
			return
		}

		frameIndex := r.startingIndex + i
		if err := emit("frame_start", frameStartEvent{Index: frameIndex}); err != nil {
			return
		}
		r.broadcast("frame_start", frameStartEvent{Index: frameIndex})

		asset, image, err := r.produceFrame(ctx, i, frameIndex, previous)
		if err != nil {
			log.Printf("animations: frame %d failed for animation %d: %v", frameIndex, r.animation.ID, err)
			if err := emit("frame_error", frameErrorEvent{Index: frameIndex, Error: err.Error()}); err != nil {
				return
			}
			r.broadcast("frame_error", frameErrorEvent{Index: frameIndex, Error: err.Error()})
			continue
		}

		previous = image
		successCount++

		completed := frameCompleteEvent{Index: frameIndex, AssetID: asset.ID, FilePath: asset.FilePath}
		if err := emit("frame_complete", completed); err != nil {
			return
		}
		r.broadcast("frame_complete", completed)
	}

	if err := emit("complete", completeEvent{TotalGenerated: successCount}); err != nil {
		return
	}
	r.broadcast("complete", completeEvent{TotalGenerated: successCount})
}

func (r *Run) broadcast(eventType string, payload any) {
	if r.p.hub == nil {
		return
	}
	r.p.hub.BroadcastProject(r.animation.ProjectID, r.animation.ID, eventType, payload)
}

// produceFrame runs one model call and commits the result: image on disk,
// asset row, frame row, and the animation's frame count, in that order.
func (r *Run) produceFrame(ctx context.Context, i, frameIndex int, previous imagegen.ImageContent) (*assets.Asset, imagegen.ImageContent, error) {
	var (
		prompt     string
		refs       []imagegen.ImageContent
		userPrompt *string
		provenance any
	)

	switch r.kind {
	case runGenerate:
		mode := GenerativeMode(i)
		instruction := r.perFrame[i]
		prompt = BuildFramePrompt(FramePromptParams{
			SequencePrompt:      r.sequencePrompt,
			FrameIndex:          i,
			TotalFrames:         r.totalFrames,
			PerFrameInstruction: instruction,
			CharacterName:       r.characterName,
			AnimationName:       r.animation.Name,
			AnglePreset:         r.anglePreset,
			Mode:                mode,
		})
		refs = ResolveReferences(mode, r.seed, previous)
		if instruction != "" {
			userPrompt = &instruction
		}
		provenance = frameProvenance{
			SequencePrompt: r.sequencePrompt,
			FrameIndex:     frameIndex,
			TotalFrames:    r.totalFrames,
		}
	case runExtract:
		mode := ExtractionMode(i)
		prompt = BuildExtractionPrompt(ExtractionPromptParams{
			FrameIndex:    i,
			TotalFrames:   r.totalFrames,
			CharacterName: r.characterName,
			AnimationName: r.animation.Name,
			AnglePreset:   r.anglePreset,
			Mode:          mode,
			Cols:          r.cols,
			Rows:          r.rows,
		})
		refs = ResolveReferences(mode, r.seed, previous)
		col, row := GridCell(i, r.cols)
		provenance = extractionProvenance{
			SourceType:    SourceSpritesheet,
			SpriteSheetID: r.spriteSheetID,
			FrameIndex:    frameIndex,
			TotalFrames:   r.totalFrames,
			GridPosition:  gridPosition{Col: col, Row: row},
		}
	}

	result, err := r.p.generator.Generate(ctx, prompt, refs, imagegen.Options{AspectRatio: "1:1"})
	if err != nil {
		return nil, imagegen.ImageContent{}, err
	}

	data, err := base64.StdEncoding.DecodeString(result.Image.Data)
	if err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("decode model image: %w", err)
	}

	filename := fmt.Sprintf("%s_%d_%s.png", r.frameSlug, frameIndex, storage.Filestamp())
	segments := append(append([]string{}, r.frameFolder...), filename)
	filePath, err := r.p.store.SaveImage(data, segments...)
	if err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("save frame image: %w", err)
	}

	settings, err := json.Marshal(provenance)
	if err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("encode provenance: %w", err)
	}

	asset := assets.Asset{
		ProjectID:          r.animation.ProjectID,
		CharacterID:        &r.animation.CharacterID,
		FilePath:           filePath,
		Type:               assets.TypeFrame,
		SystemPrompt:       &prompt,
		UserPrompt:         userPrompt,
		ReferenceAssetIDs:  assets.EncodeReferenceIDs([]uint64{r.seedAssetID}),
		GenerationSettings: datatypes.JSON(settings),
	}
	if err := r.p.db.WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("record asset: %w", err)
	}

	frame := Frame{
		AnimationID: r.animation.ID,
		AssetID:     asset.ID,
		FrameIndex:  frameIndex,
	}
	if err := r.p.db.WithContext(ctx).Create(&frame).Error; err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("record frame: %w", err)
	}

	if err := r.p.db.WithContext(ctx).Model(&Animation{}).
		Where("id = ?", r.animation.ID).
		Update("frame_count", frameIndex+1).Error; err != nil {
		return nil, imagegen.ImageContent{}, fmt.Errorf("update frame count: %w", err)
	}

	// Pollers read the detail through the cache; drop it as each frame lands
	// so mid-run reads see the committed state, not a pre-run snapshot. Uses a
	// fresh context so a disconnecting stream cannot leave a stale entry.
	r.p.cache.invalidate(context.Background(), r.animation.ID)

	return &asset, imagegen.ImageContent{MimeType: "image/png", Data: result.Image.Data}, nil
}
