package animations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFramePromptFirstFrame(t *testing.T) {
	prompt := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a running cycle",
		FrameIndex:     0,
		TotalFrames:    4,
		CharacterName:  "Hero",
		AnimationName:  "run",
		Mode:           ModeCharacter,
	})

	assert.Contains(t, prompt, `Generate frame 1 of 4 for a "run" animation sequence.`)
	assert.Contains(t, prompt, "Character: Hero")
	assert.Contains(t, prompt, "Animation: a running cycle")
	assert.Contains(t, prompt, "This is the FIRST frame")
	assert.NotContains(t, prompt, "View angle:")
	assert.NotContains(t, prompt, "PREVIOUS frame")
}

func TestBuildFramePromptProgressLine(t *testing.T) {
	prompt := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a jump",
		FrameIndex:     1,
		TotalFrames:    4,
		CharacterName:  "Hero",
		AnimationName:  "jump",
		Mode:           ModePrevious,
	})

	assert.Contains(t, prompt, "Frame 2 of 4 (50% through) - progress the motion naturally.")
	assert.Contains(t, prompt, "The reference image shows the PREVIOUS frame in this sequence.")
}

func TestBuildFramePromptFinalFrameClosesLoop(t *testing.T) {
	prompt := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a jump",
		FrameIndex:     3,
		TotalFrames:    4,
		CharacterName:  "Hero",
		AnimationName:  "jump",
		Mode:           ModePrevious,
	})

	assert.Contains(t, prompt, "This is the FINAL frame - complete the motion, returning toward the starting pose for seamless looping.")
}

func TestBuildFramePromptDualMode(t *testing.T) {
	prompt := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a walk",
		FrameIndex:     4,
		TotalFrames:    8,
		CharacterName:  "Hero",
		AnimationName:  "walk",
		Mode:           ModeDual,
	})

	assert.Contains(t, prompt, "Two reference images are provided:")
	assert.Contains(t, prompt, "1. CHARACTER reference (first image) - match this exact style and appearance")
	assert.Contains(t, prompt, "2. PREVIOUS FRAME (second image) - continue the motion from this pose")
}

func TestBuildFramePromptPerFrameInstruction(t *testing.T) {
	prompt := BuildFramePrompt(FramePromptParams{
		SequencePrompt:      "a wave",
		FrameIndex:          1,
		TotalFrames:         3,
		PerFrameInstruction: "raise the left arm",
		CharacterName:       "Hero",
		AnimationName:       "wave",
	})

	assert.True(t, strings.HasSuffix(prompt, "Specific instruction for this frame: raise the left arm"))
}

func TestBuildFramePromptAngleAndDefaults(t *testing.T) {
	withAngle := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a dash",
		FrameIndex:     0,
		TotalFrames:    2,
		CharacterName:  "Hero",
		AnimationName:  "dash",
		AnglePreset:    "side",
	})
	assert.Contains(t, withAngle, "View angle:")

	unknownAngle := BuildFramePrompt(FramePromptParams{
		SequencePrompt: "a dash",
		FrameIndex:     0,
		TotalFrames:    2,
		CharacterName:  "Hero",
		AnimationName:  "dash",
		AnglePreset:    "no-such-angle",
	})
	assert.NotContains(t, unknownAngle, "View angle:")

	// empty mode defaults by index
	first := BuildFramePrompt(FramePromptParams{SequencePrompt: "x", FrameIndex: 0, TotalFrames: 2, CharacterName: "a", AnimationName: "b"})
	assert.Contains(t, first, "This is the FIRST frame")
	second := BuildFramePrompt(FramePromptParams{SequencePrompt: "x", FrameIndex: 1, TotalFrames: 2, CharacterName: "a", AnimationName: "b"})
	assert.Contains(t, second, "PREVIOUS frame")
}

func TestBuildExtractionPromptFirstFrame(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionPromptParams{
		FrameIndex:    0,
		TotalFrames:   4,
		CharacterName: "Hero",
		AnimationName: "walk",
		Mode:          ModeSprite,
		Cols:          4,
		Rows:          1,
	})

	assert.Contains(t, prompt, "EXTRACT frame 1 of 4 from the provided spritesheet.")
	assert.Contains(t, prompt, "Spritesheet grid: 4 columns × 1 rows")
	assert.Contains(t, prompt, "Target cell: column 1, row 1 (0-indexed: col 0, row 0)")
	assert.Contains(t, prompt, "The reference image is a SPRITESHEET")
	assert.Contains(t, prompt, "This is the FIRST frame - establish consistent positioning for subsequent extractions.")
	assert.Contains(t, prompt, "CRITICAL: This is an EXTRACTION task, not generation.")
}

func TestBuildExtractionPromptGridAddressing(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionPromptParams{
		FrameIndex:    5,
		TotalFrames:   8,
		CharacterName: "Hero",
		AnimationName: "walk",
		Mode:          ModeDual,
		Cols:          4,
		Rows:          2,
	})

	assert.Contains(t, prompt, "Target cell: column 2, row 2 (0-indexed: col 1, row 1)")
	assert.Contains(t, prompt, "1. SPRITESHEET (first image)")
	assert.Contains(t, prompt, "2. PREVIOUS EXTRACTED FRAME (second image)")
	assert.Contains(t, prompt, "Frame 6 of 8 (75% through extraction).")
}

func TestBuildExtractionPromptFinalFrame(t *testing.T) {
	prompt := BuildExtractionPrompt(ExtractionPromptParams{
		FrameIndex:    3,
		TotalFrames:   4,
		CharacterName: "Hero",
		AnimationName: "walk",
		Mode:          ModeDual,
		Cols:          4,
		Rows:          1,
	})

	assert.Contains(t, prompt, "This is the FINAL frame (4 of 4).")
}
