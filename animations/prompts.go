package animations

import (
	"fmt"
	"math"
	"strings"

	"pixelsmith_back/characters"
)

// FramePromptParams describes one frame of a generative run. FrameIndex and
// TotalFrames are run-local: the first frame of a run is index 0 even when
// the animation already has committed frames.
type FramePromptParams struct {
	SequencePrompt      string
	FrameIndex          int
	TotalFrames         int
	PerFrameInstruction string
	CharacterName       string
	AnimationName       string
	AnglePreset         string
	Mode                ReferenceMode
}

// BuildFramePrompt renders the model prompt for a generative frame. It is
// pure and never fails; unknown angle presets contribute nothing.
func BuildFramePrompt(p FramePromptParams) string {
	mode := p.Mode
	if mode == "" {
		if p.FrameIndex == 0 {
			mode = ModeCharacter
		} else {
			mode = ModePrevious
		}
	}

	lines := []string{
		fmt.Sprintf("Generate frame %d of %d for a %q animation sequence.", p.FrameIndex+1, p.TotalFrames, p.AnimationName),
		"",
		"Character: " + p.CharacterName,
		"Animation: " + p.SequencePrompt,
	}

	if fragment := characters.AngleFragment(p.AnglePreset); fragment != "" {
		lines = append(lines, "View angle: "+fragment)
	}

	lines = append(lines, "")

	switch mode {
	case ModeCharacter:
		lines = append(lines,
			"The reference image shows the character. Use it to establish:",
			"- Exact visual style, proportions, and rendering",
			"- Color palette and character details",
			"",
			"This is the FIRST frame - create the starting pose for the animation.",
			"The pose should naturally lead into the subsequent motion.",
		)
	case ModeDual:
		lines = append(lines,
			"Two reference images are provided:",
			"1. CHARACTER reference (first image) - match this exact style and appearance",
			"2. PREVIOUS FRAME (second image) - continue the motion from this pose",
			"",
			motionProgress(p.FrameIndex, p.TotalFrames),
			"",
			"Requirements:",
			"- Match character style/colors from the character reference",
			"- ADVANCE the motion from the previous frame's pose",
			"- Keep consistent lighting and art style",
		)
	default:
		lines = append(lines,
			"The reference image shows the PREVIOUS frame in this sequence.",
			"",
			motionProgress(p.FrameIndex, p.TotalFrames),
			"",
			"Requirements:",
			"- Match the exact visual style from the reference",
			"- ADVANCE the motion - show the next phase of movement",
			"- Keep consistent lighting, proportions, and colors",
		)
	}

	if p.PerFrameInstruction != "" {
		lines = append(lines, "", "Specific instruction for this frame: "+p.PerFrameInstruction)
	}

	return strings.Join(lines, "\n")
}

func motionProgress(frameIndex, totalFrames int) string {
	if frameIndex == totalFrames-1 {
		return "This is the FINAL frame - complete the motion, returning toward the starting pose for seamless looping."
	}
	progress := int(math.Round(float64(frameIndex+1) / float64(totalFrames) * 100))
	return fmt.Sprintf("Frame %d of %d (%d%% through) - progress the motion naturally.", frameIndex+1, totalFrames, progress)
}

// ExtractionPromptParams describes one frame of a spritesheet extraction run.
type ExtractionPromptParams struct {
	FrameIndex    int
	TotalFrames   int
	CharacterName string
	AnimationName string
	AnglePreset   string
	Mode          ReferenceMode
	Cols          int
	Rows          int
}

// BuildExtractionPrompt renders the model prompt for extracting one grid cell
// from a spritesheet. The target cell is stated both 1-indexed for the model
// and 0-indexed for precision.
func BuildExtractionPrompt(p ExtractionPromptParams) string {
	col, row := GridCell(p.FrameIndex, p.Cols)

	lines := []string{
		fmt.Sprintf("EXTRACT frame %d of %d from the provided spritesheet.", p.FrameIndex+1, p.TotalFrames),
		"",
		"Character: " + p.CharacterName,
		"Animation: " + p.AnimationName,
	}

	if fragment := characters.AngleFragment(p.AnglePreset); fragment != "" {
		lines = append(lines, "View angle: "+fragment)
	}

	lines = append(lines,
		"",
		fmt.Sprintf("Spritesheet grid: %d columns × %d rows", p.Cols, p.Rows),
		fmt.Sprintf("Target cell: column %d, row %d (0-indexed: col %d, row %d)", col+1, row+1, col, row),
		"",
	)

	if p.Mode == ModeSprite {
		lines = append(lines,
			"The reference image is a SPRITESHEET containing multiple animation frames arranged in a grid.",
			"",
			"Instructions:",
			"- ISOLATE the frame at the specified grid position",
			"- Extract ONLY that single character pose from the spritesheet",
			"- Center the character in the output image",
			"- Maintain the exact visual style, proportions, and colors",
			"- Output a clean, single-frame image with transparent or matching background",
			"",
			"This is the FIRST frame - establish consistent positioning for subsequent extractions.",
		)
	} else {
		lines = append(lines,
			"Two reference images are provided:",
			"1. SPRITESHEET (first image) - the source containing all frames in a grid",
			"2. PREVIOUS EXTRACTED FRAME (second image) - use for position/scale reference",
			"",
			"Instructions:",
			"- ISOLATE the frame at the specified grid position from the spritesheet",
			"- Extract ONLY that single character pose",
			"- Match the EXACT center position and scale of the previous extracted frame",
			"- Maintain identical visual style, proportions, and colors",
			"- Output a clean, single-frame image with matching background style",
			"",
			extractionProgress(p.FrameIndex, p.TotalFrames),
		)
	}

	lines = append(lines,
		"",
		"CRITICAL: This is an EXTRACTION task, not generation. Copy the exact frame from the spritesheet.",
		"The character should be centered and occupy the same relative position as the previous frame.",
	)

	return strings.Join(lines, "\n")
}

func extractionProgress(frameIndex, totalFrames int) string {
	if frameIndex == totalFrames-1 {
		return fmt.Sprintf("This is the FINAL frame (%d of %d).", totalFrames, totalFrames)
	}
	progress := int(math.Round(float64(frameIndex+1) / float64(totalFrames) * 100))
	return fmt.Sprintf("Frame %d of %d (%d%% through extraction).", frameIndex+1, totalFrames, progress)
}
