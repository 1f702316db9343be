package animations

import "pixelsmith_back/imagegen"

// ReferenceMode names which reference images accompany a frame request.
type ReferenceMode string

const (
	// ModeCharacter sends only the character artwork (first generated frame).
	ModeCharacter ReferenceMode = "character"
	// ModePrevious sends only the previous frame (short-range continuity).
	ModePrevious ReferenceMode = "previous"
	// ModeDual sends the seed image plus the previous frame (long sequences,
	// prevents style drift).
	ModeDual ReferenceMode = "dual"
	// ModeSprite sends only the spritesheet (first extracted frame).
	ModeSprite ReferenceMode = "sprite"
)

// GenerativeMode picks the reference mode for the i-th frame of a generative
// run: frame 0 establishes the character, frames 1-3 chain off the previous
// frame only, and frame 4 onward re-anchors on the character artwork.
func GenerativeMode(i int) ReferenceMode {
	switch {
	case i == 0:
		return ModeCharacter
	case i >= 4:
		return ModeDual
	default:
		return ModePrevious
	}
}

// ExtractionMode picks the reference mode for the i-th frame of an extraction
// run: the spritesheet alone first, then spritesheet plus previous extraction.
func ExtractionMode(i int) ReferenceMode {
	if i == 0 {
		return ModeSprite
	}
	return ModeDual
}

// GridCell maps a row-major frame index onto its spritesheet cell.
func GridCell(index, cols int) (col, row int) {
	if cols <= 0 {
		return 0, 0
	}
	return index % cols, index / cols
}

// ResolveReferences assembles the reference images for a frame request. The
// seed image (character artwork or spritesheet) always precedes the previous
// frame when both are sent.
func ResolveReferences(mode ReferenceMode, seed, previous imagegen.ImageContent) []imagegen.ImageContent {
	switch mode {
	case ModeCharacter, ModeSprite:
		return []imagegen.ImageContent{seed}
	case ModePrevious:
		return []imagegen.ImageContent{previous}
	case ModeDual:
		return []imagegen.ImageContent{seed, previous}
	default:
		return nil
	}
}
