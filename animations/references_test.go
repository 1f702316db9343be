package animations

import (
	"testing"

	"pixelsmith_back/imagegen"

	"github.com/stretchr/testify/assert"
)

func TestGenerativeMode(t *testing.T) {
	assert.Equal(t, ModeCharacter, GenerativeMode(0))
	assert.Equal(t, ModePrevious, GenerativeMode(1))
	assert.Equal(t, ModePrevious, GenerativeMode(3))
	assert.Equal(t, ModeDual, GenerativeMode(4))
	assert.Equal(t, ModeDual, GenerativeMode(10))
}

func TestExtractionMode(t *testing.T) {
	assert.Equal(t, ModeSprite, ExtractionMode(0))
	assert.Equal(t, ModeDual, ExtractionMode(1))
	assert.Equal(t, ModeDual, ExtractionMode(7))
}

func TestGridCell(t *testing.T) {
	col, row := GridCell(0, 4)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)

	col, row = GridCell(5, 4)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1, row)

	col, row = GridCell(3, 2)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1, row)

	// degenerate grid never panics
	col, row = GridCell(3, 0)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)
}

func TestResolveReferences(t *testing.T) {
	seed := imagegen.ImageContent{MimeType: "image/png", Data: "seed"}
	previous := imagegen.ImageContent{MimeType: "image/png", Data: "previous"}

	assert.Equal(t, []imagegen.ImageContent{seed}, ResolveReferences(ModeCharacter, seed, previous))
	assert.Equal(t, []imagegen.ImageContent{seed}, ResolveReferences(ModeSprite, seed, previous))
	assert.Equal(t, []imagegen.ImageContent{previous}, ResolveReferences(ModePrevious, seed, previous))

	dual := ResolveReferences(ModeDual, seed, previous)
	assert.Len(t, dual, 2)
	assert.Equal(t, seed, dual[0], "seed must precede the previous frame")
	assert.Equal(t, previous, dual[1])
}
