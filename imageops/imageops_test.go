package imageops

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gridImage(t *testing.T, cols, rows, cell int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, cols*cell, rows*cell))
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			shade := uint8((row*cols + col) * 20)
			for y := row * cell; y < (row+1)*cell; y++ {
				for x := col * cell; x < (col+1)*cell; x++ {
					img.Set(x, y, color.NRGBA{R: shade, G: shade, B: shade, A: 255})
				}
			}
		}
	}
	return encodePNG(t, img)
}

func TestSplitSpritesheet(t *testing.T) {
	input := gridImage(t, 4, 2, 8)

	tiles, err := SplitSpritesheet(input, 4, 2)
	require.NoError(t, err)
	require.Len(t, tiles, 8)

	for i, tile := range tiles {
		img, err := png.Decode(bytes.NewReader(tile))
		require.NoError(t, err, "tile %d", i)
		bounds := img.Bounds()
		assert.Equal(t, 8, bounds.Dx(), "tile %d", i)
		assert.Equal(t, 8, bounds.Dy(), "tile %d", i)

		// row-major order: tile i carries its own shade
		r, _, _, _ := img.At(bounds.Min.X+4, bounds.Min.Y+4).RGBA()
		assert.Equal(t, uint32(i*20)*257, r, "tile %d", i)
	}
}

func TestSplitSpritesheetInvalidGrid(t *testing.T) {
	input := gridImage(t, 2, 1, 8)

	_, err := SplitSpritesheet(input, 0, 1)
	assert.Error(t, err)

	_, err = SplitSpritesheet([]byte("not an image"), 2, 2)
	assert.Error(t, err)
}

func TestDimensions(t *testing.T) {
	input := gridImage(t, 3, 2, 10)

	w, h, err := Dimensions(input)
	require.NoError(t, err)
	assert.Equal(t, 30, w)
	assert.Equal(t, 20, h)

	_, _, err = Dimensions([]byte("garbage"))
	assert.Error(t, err)
}

func TestRemoveBackground(t *testing.T) {
	// white background, red square in the middle
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := 6; y < 10; y++ {
		for x := 6; x < 10; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 0, B: 0, A: 255})
		}
	}

	out, err := RemoveBackground(encodePNG(t, img), RemoveBackgroundOptions{})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	_, _, _, cornerAlpha := decoded.At(0, 0).RGBA()
	assert.Zero(t, cornerAlpha, "background corner should be transparent")

	_, _, _, centerAlpha := decoded.At(8, 8).RGBA()
	assert.NotZero(t, centerAlpha, "subject must stay opaque")
}

func TestRemoveBackgroundDoesNotLeakThroughEdges(t *testing.T) {
	// background split by a full-height bar: only the flood-connected side
	// of the background is cleared
	img := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := 0; y < 12; y++ {
		img.Set(6, y, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	}

	out, err := RemoveBackground(encodePNG(t, img), RemoveBackgroundOptions{})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	_, _, _, leftAlpha := decoded.At(2, 6).RGBA()
	assert.Zero(t, leftAlpha)

	_, _, _, rightAlpha := decoded.At(9, 6).RGBA()
	assert.NotZero(t, rightAlpha, "region across the bar is not connected to the corner")
}
