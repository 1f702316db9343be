package imageops

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// RemoveBackgroundOptions tunes corner flood-fill background removal.
type RemoveBackgroundOptions struct {
	// FuzzPercent is the per-channel color tolerance in percent (default 10).
	FuzzPercent float64
	// CornerX/CornerY locate the background color sample (default 0,0).
	CornerX int
	CornerY int
}

// RemoveBackground clears the background of an image by flood filling from a
// corner sample, turning every reachable pixel within the fuzz tolerance
// transparent. Works best on solid or near-solid backgrounds. Returns PNG.
func RemoveBackground(input []byte, opts RemoveBackgroundOptions) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("imageops: decode image: %w", err)
	}

	fuzz := opts.FuzzPercent
	if fuzz <= 0 {
		fuzz = 10
	}
	tolerance := uint32(fuzz / 100 * 0xffff)

	img := imaging.Clone(src)
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	startX, startY := opts.CornerX, opts.CornerY
	if startX < 0 || startX >= width || startY < 0 || startY >= height {
		return nil, fmt.Errorf("imageops: corner (%d,%d) outside %dx%d image", startX, startY, width, height)
	}

	target := img.NRGBAAt(startX, startY)

	visited := make([]bool, width*height)
	queue := []image.Point{{X: startX, Y: startY}}
	visited[startY*width+startX] = true

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if !withinFuzz(img.NRGBAAt(p.X, p.Y), target, tolerance) {
			continue
		}
		img.SetNRGBA(p.X, p.Y, color.NRGBA{})

		for _, n := range []image.Point{{p.X + 1, p.Y}, {p.X - 1, p.Y}, {p.X, p.Y + 1}, {p.X, p.Y - 1}} {
			if n.X < 0 || n.X >= width || n.Y < 0 || n.Y >= height {
				continue
			}
			idx := n.Y*width + n.X
			if visited[idx] {
				continue
			}
			visited[idx] = true
			queue = append(queue, n)
		}
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imageops: encode png: %w", err)
	}
	return out.Bytes(), nil
}

func withinFuzz(c, target color.NRGBA, tolerance uint32) bool {
	return channelDiff(c.R, target.R) <= tolerance &&
		channelDiff(c.G, target.G) <= tolerance &&
		channelDiff(c.B, target.B) <= tolerance &&
		channelDiff(c.A, target.A) <= tolerance
}

func channelDiff(a, b uint8) uint32 {
	// Scale 8-bit channels up to 16-bit so the tolerance math matches the
	// quantum range convention used by the fuzz percentage.
	av := uint32(a) * 0x101
	bv := uint32(b) * 0x101
	if av > bv {
		return av - bv
	}
	return bv - av
}

// SplitSpritesheet crops a grid image into cols*rows individual PNG frames in
// row-major order (left to right, top to bottom). Cell size is the floor of
// the sheet dimensions over the grid, matching how sheets are authored.
func SplitSpritesheet(input []byte, cols, rows int) ([][]byte, error) {
	if cols < 1 || rows < 1 {
		return nil, errors.New("imageops: cols and rows must be at least 1")
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("imageops: decode spritesheet: %w", err)
	}

	bounds := src.Bounds()
	tileW := bounds.Dx() / cols
	tileH := bounds.Dy() / rows
	if tileW < 1 || tileH < 1 {
		return nil, fmt.Errorf("imageops: %dx%d sheet too small for %dx%d grid", bounds.Dx(), bounds.Dy(), cols, rows)
	}

	frames := make([][]byte, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			rect := image.Rect(
				bounds.Min.X+col*tileW,
				bounds.Min.Y+row*tileH,
				bounds.Min.X+(col+1)*tileW,
				bounds.Min.Y+(row+1)*tileH,
			)
			frame := imaging.Crop(src, rect)

			var out bytes.Buffer
			if err := imaging.Encode(&out, frame, imaging.PNG); err != nil {
				return nil, fmt.Errorf("imageops: encode frame (%d,%d): %w", col, row, err)
			}
			frames = append(frames, out.Bytes())
		}
	}

	return frames, nil
}

// Dimensions reports the pixel width and height of an encoded image.
func Dimensions(input []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return 0, 0, fmt.Errorf("imageops: decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
