package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
)

const (
	syntheticImageSize = 1024
	syntheticTile      = 128
)

// contentSeed is a short stable digest of model and prompt. Identical
// requests map to identical synthetic output and storage keys.
func contentSeed(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:8])
}

func syntheticText(model, prompt string) string {
	return fmt.Sprintf("[synthetic %s] %s", contentSeed(model, prompt), strings.TrimSpace(prompt))
}

// syntheticImage paints a square PNG: a vertical gradient between two seed
// colours with a checkerboard of a third colour laid over alternate tiles.
func syntheticImage(seed string, size int) []byte {
	sum := sha256.Sum256([]byte(seed))
	top := color.RGBA{sum[0], sum[1], sum[2], 255}
	bottom := color.RGBA{sum[3], sum[4], sum[5], 255}
	tile := color.RGBA{sum[6], sum[7], sum[8], 255}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		row := blend(top, bottom, y, size)
		for x := 0; x < size; x++ {
			if (x/syntheticTile+y/syntheticTile)%2 == 0 && x%syntheticTile < syntheticTile/2 {
				img.SetRGBA(x, y, blend(row, tile, 1, 2))
				continue
			}
			img.SetRGBA(x, y, row)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func blend(a, b color.RGBA, num, den int) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8((int(x)*(den-num) + int(y)*num) / den)
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}
