package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 20, A: 255})
		}
	}
	return img
}

func TestProcess_ShrinksLargeImages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(400, 200), nil))

	p := NewProcessor(Config{MaxWidth: 100, MaxHeight: 100, ThumbWidth: 20, ThumbHeight: 20, Quality: 80})
	out, err := p.Process(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)
	assert.Equal(t, "image/jpeg", out.ContentType)

	thumb, _, err := image.Decode(bytes.NewReader(out.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, 20, thumb.Bounds().Dx())
}

func TestProcess_KeepsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(10, 10)))

	out, err := NewProcessor(DefaultConfig()).Process(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "image/png", out.ContentType)
	assert.Equal(t, ".png", out.Extension)
	assert.Equal(t, 10, out.Width)
}

func TestProcess_RejectsGarbage(t *testing.T) {
	_, err := NewProcessor(DefaultConfig()).Process([]byte("not an image"))
	assert.Error(t, err)
}
