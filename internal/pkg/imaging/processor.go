package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ProcessedImage holds a normalized image and its thumbnail
type ProcessedImage struct {
	Original    []byte
	Thumbnail   []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// Config for image processing
type Config struct {
	MaxWidth    int
	MaxHeight   int
	ThumbWidth  int
	ThumbHeight int
	Quality     int // JPEG quality 1-100
}

// DefaultConfig returns default processing config
func DefaultConfig() Config {
	return Config{
		MaxWidth:    2048,
		MaxHeight:   2048,
		ThumbWidth:  320,
		ThumbHeight: 320,
		Quality:     88,
	}
}

// Processor handles image processing
type Processor struct {
	config Config
}

// NewProcessor creates image processor
func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// Process decodes data, shrinks it to the configured bounds, re-encodes it
// (dropping any embedded metadata) and renders a center-cropped thumbnail.
// PNG stays PNG so QR codes and line art keep sharp edges; everything else
// becomes JPEG.
func (p *Processor) Process(data []byte) (*ProcessedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := img
	b := img.Bounds()
	if b.Dx() > p.config.MaxWidth || b.Dy() > p.config.MaxHeight {
		resized = imaging.Fit(img, p.config.MaxWidth, p.config.MaxHeight, imaging.Lanczos)
	}

	result := &ProcessedImage{
		Width:  resized.Bounds().Dx(),
		Height: resized.Bounds().Dy(),
	}
	if format == "png" {
		result.ContentType, result.Extension = "image/png", ".png"
	} else {
		result.ContentType, result.Extension = "image/jpeg", ".jpg"
	}

	if result.Original, err = p.encode(resized, format); err != nil {
		return nil, fmt.Errorf("failed to encode original: %w", err)
	}

	thumb := imaging.Fill(img, p.config.ThumbWidth, p.config.ThumbHeight, imaging.Center, imaging.Lanczos)
	if result.Thumbnail, err = p.encode(thumb, format); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return result, nil
}

func (p *Processor) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer

	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.config.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
