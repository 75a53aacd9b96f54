package converter

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// Imaging encodes images in process with the imaging library.
type Imaging struct {
	filter imaging.ResampleFilter
}

func NewImaging() *Imaging {
	return &Imaging{filter: imaging.Lanczos}
}

func (c *Imaging) Resize(ctx context.Context, src, dst string, width, height, quality int) error {
	img, err := decode(ctx, src)
	if err != nil {
		return err
	}

	resized := imaging.Resize(img, width, height, c.filter)

	return encode(ctx, flatten(resized), dst, quality)
}

func (c *Imaging) Contain(ctx context.Context, src, dst string, width, height, quality int) error {
	img, err := decode(ctx, src)
	if err != nil {
		return err
	}

	fitWidth, fitHeight := containSize(img.Bounds().Dx(), img.Bounds().Dy(), width, height)
	resized := imaging.Resize(img, fitWidth, fitHeight, c.filter)

	canvas := imaging.New(width, height, color.White)
	offset := image.Pt((width-fitWidth)/2, (height-fitHeight)/2)

	return encode(ctx, imaging.Overlay(canvas, resized, offset, 1), dst, quality)
}

func (c *Imaging) Encode(ctx context.Context, src, dst string, quality int) error {
	img, err := decode(ctx, src)
	if err != nil {
		return err
	}

	return encode(ctx, flatten(img), dst, quality)
}

// containSize scales w×h to the largest size that fits inside maxW×maxH.
func containSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}

	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fitW := min(maxW, max(1, int(math.Round(float64(w)*ratio))))
	fitH := min(maxH, max(1, int(math.Round(float64(h)*ratio))))

	return fitW, fitH
}

// flatten draws img onto opaque white so transparent areas do not turn black
// in formats without alpha.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)

	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1)
}

func decode(ctx context.Context, src string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("%w: opening source: %w", domain.ErrIO, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}

	return img, nil
}

func encode(ctx context.Context, img image.Image, dst string, quality int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCodec, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", domain.ErrIO, filepath.Base(dst), err)
	}

	if err := imaging.Encode(f, img, format, imaging.JPEGQuality(quality)); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", domain.ErrCodec, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", domain.ErrIO, filepath.Base(dst), err)
	}

	log.Debug().Str("path", dst).Int("quality", quality).
		Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).Msg("encoded image")

	return nil
}
