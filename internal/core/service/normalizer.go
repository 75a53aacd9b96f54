package service

import (
	"context"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
)

// Normalizer brings images to the envelope's pixel footprint. Each call writes
// exactly one file and leaves its input untouched.
type Normalizer struct {
	codec    port.ImageCodec
	envelope domain.Envelope
}

func NewNormalizer(codec port.ImageCodec, envelope domain.Envelope) *Normalizer {
	return &Normalizer{codec: codec, envelope: envelope}
}

// Normalize stretches src to exactly PixelWidth×PixelHeight.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string, quality int) error {
	return n.codec.Resize(ctx, src, dst, n.envelope.PixelWidth, n.envelope.PixelHeight, quality)
}

// Upscale contain-fits src into the envelope canvas grown by scale, padding
// with white, at maximum quality. It returns the canvas size.
func (n *Normalizer) Upscale(ctx context.Context, src, dst string, scale float64) (int, int, error) {
	width, height := n.envelope.Canvas(scale)

	if err := n.codec.Contain(ctx, src, dst, width, height, domain.MaxQuality); err != nil {
		return 0, 0, err
	}

	return width, height, nil
}
