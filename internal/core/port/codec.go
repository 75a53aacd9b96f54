package port

import "context"

type ImageCodec interface {
	// Resize stretches the image at src to exactly width×height, flattens it onto white and writes it to dst in the
	// format implied by the dst extension. quality applies to lossy formats.
	Resize(ctx context.Context, src, dst string, width, height, quality int) error
	// Contain fits the image at src inside a width×height canvas preserving its aspect ratio, pads the rest with
	// opaque white and writes it to dst.
	Contain(ctx context.Context, src, dst string, width, height, quality int) error
	// Encode re-encodes the image at src into dst at the given quality without changing its dimensions.
	Encode(ctx context.Context, src, dst string, quality int) error
}
