package service

import (
	"context"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"sigfmt/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	outputPrefix  = "formatted_signature"
	workingPrefix = "temp_signature"
	passPrefix    = "intermediate_signature"
	upscalePrefix = "upscaled_signature"

	jpegExt = ".jpg"
)

// Encoder re-encodes images until their byte size fits the envelope.
type Encoder struct {
	normalizer *Normalizer
	codec      port.ImageCodec
	store      port.FileStore
	envelope   domain.Envelope
	metrics    *metrics.EncoderMetrics
}

func NewEncoder(codec port.ImageCodec, store port.FileStore, envelope domain.Envelope,
	m *metrics.EncoderMetrics) *Encoder {
	return &Encoder{
		normalizer: NewNormalizer(codec, envelope),
		codec:      codec,
		store:      store,
		envelope:   envelope,
		metrics:    m,
	}
}

func (e *Encoder) Envelope() domain.Envelope {
	return e.envelope
}

// Format produces an output JPEG for the image at src. Every path it writes is
// recorded in files before the write happens, so a failed request still hands
// all its files to cleanup.
func (e *Encoder) Format(ctx context.Context, files *domain.FileSet, src string) (domain.Attempt, error) {
	l := log.Ctx(ctx)

	size, err := e.store.Size(src)
	if err != nil {
		return domain.Attempt{}, err
	}

	if e.envelope.Contains(size) {
		l.Debug().Int64("bytes", size).Msg("source already in envelope, encoding once")
		return e.fastPath(ctx, files, src)
	}

	att, err := e.searchQuality(ctx, files, src)
	if err != nil {
		return domain.Attempt{}, err
	}

	if att.ByteSize < e.envelope.MinBytes {
		l.Debug().Int64("bytes", att.ByteSize).Int("quality", att.Quality).Msg("quality exhausted, upscaling")
		return e.upscale(ctx, files, att)
	}

	return att, nil
}

func (e *Encoder) fastPath(ctx context.Context, files *domain.FileSet, src string) (domain.Attempt, error) {
	output, err := e.store.NewPath(files, domain.RoleOutput, outputPrefix, jpegExt)
	if err != nil {
		return domain.Attempt{}, err
	}

	if err := e.normalizer.Normalize(ctx, src, output, domain.MaxQuality); err != nil {
		return domain.Attempt{}, err
	}
	e.metrics.RecordPass(string(domain.PhaseFast))

	size, err := e.store.Size(output)
	if err != nil {
		return domain.Attempt{}, err
	}

	return domain.Attempt{
		Phase:       domain.PhaseFast,
		Pass:        1,
		Quality:     domain.MaxQuality,
		ScaleFactor: 1,
		Width:       e.envelope.PixelWidth,
		Height:      e.envelope.PixelHeight,
		ByteSize:    size,
		Path:        output,
	}, nil
}

// searchQuality normalizes once, then walks quality until the size fits,
// quality saturates or the search would turn back. Each pass encodes the
// previous pass's output and is then moved over the working copy, so a
// request never holds more than one pass besides it. The accepted result
// ends up at a fresh output path.
func (e *Encoder) searchQuality(ctx context.Context, files *domain.FileSet, src string) (domain.Attempt, error) {
	l := log.Ctx(ctx)

	working, err := e.store.NewPath(files, domain.RoleIntermediate, workingPrefix, jpegExt)
	if err != nil {
		return domain.Attempt{}, err
	}

	if err := e.normalizer.Normalize(ctx, src, working, domain.MaxQuality); err != nil {
		return domain.Attempt{}, err
	}

	var prev domain.Attempt
	att := e.envelope.FirstAttempt()
	for {
		att, err = e.encodePass(ctx, files, working, att)
		if err != nil {
			return domain.Attempt{}, err
		}

		l.Debug().Int("pass", att.Pass).Int("quality", att.Quality).Int64("bytes", att.ByteSize).
			Msg("quality pass")

		next, ok := e.envelope.NextQuality(att)
		if !ok {
			break
		}

		if err := e.store.Replace(att.Path, working); err != nil {
			return domain.Attempt{}, err
		}
		files.Forget(att.Path)

		prev = att
		prev.Path = working
		att = next
	}

	if e.envelope.Overshot(att) {
		l.Warn().Int("quality", att.Quality).Int64("bytes", att.ByteSize).Int("previousQuality", prev.Quality).
			Int64("previousBytes", prev.ByteSize).Msg("no quality fits the size window, keeping the smaller pass")
		att = prev
	}

	output, err := e.store.NewPath(files, domain.RoleOutput, outputPrefix, jpegExt)
	if err != nil {
		return domain.Attempt{}, err
	}

	if err := e.store.Replace(att.Path, output); err != nil {
		return domain.Attempt{}, err
	}
	files.Forget(att.Path)
	att.Path = output

	return att, nil
}

// encodePass encodes the working copy into a fresh pass path and measures it.
func (e *Encoder) encodePass(ctx context.Context, files *domain.FileSet, working string,
	att domain.Attempt) (domain.Attempt, error) {
	pass, err := e.store.NewPath(files, domain.RoleIntermediate, passPrefix, jpegExt)
	if err != nil {
		return att, err
	}

	if err := e.codec.Encode(ctx, working, pass, att.Quality); err != nil {
		return att, err
	}
	e.metrics.RecordPass(string(domain.PhaseQuality))

	att.ByteSize, err = e.store.Size(pass)
	if err != nil {
		return att, err
	}
	att.Path = pass

	return att, nil
}

// upscale grows the canvas by tenths, always from the previous result, until
// the output reaches MinBytes or the scale ceiling.
func (e *Encoder) upscale(ctx context.Context, files *domain.FileSet, att domain.Attempt) (domain.Attempt, error) {
	l := log.Ctx(ctx)
	output := att.Path

	for {
		next, ok := e.envelope.NextScale(att)
		if !ok {
			break
		}

		upscaled, err := e.store.NewPath(files, domain.RoleOutput, upscalePrefix, jpegExt)
		if err != nil {
			return domain.Attempt{}, err
		}

		next.Width, next.Height, err = e.normalizer.Upscale(ctx, output, upscaled, next.ScaleFactor)
		if err != nil {
			return domain.Attempt{}, err
		}
		e.metrics.RecordPass(string(domain.PhaseUpscale))

		if err := e.store.Replace(upscaled, output); err != nil {
			return domain.Attempt{}, err
		}
		files.Forget(upscaled)

		next.ByteSize, err = e.store.Size(output)
		if err != nil {
			return domain.Attempt{}, err
		}
		next.Path = output

		l.Debug().Int("pass", next.Pass).Float64("scale", next.ScaleFactor).Int64("bytes", next.ByteSize).
			Msg("upscale pass")

		att = next
	}

	if att.ByteSize < e.envelope.MinBytes {
		l.Warn().Float64("scale", att.ScaleFactor).Int64("bytes", att.ByteSize).
			Int64("minBytes", e.envelope.MinBytes).Msg("scale ceiling reached below minimum size")
	}

	return att, nil
}
