package service

import (
	"context"
	"io"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/core/port"
	"sigfmt/internal/metrics"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

// Pipeline is the request flow shared by every transport: persist the upload,
// encode it, deliver the result and release the request's files exactly once.
type Pipeline struct {
	encoder  *Encoder
	store    port.FileStore
	releaser port.FileReleaser
	metrics  *metrics.EncoderMetrics
}

func NewPipeline(encoder *Encoder, store port.FileStore, releaser port.FileReleaser,
	m *metrics.EncoderMetrics) *Pipeline {
	return &Pipeline{encoder: encoder, store: store, releaser: releaser, metrics: m}
}

func (p *Pipeline) Process(ctx context.Context, upload io.Reader, extension string, deliver port.Deliver) error {
	requestID, err := uuid.NewV4()
	if err != nil {
		return err
	}

	l := log.With().Str("requestId", requestID.String()).Logger()
	ctx = l.WithContext(ctx)

	files := &domain.FileSet{}
	// Released after deliver returned so the output is not removed mid-transfer.
	defer func() {
		p.releaser.Release(files.Records())
	}()

	l.Info().Msg("handling request")

	att, err := p.format(ctx, files, upload, extension)
	p.metrics.RecordRequest(err, att.ByteSize, p.encoder.Envelope().Contains(att.ByteSize))
	if err != nil {
		l.Error().Err(err).Int("files", files.Len()).Msg("failed to format signature")
		return err
	}

	l.Info().Str("phase", string(att.Phase)).Int("pass", att.Pass).Int("quality", att.Quality).
		Float64("scale", att.ScaleFactor).Int64("bytes", att.ByteSize).Msg("formatted signature")

	if err := deliver(ctx, att); err != nil {
		l.Error().Err(err).Msg("failed to deliver signature")
		return err
	}

	return nil
}

func (p *Pipeline) format(ctx context.Context, files *domain.FileSet, upload io.Reader,
	extension string) (domain.Attempt, error) {
	src, err := p.store.SaveUpload(files, upload, extension)
	if err != nil {
		return domain.Attempt{}, err
	}

	return p.encoder.Format(ctx, files, src)
}
