package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sigfmt/internal/core/domain"
	"sigfmt/internal/metrics"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline *Pipeline
	codec    *fakeCodec
	releaser *fakeReleaser
	metrics  *metrics.Metrics
}

func newPipelineFixture(t *testing.T, size func(quality, width, height int) int64) *pipelineFixture {
	t.Helper()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	s := newStore(t)
	codec := newFakeCodec(size)
	releaser := &fakeReleaser{}

	return &pipelineFixture{
		pipeline: NewPipeline(NewEncoder(codec, s, defaultEnvelope(t), m.Encoder), s, releaser, m.Encoder),
		codec:    codec,
		releaser: releaser,
		metrics:  m,
	}
}

func TestProcessDeliversBeforeRelease(t *testing.T) {
	f := newPipelineFixture(t, linearSize(40000))

	var delivered domain.Attempt
	err := f.pipeline.Process(t.Context(), bytes.NewReader(make([]byte, 500*1024)), ".png",
		func(_ context.Context, att domain.Attempt) error {
			assert.Equal(t, 0, f.releaser.count(), "files must not be released during delivery")
			_, err := os.Stat(att.Path)
			assert.NoError(t, err)
			delivered = att
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, 50, delivered.Quality)
	require.Equal(t, 1, f.releaser.count())

	roles := map[domain.Role]int{}
	paths := map[string]bool{}
	for _, r := range f.releaser.releases[0] {
		roles[r.Role]++
		paths[r.Path] = true
	}
	assert.Equal(t, 1, roles[domain.RoleSource])
	assert.Equal(t, 1, roles[domain.RoleIntermediate], "only the working copy remains")
	assert.Equal(t, 1, roles[domain.RoleOutput])
	assert.True(t, paths[delivered.Path])
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Encoder.Requests.WithLabelValues("ok")), 0)
}

func TestProcessReleasesOnFailure(t *testing.T) {
	deliverErr := errors.New("client went away")

	tests := []struct {
		name       string
		codecErr   error
		deliverErr error
		wantErr    error
		wantCalled bool
	}{
		{
			name:     "encode fails",
			codecErr: domain.ErrDecode,
			wantErr:  domain.ErrDecode,
		},
		{
			name:       "delivery fails",
			deliverErr: deliverErr,
			wantErr:    deliverErr,
			wantCalled: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newPipelineFixture(t, linearSize(40000))
			f.codec.err = tc.codecErr

			called := false
			err := f.pipeline.Process(t.Context(), bytes.NewReader(make([]byte, 1024)), ".png",
				func(context.Context, domain.Attempt) error {
					called = true
					return tc.deliverErr
				})
			require.ErrorIs(t, err, tc.wantErr)

			assert.Equal(t, tc.wantCalled, called)
			require.Equal(t, 1, f.releaser.count(), "released exactly once")
			assert.NotEmpty(t, f.releaser.releases[0])
		})
	}
}

func TestProcessConcurrentRequestsUseDistinctFiles(t *testing.T) {
	f := newPipelineFixture(t, linearSize(40000))

	const n = 16
	var (
		mu      sync.Mutex
		outputs = map[string]bool{}
		wg      sync.WaitGroup
	)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.pipeline.Process(t.Context(), bytes.NewReader(make([]byte, 500*1024)), ".png",
				func(_ context.Context, att domain.Attempt) error {
					mu.Lock()
					defer mu.Unlock()
					outputs[att.Path] = true
					return nil
				})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, outputs, n)
	for path := range outputs {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
	assert.Equal(t, n, f.releaser.count())
}
