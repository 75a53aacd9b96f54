package service

import (
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerNormalize(t *testing.T) {
	codec := newFakeCodec(linearSize(1000))
	n := NewNormalizer(codec, defaultEnvelope(t))

	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	require.NoError(t, os.WriteFile(src, []byte("source"), 0o600))

	require.NoError(t, n.Normalize(t.Context(), src, filepath.Join(dir, "dst.jpg"), 100))

	require.Len(t, codec.calls, 1)
	assert.Equal(t, call{method: "resize", quality: 100, width: 151, height: 76}, codec.calls[0])

	got, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "source", string(got), "input is never mutated")
}

func TestNormalizerUpscale(t *testing.T) {
	tests := []struct {
		name       string
		scale      float64
		wantWidth  int
		wantHeight int
	}{
		{name: "first step", scale: 1.1, wantWidth: 166, wantHeight: 84},
		{name: "double", scale: 2, wantWidth: 302, wantHeight: 152},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			codec := newFakeCodec(linearSize(1000))
			n := NewNormalizer(codec, defaultEnvelope(t))

			dir := t.TempDir()
			src := filepath.Join(dir, "src.jpg")
			require.NoError(t, os.WriteFile(src, []byte("source"), 0o600))

			w, h, err := n.Upscale(t.Context(), src, filepath.Join(dir, "dst.jpg"), tc.scale)
			require.NoError(t, err)

			assert.Equal(t, tc.wantWidth, w)
			assert.Equal(t, tc.wantHeight, h)
			require.Len(t, codec.calls, 1)
			assert.Equal(t, call{method: "contain", quality: domain.MaxQuality, width: w, height: h}, codec.calls[0])
		})
	}
}

func TestNormalizerPropagatesErrors(t *testing.T) {
	codec := newFakeCodec(linearSize(1000))
	codec.err = domain.ErrDecode
	n := NewNormalizer(codec, defaultEnvelope(t))

	err := n.Normalize(t.Context(), "src.png", "dst.jpg", 100)
	require.ErrorIs(t, err, domain.ErrDecode)

	_, _, err = n.Upscale(t.Context(), "src.png", "dst.jpg", 1.1)
	require.ErrorIs(t, err, domain.ErrDecode)
}
