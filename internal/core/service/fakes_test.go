package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sigfmt/internal/adapters/file"
	"sigfmt/internal/core/domain"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	method  string
	src     string
	srcSize int64
	dst     string
	quality int
	width   int
	height  int
}

// fakeCodec writes files whose byte size is computed from quality and pixel
// dimensions, so size-driven loops can be tested deterministically.
type fakeCodec struct {
	mu    sync.Mutex
	size  func(quality, width, height int) int64
	dims  map[string][2]int
	calls []call
	err   error
}

func newFakeCodec(size func(quality, width, height int) int64) *fakeCodec {
	return &fakeCodec{size: size, dims: map[string][2]int{}}
}

func (f *fakeCodec) write(src, dst string, width, height, quality int, method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := call{method: method, src: src, dst: dst, quality: quality, width: width, height: height}
	if info, err := os.Stat(src); err == nil {
		c.srcSize = info.Size()
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return f.err
	}

	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	if err := os.WriteFile(dst, make([]byte, f.size(quality, width, height)), 0o600); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	f.dims[filepath.Base(dst)] = [2]int{width, height}

	return nil
}

func (f *fakeCodec) Resize(_ context.Context, src, dst string, width, height, quality int) error {
	return f.write(src, dst, width, height, quality, "resize")
}

func (f *fakeCodec) Contain(_ context.Context, src, dst string, width, height, quality int) error {
	return f.write(src, dst, width, height, quality, "contain")
}

func (f *fakeCodec) Encode(_ context.Context, src, dst string, quality int) error {
	f.mu.Lock()
	d := f.dims[filepath.Base(src)]
	f.mu.Unlock()

	return f.write(src, dst, d[0], d[1], quality, "encode")
}

func (f *fakeCodec) callsOf(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}

	return out
}

func qualities(calls []call) []int {
	out := make([]int, len(calls))
	for i, c := range calls {
		out[i] = c.quality
	}

	return out
}

type fakeReleaser struct {
	mu       sync.Mutex
	releases [][]domain.FileRecord
}

func (r *fakeReleaser) Release(records []domain.FileRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases = append(r.releases, records)
}

func (r *fakeReleaser) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.releases)
}

func newStore(t *testing.T) *file.Store {
	t.Helper()

	root := t.TempDir()
	s, err := file.NewStore(filepath.Join(root, "uploads"), filepath.Join(root, "temp"), filepath.Join(root, "output"))
	require.NoError(t, err)

	return s
}

func defaultEnvelope(t *testing.T) domain.Envelope {
	t.Helper()

	env, err := domain.NewEnvelope(domain.DefaultEnvelopeSettings())
	require.NoError(t, err)

	return env
}

// writeSource stores a source file of n bytes and records it in files.
func writeSource(t *testing.T, s *file.Store, files *domain.FileSet, n int) string {
	t.Helper()

	path, err := s.NewPath(files, domain.RoleSource, "upload", ".png")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o600))

	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}
