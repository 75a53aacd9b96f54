package file

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sigfmt/internal/core/domain"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
)

const dirPermissions = 0o750

// Store writes request files into one directory per role. Every path carries
// a fresh UUID, so concurrent requests never share a path.
type Store struct {
	uploadDir string
	tempDir   string
	outputDir string
	client    *http.Client
}

// NewStore creates the directories if they are missing.
func NewStore(uploadDir, tempDir, outputDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, tempDir, outputDir} {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("%w: creating directory %s: %w", domain.ErrIO, dir, err)
		}
	}

	return &Store{
		uploadDir: uploadDir,
		tempDir:   tempDir,
		outputDir: outputDir,
		client:    &http.Client{},
	}, nil
}

func (s *Store) Directories() []string {
	return []string{s.uploadDir, s.tempDir, s.outputDir}
}

func (s *Store) dir(role domain.Role) string {
	switch role {
	case domain.RoleSource:
		return s.uploadDir
	case domain.RoleOutput:
		return s.outputDir
	default:
		return s.tempDir
	}
}

// NewPath returns a unique path for role and records it in files. The file
// itself is not created.
func (s *Store) NewPath(files *domain.FileSet, role domain.Role, prefix, extension string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("%w: generating file id: %w", domain.ErrIO, err)
	}

	path := filepath.Join(s.dir(role), fmt.Sprintf("%s_%s%s", prefix, id.String(), extension))
	files.Add(path, role)

	return path, nil
}

// SaveUpload copies r into the upload directory and returns the path.
func (s *Store) SaveUpload(files *domain.FileSet, r io.Reader, extension string) (string, error) {
	path, err := s.NewPath(files, domain.RoleSource, "upload", extension)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		err = fmt.Errorf("%w: creating upload file: %w", domain.ErrIO, err)
		log.Error().Err(err).Send()
		return "", err
	}

	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		err = fmt.Errorf("%w: writing upload file: %w", domain.ErrIO, err)
		log.Error().Err(err).Send()
		return "", err
	}

	log.Debug().Str("path", path).Int64("bytes", n).Msg("saved upload")

	return path, nil
}

func (s *Store) Replace(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("%w: replacing %s: %w", domain.ErrIO, filepath.Base(to), err)
	}

	return nil
}

func (s *Store) Size(path string) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", domain.ErrIO, filepath.Base(path), err)
	}

	return stat.Size(), nil
}

// Download returns the byte content of a file on a provided URL.
func (s *Store) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("error creating request %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	res, err := s.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error executing request %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code on download: %d", res.StatusCode)
		log.Error().Err(err).Send()
		return nil, err
	}

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		err = fmt.Errorf("error reading response %w", err)
		log.Error().Err(err).Send()
		return nil, err
	}

	return buf, nil
}

// Read returns the content of a file written by the store.
func (s *Store) Read(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrIO, filepath.Base(path), err)
	}

	return buf, nil
}
