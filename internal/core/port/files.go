package port

import (
	"context"
	"io"
	"sigfmt/internal/core/domain"
)

type FileStore interface {
	// NewPath returns a collision-free path in the directory managed for role and records it in files.
	NewPath(files *domain.FileSet, role domain.Role, prefix, extension string) (string, error)
	// SaveUpload writes r into the upload directory and records the new path in files as its source.
	SaveUpload(files *domain.FileSet, r io.Reader, extension string) (string, error)
	// Replace atomically renames from over to.
	Replace(from, to string) error
	// Size returns the byte size of the file at path as stored on disk.
	Size(path string) (int64, error)
	// Read returns the content of a file written by the store.
	Read(path string) ([]byte, error)
	// Download fetches a remote file.
	Download(ctx context.Context, url string) ([]byte, error)
	// Directories lists the directories the store writes to.
	Directories() []string
}

type FileReleaser interface {
	// Release hands a finished request's files over for deferred deletion. It never blocks on deletion.
	Release(records []domain.FileRecord)
}
