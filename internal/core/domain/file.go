package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleSource       Role = "source"
	RoleIntermediate Role = "intermediate"
	RoleOutput       Role = "output"
)

type FileRecord struct {
	Path      string
	CreatedAt time.Time
	Role      Role
}

// FileSet collects every file a single request wrote. It is not safe for
// concurrent use; a request owns its set.
type FileSet struct {
	records []FileRecord
}

func (s *FileSet) Add(path string, role Role) {
	s.records = append(s.records, FileRecord{Path: path, CreatedAt: time.Now(), Role: role})
}

// Forget drops a path that no longer exists because it was renamed away.
func (s *FileSet) Forget(path string) {
	s.records = slices.DeleteFunc(s.records, func(r FileRecord) bool {
		return r.Path == path
	})
}

func (s *FileSet) Records() []FileRecord {
	return slices.Clone(s.records)
}

func (s *FileSet) Len() int {
	return len(s.records)
}
