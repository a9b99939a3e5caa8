package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// CoverStore persists uploaded book cover images.
type CoverStore interface {
	// Save writes r as the cover of the given book and returns the stored path.
	Save(bookID int, filename string, r io.Reader) (string, error)
	// Remove deletes a previously stored cover. A missing file is not an error, and paths
	// the store did not hand out are left alone.
	Remove(path string) error
}

// LocalCovers stores covers as plain files under Dir.
type LocalCovers struct {
	Dir string
}

func NewLocalCovers(dir string) *LocalCovers {
	return &LocalCovers{Dir: dir}
}

var _ CoverStore = (*LocalCovers)(nil)

// CoverName returns the stored file name for a book cover. Only the base of the client-supplied
// name is used, so the result never escapes the covers directory.
func CoverName(bookID int, filename string) string {
	return "book_" + strconv.Itoa(bookID) + "_" + filepath.Base(filepath.Clean("/"+filename))
}

// owns reports whether path names a file directly inside Dir; cover_url is client-settable.
func (s *LocalCovers) owns(path string) bool {
	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return false
	}
	return filepath.Dir(p) == dir
}

func (s *LocalCovers) Save(bookID int, filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create covers dir: %w", err)
	}
	path := filepath.Join(s.Dir, CoverName(bookID, filename))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create cover file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write cover file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close cover file: %w", err)
	}
	return filepath.ToSlash(path), nil
}

func (s *LocalCovers) Remove(path string) error {
	if path == "" || !s.owns(path) {
		return nil
	}
	err := os.Remove(filepath.FromSlash(path))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cover %q: %w", path, err)
	}
	return nil
}
