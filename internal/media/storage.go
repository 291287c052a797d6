package media

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrBadPath = errors.New("media path escapes storage root")

// Storage serves media files from a local directory.
type Storage struct {
	root string
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

// Resolve maps a storage path onto the filesystem, rejecting anything that
// would leave the root.
func (s *Storage) Resolve(p string) (string, error) {
	if p == "" || strings.Contains(p, "\\") || strings.ContainsRune(p, 0) {
		return "", ErrBadPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrBadPath
		}
	}
	clean := path.Clean("/" + p)
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Open opens the file at storage path p. The caller closes it.
func (s *Storage) Open(p string) (*os.File, os.FileInfo, error) {
	full, err := s.Resolve(p)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", p, os.ErrNotExist)
	}
	return f, info, nil
}

// ServeFile writes the file at storage path p, honouring Range requests.
func (s *Storage) ServeFile(w http.ResponseWriter, r *http.Request, p string) error {
	f, info, err := s.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}
