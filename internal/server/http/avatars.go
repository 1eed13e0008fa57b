package httpserver

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"
)

// AvatarStore persists uploaded avatar images and returns a serveable URL path.
type AvatarStore interface {
	Save(name string, r io.Reader) (url string, err error)
}

// DiskAvatarStore writes avatars under a media directory.
type DiskAvatarStore struct {
	Dir string
}

// Save stores the upload under a random name, keeping the original extension.
func (s *DiskAvatarStore) Save(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	fname := id.String() + filepath.Ext(name)
	f, err := os.Create(filepath.Join(s.Dir, fname))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return "/media/avatars/" + fname, nil
}
