package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mravshan/libra/internal/errs"
)

func TestFileStore_SetGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := s.Get(KeyAccessToken); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing key: got %v, want ErrNotFound", err)
	}
	if err := s.Set(KeyAccessToken, "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get(KeyAccessToken)
	if err != nil || v != "tok" {
		t.Fatalf("Get: %q %v", v, err)
	}
	if err := s.Delete(KeyAccessToken); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(KeyAccessToken); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
	// deleting again is a no-op
	if err := s.Delete(KeyAccessToken); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(KeyRefreshToken, "ref"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(KeyUser, `{"username":"ada"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, err := s2.Get(KeyRefreshToken)
	if err != nil || v != "ref" {
		t.Fatalf("reopened Get: %q %v", v, err)
	}
}

func TestFileStore_FileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(KeyAccessToken, "secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestFileStore_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Fatalf("expected error for corrupt file")
	}
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get("k"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing key: got %v, want ErrNotFound", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get("k")
	if err != nil || v != "v" {
		t.Fatalf("Get: %q %v", v, err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
