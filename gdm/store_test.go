package gdm

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFSStore_List(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewFS().List(ctx, dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []Entry{
		{Name: "files", Path: filepath.Join(dir, "files"), Dir: true},
		{Name: "info.txt", Path: filepath.Join(dir, "info.txt")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestFSStore_List_FollowsSymlinks(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	target := t.TempDir()

	if err := os.Symlink(target, filepath.Join(dir, "files")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries, err := NewFS().List(ctx, dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].Dir {
		t.Errorf("expected symlinked directory entry, got %+v", entries)
	}
}

func TestFSStore_NotFound(t *testing.T) {
	ctx := t.Context()
	missing := filepath.Join(t.TempDir(), "missing")
	store := NewFS()

	if _, err := store.List(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("List: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	ok, err := store.Exists(ctx, missing)
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
	ok, err = store.IsDir(ctx, missing)
	if err != nil || ok {
		t.Errorf("IsDir = %v, %v; want false, nil", ok, err)
	}
}

func TestFSStore_List_NotADirectory(t *testing.T) {
	ctx := t.Context()
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFS().List(ctx, file)
	if !errors.Is(err, ErrInvalidDatasetLayout) {
		t.Errorf("expected ErrInvalidDatasetLayout, got %v", err)
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrNotFound) {
		t.Error("a plain file is neither missing nor unavailable storage")
	}
	if err != nil && !strings.Contains(err.Error(), file) {
		t.Errorf("error %q does not name the path", err)
	}
}

func TestMemoryStore_ImplicitDirectories(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()
	m.Put("/d/files/S_00000.gdm", []byte("a"))
	m.Put("/d/info.txt", []byte("b"))

	got, err := m.List(ctx, "/d/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []Entry{
		{Name: "files", Path: "/d/files", Dir: true},
		{Name: "info.txt", Path: "/d/info.txt"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	if ok, _ := m.IsDir(ctx, "/d/files"); !ok {
		t.Error("expected /d/files to be a directory")
	}
	if ok, _ := m.IsDir(ctx, "/d/info.txt"); ok {
		t.Error("file reported as directory")
	}
	if ok, _ := m.Exists(ctx, "/d/info.txt"); !ok {
		t.Error("expected /d/info.txt to exist")
	}
	if _, err := m.List(ctx, "/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := t.Context()
	m := NewMemory()
	m.Put("/a", []byte("hello"))

	rc, err := m.Get(ctx, "/a")
	if err != nil {
		t.Fatal(err)
	}
	defer closer(rc)()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}
}

func TestBackends_For(t *testing.T) {
	local := NewMemory()
	cloud := cloudMemory{NewMemory()}

	b := Backends{Local: local, Cloud: cloud}
	if s, err := b.For("/data/ds"); err != nil || s != Store(local) {
		t.Errorf("local path routed to %v, %v", s, err)
	}
	if s, err := b.For("s3://bucket/ds"); err != nil || s != Store(cloud) {
		t.Errorf("cloud path routed to %v, %v", s, err)
	}

	_, err := Backends{}.For("s3://bucket/ds")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable without cloud backend, got %v", err)
	}

	s, err := Backends{}.For("/data/ds")
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind() != BackendLocal {
		t.Errorf("default local backend kind = %v", s.Kind())
	}
}

// cloudMemory is a MemoryStore reporting the cloud backend kind.
type cloudMemory struct {
	*MemoryStore
}

func (cloudMemory) Kind() Backend { return BackendCloud }
