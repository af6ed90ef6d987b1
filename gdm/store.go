package gdm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store using the local filesystem.
type fsStore struct{}

// NewFS creates a Store over the local filesystem.
//
// Paths are ordinary OS paths. Symlinks are followed when deciding whether
// an entry is a directory.
func NewFS() Store {
	return fsStore{}
}

func (fsStore) Kind() Backend { return BackendLocal }

func (fsStore) List(_ context.Context, dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("gdm: list %s: not a directory: %w", dir, ErrInvalidDatasetLayout)
		}
		return nil, fsError("list", dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(dir, de.Name())
		isDir := de.IsDir()
		if de.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				// Dangling links are kept as plain files.
				if !errors.Is(err, fs.ErrNotExist) {
					return nil, fsError("stat", full, err)
				}
			} else {
				isDir = info.IsDir()
			}
		}
		entries = append(entries, Entry{Name: de.Name(), Path: full, Dir: isDir})
	}
	return entries, nil
}

func (fsStore) IsDir(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fsError("stat", p, err)
	}
	return info.IsDir(), nil
}

func (fsStore) Exists(_ context.Context, p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fsError("stat", p, err)
}

func (fsStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	file, err := os.Open(p)
	if err != nil {
		return nil, fsError("open", p, err)
	}
	return file, nil
}

func fsError(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("gdm: %s %s: %w", op, p, ErrNotFound)
	}
	return fmt.Errorf("gdm: %s %s: %w: %w", op, p, ErrStorageUnavailable, err)
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// MemoryStore implements Store with an in-memory file tree.
//
// Directories exist implicitly whenever a file lives beneath them.
// MemoryStore is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory creates an empty in-memory Store with local path semantics.
func NewMemory() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Put stores data at p, replacing any previous content.
func (m *MemoryStore) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = append([]byte(nil), data...)
}

// Kind returns BackendLocal.
func (m *MemoryStore) Kind() Backend { return BackendLocal }

// List returns the immediate children of dir.
func (m *MemoryStore) List(_ context.Context, dir string) ([]Entry, error) {
	dir = path.Clean(dir)
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, isFile := m.files[dir]; isFile {
		return nil, fmt.Errorf("gdm: list %s: not a directory: %w", dir, ErrInvalidDatasetLayout)
	}

	children := make(map[string]bool)
	for p := range m.files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		children[name] = children[name] || nested
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("gdm: list %s: %w", dir, ErrNotFound)
	}

	entries := make([]Entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, Entry{Name: name, Path: path.Join(dir, name), Dir: isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// IsDir reports whether any file lives beneath p.
func (m *MemoryStore) IsDir(_ context.Context, p string) (bool, error) {
	prefix := path.Clean(p) + "/"

	m.mu.RLock()
	defer m.mu.RUnlock()

	for key := range m.files {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

// Exists reports whether p is a stored file or an implicit directory.
func (m *MemoryStore) Exists(ctx context.Context, p string) (bool, error) {
	m.mu.RLock()
	_, ok := m.files[path.Clean(p)]
	m.mu.RUnlock()
	if ok {
		return true, nil
	}
	return m.IsDir(ctx, p)
}

// Get returns a copy of the file stored at p.
func (m *MemoryStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	p = path.Clean(p)

	m.mu.RLock()
	data, ok := m.files[p]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gdm: open %s: %w", p, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), data...))), nil
}

// -----------------------------------------------------------------------------
// Backend selection
// -----------------------------------------------------------------------------

// CloudScheme is the path prefix routed to the cloud backend.
const CloudScheme = "s3://"

// IsCloudPath reports whether p names an object storage location.
func IsCloudPath(p string) bool {
	return strings.HasPrefix(p, CloudScheme)
}

// Backends pairs the local and cloud stores a Loader may route to.
type Backends struct {
	// Local serves every path without the cloud scheme. Defaults to NewFS().
	Local Store

	// Cloud serves s3:// paths. Optional.
	Cloud Store
}

// For selects the store that serves p.
func (b Backends) For(p string) (Store, error) {
	if IsCloudPath(p) {
		if b.Cloud == nil {
			return nil, fmt.Errorf("gdm: no cloud backend configured for %s: %w", p, ErrStorageUnavailable)
		}
		return b.Cloud, nil
	}
	if b.Local == nil {
		return NewFS(), nil
	}
	return b.Local, nil
}

var (
	_ Store = fsStore{}
	_ Store = (*MemoryStore)(nil)
)
