package gdm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Resolve returns the canonical directory of the dataset at p.
//
// Two layouts are accepted:
//
//	p/
//	  files/
//	    S_00000.gdm
//	    S_00000.gdm.meta
//	    schema.xml
//	  [info.txt, query.txt, vocabulary.txt]
//
// or p itself holding the paired files. On the local backend a nested
// files/ folder is always validated, and a malformed one is an error even if
// p would be valid on its own. On the cloud backend nothing is validated: a
// files/ child in the listing is returned as-is, and otherwise p is.
//
// Resolve is idempotent: resolving its result yields the same directory.
func Resolve(ctx context.Context, store Store, p string) (string, error) {
	p = cleanPath(store, p)

	entries, err := store.List(ctx, p)
	if err != nil {
		return "", fmt.Errorf("gdm: resolve %s: %w", p, err)
	}

	cloud := store.Kind() == BackendCloud
	for _, e := range entries {
		if !e.Dir || e.Name != FilesDir {
			continue
		}
		filesDir := cleanPath(store, e.Path)
		if cloud {
			return filesDir, nil
		}
		if err := validateRoot(ctx, store, filesDir); err != nil {
			return "", err
		}
		return filesDir, nil
	}

	if cloud {
		return p, nil
	}
	if err := validateRoot(ctx, store, p); err != nil {
		return "", err
	}
	return p, nil
}

func validateRoot(ctx context.Context, store Store, dir string) error {
	ok, err := IsValidDataset(ctx, store, dir)
	if err != nil {
		return fmt.Errorf("gdm: validate %s: %w", dir, err)
	}
	if !ok {
		return fmt.Errorf("gdm: dataset in %s is not in GDM format: %w", dir, ErrInvalidDatasetLayout)
	}
	return nil
}

func cleanPath(store Store, p string) string {
	if store.Kind() == BackendCloud {
		return strings.TrimRight(p, "/")
	}
	return filepath.Clean(p)
}
