package gdm

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Layout constants
const (
	// FilesDir is the reserved folder that holds the paired data files.
	FilesDir = "files"

	// RegionSuffix ends every region file name.
	RegionSuffix = ".gdm"

	// MetaSuffix ends every metadata file name: the region file name plus ".meta".
	MetaSuffix = RegionSuffix + ".meta"

	// SchemaFile is the schema descriptor name.
	SchemaFile = "schema.xml"

	// ProfileFile and WebProfileFile are optional profile documents.
	ProfileFile    = "profile.xml"
	WebProfileFile = "web_profile.xml"

	// HiddenPrefix marks entries excluded from data file enumeration.
	HiddenPrefix = "_"

	schemaSuffix = ".schema"
)

// IsValidDataset reports whether dir is a well-formed GDM dataset: the base
// names of its metadata files equal the base names of its region files.
//
// A directory with no data files at all is valid. A single unmatched file of
// either kind makes it invalid.
func IsValidDataset(ctx context.Context, store Store, dir string) (bool, error) {
	entries, err := store.List(ctx, dir)
	if err != nil {
		return false, err
	}

	metas := make(map[string]struct{})
	regions := make(map[string]struct{})
	for _, e := range entries {
		if e.Dir {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name, MetaSuffix):
			metas[strings.TrimSuffix(e.Name, MetaSuffix)] = struct{}{}
		case strings.HasSuffix(e.Name, RegionSuffix):
			regions[strings.TrimSuffix(e.Name, RegionSuffix)] = struct{}{}
		}
	}

	if len(metas) != len(regions) {
		return false, nil
	}
	for base := range metas {
		if _, ok := regions[base]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Sample is one region/metadata file pair.
type Sample struct {
	// Name is the shared base name, e.g. "S_00000".
	Name string

	// RegionPath and MetaPath locate the two files.
	RegionPath string
	MetaPath   string
}

// isDataFile reports whether name takes part in data file enumeration.
func isDataFile(name string) bool {
	switch name {
	case SchemaFile, ProfileFile, WebProfileFile:
		return false
	}
	return !strings.HasPrefix(name, HiddenPrefix)
}

func isSchemaFile(name string) bool {
	return name == SchemaFile || strings.HasSuffix(name, schemaSuffix)
}

// DataFiles enumerates the samples and the schema descriptor of a canonical
// directory. Schema, profile, web profile and hidden entries are excluded
// from the samples. Samples are ordered by name.
func DataFiles(ctx context.Context, store Store, dir string) ([]Sample, Entry, error) {
	entries, err := store.List(ctx, dir)
	if err != nil {
		return nil, Entry{}, err
	}

	schema, err := findSchema(dir, entries)
	if err != nil {
		return nil, Entry{}, err
	}

	metaPaths := make(map[string]string)
	for _, e := range entries {
		if e.Dir || !isDataFile(e.Name) || isSchemaFile(e.Name) {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name, MetaSuffix); ok {
			metaPaths[base] = e.Path
		}
	}

	var samples []Sample
	for _, e := range entries {
		if e.Dir || !isDataFile(e.Name) {
			continue
		}
		base, ok := strings.CutSuffix(e.Name, RegionSuffix)
		if !ok {
			continue
		}
		metaPath, ok := metaPaths[base]
		if !ok {
			return nil, Entry{}, fmt.Errorf("gdm: region file %s has no metadata file: %w", e.Path, ErrInvalidDatasetLayout)
		}
		samples = append(samples, Sample{Name: base, RegionPath: e.Path, MetaPath: metaPath})
	}
	if len(samples) != len(metaPaths) {
		return nil, Entry{}, fmt.Errorf("gdm: dataset in %s has unpaired metadata files: %w", dir, ErrInvalidDatasetLayout)
	}
	slices.SortFunc(samples, func(a, b Sample) int { return strings.Compare(a.Name, b.Name) })

	return samples, schema, nil
}

// SchemaPath returns the schema descriptor of a canonical directory.
func SchemaPath(ctx context.Context, store Store, dir string) (string, error) {
	entries, err := store.List(ctx, dir)
	if err != nil {
		return "", err
	}
	schema, err := findSchema(dir, entries)
	if err != nil {
		return "", err
	}
	return schema.Path, nil
}

func findSchema(dir string, entries []Entry) (Entry, error) {
	var found []Entry
	for _, e := range entries {
		if !e.Dir && isSchemaFile(e.Name) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return Entry{}, fmt.Errorf("gdm: no schema descriptor in %s: %w", dir, ErrInvalidDatasetLayout)
	case 1:
		return found[0], nil
	default:
		return Entry{}, fmt.Errorf("gdm: %d schema descriptors in %s: %w", len(found), dir, ErrInvalidDatasetLayout)
	}
}
