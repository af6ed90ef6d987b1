// Package gdm resolves, validates and registers GDM datasets stored on the
// local filesystem or in S3-compatible object storage.
//
// A GDM dataset is a directory of paired region (.gdm) and metadata
// (.gdm.meta) files plus a schema descriptor. gdm locates the canonical
// directory holding those pairs, assigns each distinct dataset origin a
// stable source identifier for the lifetime of a session, and hands that
// identifier to an external query engine. It does not evaluate queries.
package gdm

import (
	"context"
	"errors"
	"io"
	"strconv"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// SourceID identifies a registered dataset source within a session.
// Identifiers are assigned sequentially and never reused.
type SourceID int64

// String returns the decimal form handed to the engine.
func (id SourceID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IndexRef is an engine-side reference to a dataset index.
// Its lifecycle belongs to the engine.
type IndexRef int64

// Location records where a lazily loaded dataset lives.
type Location string

// Dataset locations.
const (
	LocationLocal  Location = "local"
	LocationRemote Location = "remote"
)

// Mode selects how the Load facade interprets its arguments.
type Mode string

// Load modes.
const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// -----------------------------------------------------------------------------
// Origin
// -----------------------------------------------------------------------------

// Origin identifies where a dataset comes from: either a local path, or a
// remote dataset name with an optional owner. Exactly one form is populated.
//
// Origin is comparable and is used directly as the registry key.
type Origin struct {
	// Local is the canonical local (or object storage) directory.
	Local string

	// RemoteName is the dataset name in the remote repository.
	RemoteName string

	// Owner optionally qualifies RemoteName. Empty means the current user.
	Owner string
}

// LocalOrigin returns the origin of a dataset read from path.
func LocalOrigin(path string) Origin {
	return Origin{Local: path}
}

// RemoteOrigin returns the origin of a remote dataset.
func RemoteOrigin(name, owner string) Origin {
	return Origin{RemoteName: name, Owner: owner}
}

// IsRemote reports whether o describes a remote dataset.
func (o Origin) IsRemote() bool {
	return o.RemoteName != ""
}

// Validate reports ErrInvalidOrigin unless exactly one form is populated.
func (o Origin) Validate() error {
	switch {
	case o.Local == "" && o.RemoteName == "":
		return ErrInvalidOrigin
	case o.Local != "" && (o.RemoteName != "" || o.Owner != ""):
		return ErrInvalidOrigin
	}
	return nil
}

func (o Origin) String() string {
	if o.IsRemote() {
		if o.Owner == "" {
			return "remote:" + o.RemoteName
		}
		return "remote:" + o.Owner + "/" + o.RemoteName
	}
	return "local:" + o.Local
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Handle is a lazy reference to a dataset indexed by the engine.
//
// A Handle is owned by the caller and is not mutated after it is returned.
type Handle struct {
	// Index is the engine-side reference created for this dataset.
	Index IndexRef

	// Parser describes how the engine reads the dataset's regions.
	Parser Parser

	// Location is LocationLocal or LocationRemote.
	Location Location

	// PathOrName is the canonical directory (local) or dataset name (remote).
	PathOrName string

	// Sources lists the registry identifiers backing this handle.
	Sources []SourceID

	// Profile is the metadata profile, or nil when profiling is disabled.
	Profile *MetaProfile
}

// Materialized is a fully in-memory dataset produced by eager loading.
// It is independent of any registry once returned.
type Materialized struct {
	Regions *RegionTable
	Meta    *MetaTable
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Backend identifies a storage backend family.
type Backend int

// Storage backends.
const (
	BackendLocal Backend = iota
	BackendCloud
)

func (b Backend) String() string {
	switch b {
	case BackendLocal:
		return "local"
	case BackendCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// Entry is one immediate child of a listed directory.
type Entry struct {
	// Name is the base name, without any trailing separator.
	Name string

	// Path is the full path of the entry, usable with the same Store.
	Path string

	// Dir reports whether the entry is a directory (or a common prefix).
	Dir bool
}

// Store gives uniform access to the local filesystem and object storage.
//
// Implementations return errors wrapping ErrNotFound for missing paths and
// ErrStorageUnavailable for I/O, network or authentication failures.
type Store interface {
	// Kind returns the backend family.
	Kind() Backend

	// List returns the immediate children of dir ordered by name.
	List(ctx context.Context, dir string) ([]Entry, error)

	// IsDir reports whether p is a directory.
	IsDir(ctx context.Context, p string) (bool, error)

	// Exists reports whether p exists as a file or directory.
	Exists(ctx context.Context, p string) (bool, error)

	// Get opens the file at p.
	Get(ctx context.Context, p string) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Parser interfaces
// -----------------------------------------------------------------------------

// Parser describes a dataset's region format to the engine.
type Parser interface {
	// Descriptor returns the engine-facing parser description.
	Descriptor() ParserDescriptor
}

// RegionParser is a Parser that can also decode region lines locally.
// Local loads require this capability.
type RegionParser interface {
	Parser

	// ParseRegion decodes one line of a region file.
	ParseRegion(line string) (Region, error)
}

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// Engine is the external query engine bridge.
type Engine interface {
	// CreateIndex asks the engine to index the source with the given identifier.
	CreateIndex(ctx context.Context, sourceID string, desc ParserDescriptor) (IndexRef, error)
}

// RemoteManager is the bridge to a remote dataset repository.
type RemoteManager interface {
	// DatasetSchema returns the parser for a remote dataset.
	DatasetSchema(ctx context.Context, name, owner string) (Parser, error)

	// DownloadDataset copies a remote dataset into localPath.
	DownloadDataset(ctx context.Context, name, localPath string) error

	// UploadDataset publishes the dataset at path under name.
	UploadDataset(ctx context.Context, path, name string) error
}

// Settings exposes the process-wide configuration read by a Loader.
type Settings interface {
	// Mode returns the load mode.
	Mode() Mode

	// MetaProfilingEnabled reports whether lazy loads build a metadata profile.
	MetaProfilingEnabled() bool
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values. Returned errors wrap these with the offending path
// or origin; test with errors.Is.
var (
	// ErrNotFound indicates a requested path does not exist.
	ErrNotFound = errNotFound{}

	// ErrStorageUnavailable indicates a backend I/O, network or auth failure.
	ErrStorageUnavailable = errStorageUnavailable{}

	// ErrInvalidDatasetLayout indicates a directory is not a GDM dataset.
	ErrInvalidDatasetLayout = errInvalidDatasetLayout{}

	// ErrInvalidParserType indicates a supplied parser lacks region parsing.
	ErrInvalidParserType = errInvalidParserType{}

	// ErrAmbiguousLoadArguments indicates both or neither of path and name were given.
	ErrAmbiguousLoadArguments = errAmbiguousLoadArguments{}
)

var (
	// ErrUnknownMode indicates a load mode other than local or remote.
	ErrUnknownMode = errors.New("unknown load mode")

	// ErrEagerRemote indicates an eager load was requested in remote mode.
	ErrEagerRemote = errors.New("eager loading is not available in remote mode")

	// ErrNoRemoteManager indicates a remote operation without a RemoteManager.
	ErrNoRemoteManager = errors.New("no remote manager configured")

	// ErrInvalidOrigin indicates an origin with zero or both forms populated.
	ErrInvalidOrigin = errors.New("origin must have exactly one of local path or remote name")

	// ErrInvalidSchema indicates a schema descriptor that cannot be interpreted.
	ErrInvalidSchema = errors.New("invalid schema descriptor")
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errStorageUnavailable struct{}

func (errStorageUnavailable) Error() string { return "storage unavailable" }

type errInvalidDatasetLayout struct{}

func (errInvalidDatasetLayout) Error() string { return "invalid dataset layout" }

type errInvalidParserType struct{}

func (errInvalidParserType) Error() string { return "parser must be a RegionParser" }

type errAmbiguousLoadArguments struct{}

func (errAmbiguousLoadArguments) Error() string {
	return "exactly one of path or name must be given"
}
