package gdm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Loader resolves datasets, registers their origins and requests engine
// indexes for them.
//
// A Loader performs all work synchronously on the calling goroutine. It is
// safe for concurrent use; the registry serializes registration.
type Loader struct {
	engine   Engine
	backends Backends
	registry *SourceRegistry
	remote   RemoteManager
	settings Settings
	logger   *slog.Logger
	tempDir  string
	newName  func() string
}

// NewLoader creates a Loader that requests indexes from engine.
func NewLoader(engine Engine, opts ...Option) (*Loader, error) {
	if engine == nil {
		return nil, errors.New("gdm: engine must not be nil")
	}

	cfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt.applyLoader(cfg); err != nil {
			return nil, fmt.Errorf("gdm: %w", err)
		}
	}

	if cfg.registry == nil {
		cfg.registry = NewSourceRegistry()
	}
	if cfg.settings == nil {
		cfg.settings = DefaultConfig()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.newName == nil {
		cfg.newName = uniqueName
	}
	if cfg.tempDir == "" {
		if c, ok := cfg.settings.(*Config); ok {
			cfg.tempDir = c.TempDir
		}
	}

	return &Loader{
		engine:   engine,
		backends: cfg.backends,
		registry: cfg.registry,
		remote:   cfg.remote,
		settings: cfg.settings,
		logger:   cfg.logger,
		tempDir:  cfg.tempDir,
		newName:  cfg.newName,
	}, nil
}

// Registry returns the loader's source registry.
func (l *Loader) Registry() *SourceRegistry {
	return l.registry
}

// uniqueName returns a fresh remote dataset name. Remote names may not
// contain dashes.
func uniqueName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "_")
}

// -----------------------------------------------------------------------------
// Local paths
// -----------------------------------------------------------------------------

// LoadFromPath lazily loads the dataset at path.
//
// The path is resolved to its canonical directory, the directory's origin is
// registered (or its existing identifier reused) and the engine is asked to
// index it. When parser is nil it is inferred from the schema descriptor;
// otherwise it must implement RegionParser.
func (l *Loader) LoadFromPath(ctx context.Context, path string, parser Parser) (*Handle, error) {
	store, dir, err := l.resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	var profile *MetaProfile
	if l.settings.MetaProfilingEnabled() {
		profile, err = BuildMetaProfile(ctx, store, dir)
		if err != nil {
			return nil, fmt.Errorf("gdm: profile %s: %w", dir, err)
		}
	}

	regionParser, err := l.regionParser(ctx, store, dir, parser)
	if err != nil {
		return nil, err
	}

	id, err := l.register(LocalOrigin(dir), regionParser)
	if err != nil {
		return nil, err
	}

	index, err := l.createIndex(ctx, id, regionParser)
	if err != nil {
		return nil, err
	}

	return &Handle{
		Index:      index,
		Parser:     regionParser,
		Location:   LocationLocal,
		PathOrName: dir,
		Sources:    []SourceID{id},
		Profile:    profile,
	}, nil
}

// MaterializeFromPath reads the dataset at path fully into memory.
//
// It never registers the dataset or contacts the engine; repeated calls
// read the files again. A nil parser is inferred from the schema
// descriptor; a non-nil parser that does not implement RegionParser is
// rejected with ErrInvalidParserType rather than replaced by the default.
func (l *Loader) MaterializeFromPath(ctx context.Context, path string, parser Parser) (*Materialized, error) {
	store, dir, err := l.resolve(ctx, path)
	if err != nil {
		return nil, err
	}

	regionParser, err := l.regionParser(ctx, store, dir, parser)
	if err != nil {
		return nil, err
	}

	result, err := Materialize(ctx, store, dir, regionParser)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("materialized dataset", "path", dir, "samples", result.Meta.Len(), "regions", result.Regions.Len())
	return result, nil
}

func (l *Loader) resolve(ctx context.Context, path string) (Store, string, error) {
	store, err := l.backends.For(path)
	if err != nil {
		return nil, "", err
	}
	dir, err := Resolve(ctx, store, path)
	if err != nil {
		return nil, "", err
	}
	l.logger.Debug("resolved dataset", "path", path, "dir", dir, "backend", store.Kind().String())
	return store, dir, nil
}

func (l *Loader) regionParser(ctx context.Context, store Store, dir string, parser Parser) (RegionParser, error) {
	if parser == nil {
		inferred, err := InferParser(ctx, store, dir)
		if err != nil {
			return nil, fmt.Errorf("gdm: infer parser for %s: %w", dir, err)
		}
		return inferred, nil
	}
	rp, ok := parser.(RegionParser)
	if !ok {
		return nil, fmt.Errorf("gdm: %T provided for %s: %w", parser, dir, ErrInvalidParserType)
	}
	return rp, nil
}

// -----------------------------------------------------------------------------
// Remote datasets
// -----------------------------------------------------------------------------

// LoadFromRemote lazily loads a dataset from the remote repository. An empty
// owner means the current user. The parser always comes from the remote
// manager.
func (l *Loader) LoadFromRemote(ctx context.Context, name, owner string) (*Handle, error) {
	if l.remote == nil {
		return nil, fmt.Errorf("gdm: load remote %s: %w", name, ErrNoRemoteManager)
	}
	origin := RemoteOrigin(name, owner)
	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("gdm: load %s: %w", origin, err)
	}

	parser, err := l.remote.DatasetSchema(ctx, name, owner)
	if err != nil {
		return nil, fmt.Errorf("gdm: schema of %s: %w", origin, err)
	}
	if parser == nil {
		return nil, fmt.Errorf("gdm: schema of %s: %w", origin, ErrInvalidParserType)
	}

	id, err := l.register(origin, parser)
	if err != nil {
		return nil, err
	}

	index, err := l.createIndex(ctx, id, parser)
	if err != nil {
		return nil, err
	}

	return &Handle{
		Index:      index,
		Parser:     parser,
		Location:   LocationRemote,
		PathOrName: name,
		Sources:    []SourceID{id},
	}, nil
}

// -----------------------------------------------------------------------------
// Registration and indexing
// -----------------------------------------------------------------------------

func (l *Loader) register(origin Origin, parser Parser) (SourceID, error) {
	id, created, err := l.registry.SearchOrAdd(origin, parser)
	if err != nil {
		return 0, err
	}
	if created {
		l.logger.Debug("registered source", "origin", origin.String(), "source_id", int64(id))
	} else {
		l.logger.Debug("reused source", "origin", origin.String(), "source_id", int64(id))
	}
	return id, nil
}

func (l *Loader) createIndex(ctx context.Context, id SourceID, parser Parser) (IndexRef, error) {
	index, err := l.engine.CreateIndex(ctx, id.String(), parser.Descriptor())
	if err != nil {
		return 0, fmt.Errorf("gdm: create index for source %s: %w", id, err)
	}
	l.logger.Debug("created index", "source_id", int64(id), "index", int64(index))
	return index, nil
}

// -----------------------------------------------------------------------------
// Mode facade
// -----------------------------------------------------------------------------

// LoadRequest names a dataset for Load and LoadEager. Exactly one of Path
// and Name must be set.
type LoadRequest struct {
	// Path is a local or s3:// dataset path.
	Path string

	// Name is a remote dataset name, optionally qualified by Owner.
	Name  string
	Owner string

	// Parser optionally overrides schema inference for local loads.
	Parser Parser
}

func (r LoadRequest) validate() error {
	if (r.Path == "") == (r.Name == "") {
		return ErrAmbiguousLoadArguments
	}
	return nil
}

// Load dispatches on the configured mode.
//
// In local mode a Path is loaded directly and a Name is first downloaded into
// a fresh staging directory. In remote mode a Path is first uploaded under a
// freshly generated name and a Name is loaded from the repository.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (*Handle, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	switch mode := l.settings.Mode(); mode {
	case ModeLocal:
		if req.Path != "" {
			return l.LoadFromPath(ctx, req.Path, req.Parser)
		}
		dir, err := l.download(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return l.LoadFromPath(ctx, dir, req.Parser)

	case ModeRemote:
		if req.Name != "" {
			return l.LoadFromRemote(ctx, req.Name, req.Owner)
		}
		name, err := l.upload(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return l.LoadFromRemote(ctx, name, "")

	default:
		return nil, fmt.Errorf("gdm: mode %q: %w", mode, ErrUnknownMode)
	}
}

// LoadEager is the eager counterpart of Load. It is only available in local
// mode.
func (l *Loader) LoadEager(ctx context.Context, req LoadRequest) (*Materialized, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	switch mode := l.settings.Mode(); mode {
	case ModeLocal:
		if req.Path != "" {
			return l.MaterializeFromPath(ctx, req.Path, req.Parser)
		}
		dir, err := l.download(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return l.MaterializeFromPath(ctx, dir, req.Parser)

	case ModeRemote:
		return nil, ErrEagerRemote

	default:
		return nil, fmt.Errorf("gdm: mode %q: %w", mode, ErrUnknownMode)
	}
}

// download stages a remote dataset into a new temporary directory. The
// directory is left in place after a successful download and removed when
// the download fails.
func (l *Loader) download(ctx context.Context, name string) (string, error) {
	if l.remote == nil {
		return "", fmt.Errorf("gdm: download %s: %w", name, ErrNoRemoteManager)
	}
	dir, err := os.MkdirTemp(l.tempDir, "gdm-dataset-")
	if err != nil {
		return "", fmt.Errorf("gdm: staging directory: %w", err)
	}
	if err := l.remote.DownloadDataset(ctx, name, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("gdm: download %s: %w", name, err)
	}
	l.logger.Debug("staged remote dataset", "name", name, "path", dir)
	return dir, nil
}

// upload publishes a local dataset under a freshly generated name.
func (l *Loader) upload(ctx context.Context, path string) (string, error) {
	if l.remote == nil {
		return "", fmt.Errorf("gdm: upload %s: %w", path, ErrNoRemoteManager)
	}
	name := l.newName()
	if err := l.remote.UploadDataset(ctx, path, name); err != nil {
		return "", fmt.Errorf("gdm: upload %s as %s: %w", path, name, err)
	}
	l.logger.Debug("uploaded dataset", "path", path, "name", name)
	return name, nil
}
