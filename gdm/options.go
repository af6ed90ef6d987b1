package gdm

import (
	"errors"
	"log/slog"
)

// Option configures a Loader.
type Option interface {
	applyLoader(*loaderConfig) error
}

type loaderConfig struct {
	backends Backends
	registry *SourceRegistry
	remote   RemoteManager
	settings Settings
	logger   *slog.Logger
	tempDir  string
	newName  func() string
}

// optionFunc adapts a function to Option.
type optionFunc func(*loaderConfig) error

func (f optionFunc) applyLoader(cfg *loaderConfig) error { return f(cfg) }

// WithBackends sets both storage backends.
func WithBackends(b Backends) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		cfg.backends = b
		return nil
	})
}

// WithLocalStore sets the store serving local paths.
func WithLocalStore(s Store) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if s == nil {
			return errors.New("WithLocalStore: store must not be nil")
		}
		cfg.backends.Local = s
		return nil
	})
}

// WithCloudStore sets the store serving s3:// paths.
func WithCloudStore(s Store) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if s == nil {
			return errors.New("WithCloudStore: store must not be nil")
		}
		if s.Kind() != BackendCloud {
			return errors.New("WithCloudStore: store is not a cloud backend")
		}
		cfg.backends.Cloud = s
		return nil
	})
}

// WithRegistry shares an existing source registry. Loaders sharing a
// registry hand out the same identifier for the same origin.
func WithRegistry(r *SourceRegistry) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if r == nil {
			return errors.New("WithRegistry: registry must not be nil")
		}
		cfg.registry = r
		return nil
	})
}

// WithRemoteManager sets the remote repository bridge.
func WithRemoteManager(m RemoteManager) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		cfg.remote = m
		return nil
	})
}

// WithSettings sets the process-wide configuration. Defaults to
// DefaultConfig().
func WithSettings(s Settings) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if s == nil {
			return errors.New("WithSettings: settings must not be nil")
		}
		cfg.settings = s
		return nil
	})
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if l == nil {
			return errors.New("WithLogger: logger must not be nil")
		}
		cfg.logger = l
		return nil
	})
}

// WithTempDir sets the parent directory of staging folders for
// downloaded datasets.
func WithTempDir(dir string) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		cfg.tempDir = dir
		return nil
	})
}

// WithNameGenerator sets the generator of unique remote dataset names used
// when uploading a local path in remote mode.
func WithNameGenerator(f func() string) Option {
	return optionFunc(func(cfg *loaderConfig) error {
		if f == nil {
			return errors.New("WithNameGenerator: generator must not be nil")
		}
		cfg.newName = f
		return nil
	})
}
