package gdm

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Cloud providers.
const (
	ProviderS3    = "s3"
	ProviderMinIO = "minio"
)

// Config is the process-wide configuration of a Loader.
// *Config implements Settings.
type Config struct {
	// LoadMode is "local" or "remote". Defaults to local.
	LoadMode Mode `yaml:"mode"`

	// MetaProfiling enables metadata profiling on lazy loads.
	MetaProfiling bool `yaml:"meta_profiling"`

	// TempDir is the parent of staging directories for downloaded
	// datasets. Empty means os.TempDir().
	TempDir string `yaml:"temp_dir"`

	Cloud CloudConfig `yaml:"cloud"`
}

// CloudConfig configures the object storage backend.
type CloudConfig struct {
	// Provider is "s3" or "minio". Empty disables the cloud backend.
	Provider string `yaml:"provider"`

	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Secure       bool   `yaml:"secure"`

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	// Token is a static session token.
	Token string `yaml:"token"`

	// TokenEnv names an environment variable holding the session token.
	// It is read on every call to CloudToken and takes precedence over Token.
	TokenEnv string `yaml:"token_env"`
}

// Enabled reports whether a cloud provider is configured.
func (c CloudConfig) Enabled() bool {
	return c.Provider != ""
}

// CloudToken returns the current cloud session token.
func (c CloudConfig) CloudToken() (string, error) {
	if c.TokenEnv != "" {
		if tok, ok := os.LookupEnv(c.TokenEnv); ok {
			return tok, nil
		}
		if c.Token == "" {
			return "", fmt.Errorf("gdm: cloud token variable %s is not set", c.TokenEnv)
		}
	}
	return c.Token, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file.
// ${VAR} references are expanded from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func applyDefaults(cfg *Config) {
	if cfg.LoadMode == "" {
		cfg.LoadMode = ModeLocal
	}
	if cfg.Cloud.Provider == ProviderS3 && cfg.Cloud.Region == "" {
		cfg.Cloud.Region = "us-east-1"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	switch c.LoadMode {
	case ModeLocal, ModeRemote:
	default:
		errs = append(errs, fmt.Errorf("mode %q: %w", c.LoadMode, ErrUnknownMode))
	}
	switch c.Cloud.Provider {
	case "", ProviderS3:
	case ProviderMinIO:
		if c.Cloud.Endpoint == "" {
			errs = append(errs, errors.New("cloud.endpoint is required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("cloud.provider %q is not supported", c.Cloud.Provider))
	}
	if (c.Cloud.AccessKeyID == "") != (c.Cloud.SecretAccessKey == "") {
		errs = append(errs, errors.New("cloud.access_key_id and cloud.secret_access_key must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("gdm: invalid config: %w", err)
	}
	return nil
}

// Mode returns the configured load mode.
func (c *Config) Mode() Mode { return c.LoadMode }

// MetaProfilingEnabled reports whether lazy loads build a metadata profile.
func (c *Config) MetaProfilingEnabled() bool { return c.MetaProfiling }

// CloudToken returns the cloud session token.
func (c *Config) CloudToken() (string, error) { return c.Cloud.CloudToken() }

var _ Settings = (*Config)(nil)
