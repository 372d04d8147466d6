package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/secrets"
)

const (
	// ConnEnvPrefix prefixes connection override variables.
	ConnEnvPrefix = "OMOPCLOUDETL_CONN_"
	// nestedEnvDelimiter separates nested keys in override variables.
	nestedEnvDelimiter = "__"
	// defaultEnvFile is looked up next to the project file.
	defaultEnvFile = ".env"
)

// FileSystem abstracts the file operations of the loader.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem on the OS.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file without overriding variables already set.
func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional overrides.
type LoaderConfig struct {
	FileSystem      FileSystem
	EnvFile         string
	SecretsProvider secrets.Provider
	Logger          *logger.Logger
}

// LoaderOption is a functional option for LoadProjectConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithSecretsProvider bypasses the provider named in the project file.
func WithSecretsProvider(p secrets.Provider) LoaderOption {
	return func(lc *LoaderConfig) { lc.SecretsProvider = p }
}

// WithLogger sets the logger used for loader warnings.
func WithLogger(l *logger.Logger) LoaderOption {
	return func(lc *LoaderConfig) { lc.Logger = l }
}

// LoadProjectConfig reads, validates and resolves the project file at path.
// The returned configuration has its connection password resolved.
func LoadProjectConfig(path string, opts ...LoaderOption) (*ProjectConfig, error) {
	lc := LoaderConfig{}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}
	if lc.Logger == nil {
		lc.Logger = logger.Nop()
	}
	log := lc.Logger.WithComponent("config")

	if !lc.FileSystem.Exists(path) {
		return nil, errors.ConfigurationError("configuration file not found at: "+path, nil).WithPath(path)
	}

	envFile := lc.EnvFile
	if envFile == "" {
		envFile = filepath.Join(filepath.Dir(path), defaultEnvFile)
	}
	if lc.FileSystem.Exists(envFile) {
		if err := lc.FileSystem.LoadEnv(envFile); err != nil {
			log.WithError(err).Warn("failed to load .env file", logger.Fields(logger.FieldFile, envFile))
		}
	} else if lc.EnvFile != "" {
		return nil, errors.ConfigurationError("env file not found at: "+envFile, nil).WithPath(envFile)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.ConfigurationError("error parsing YAML configuration file", err).WithPath(path)
	}
	bindConnectionEnv(v, os.Environ())

	var cfg ProjectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError("error decoding configuration", err).WithPath(path)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithPath(path)
		}
		return nil, err
	}

	provider := lc.SecretsProvider
	if provider == nil && cfg.needsSecret() {
		p, err := secrets.Resolve(cfg.Secrets.ProviderType, cfg.Secrets.Configuration)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	return ResolveSecrets(&cfg, provider, log)
}

// bindConnectionEnv applies OMOPCLOUDETL_CONN_* variables on top of the
// file values. Names are case-insensitive; "__" descends into maps.
func bindConnectionEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || len(key) <= len(ConnEnvPrefix) || !strings.EqualFold(key[:len(ConnEnvPrefix)], ConnEnvPrefix) {
			continue
		}
		parts := strings.Split(strings.ToLower(key[len(ConnEnvPrefix):]), nestedEnvDelimiter)
		v.Set("connection."+strings.Join(parts, "."), value)
	}
}
