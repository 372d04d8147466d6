package secrets

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/plugins"
)

// Built-in provider types.
const (
	ProviderEnv  = "env"
	ProviderFile = "file"
)

// Provider retrieves secret values.
type Provider interface {
	// GetSecret returns the value for id, or a SECRET_ACCESS error.
	GetSecret(id string) (string, error)
}

// Env reads secrets from environment variables.
type Env struct {
	lookup func(string) (string, bool)
}

// NewEnv returns a provider backed by the process environment.
func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

// GetSecret returns the value of the environment variable id. A variable
// that is set to the empty string is returned as such.
func (e *Env) GetSecret(id string) (string, error) {
	v, ok := e.lookup(id)
	if !ok {
		return "", errors.SecretAccess(id).WithDetail("provider", ProviderEnv)
	}
	return v, nil
}

// File reads each secret from a file named after its id.
type File struct {
	dir string
}

// NewFile returns a provider reading secrets from dir.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// GetSecret returns the contents of dir/id with surrounding whitespace
// removed.
func (f *File) GetSecret(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", errors.SecretAccess(id).WithDetail("provider", ProviderFile).
			WithCause(fmt.Errorf("invalid secret id"))
	}
	data, err := os.ReadFile(filepath.Join(f.dir, id))
	if err != nil {
		e := errors.SecretAccess(id).WithDetail("provider", ProviderFile)
		if !stderrors.Is(err, fs.ErrNotExist) {
			e = e.WithCause(err)
		}
		return "", e
	}
	return strings.TrimSpace(string(data)), nil
}

var providers = plugins.NewRegistry[Provider]("secrets provider")

func init() {
	providers.Register(ProviderEnv, func(map[string]any) (Provider, error) {
		return NewEnv(), nil
	})
	providers.Register(ProviderFile, func(cfg map[string]any) (Provider, error) {
		dir, _ := cfg["dir"].(string)
		if dir == "" {
			return nil, fmt.Errorf("file secrets provider requires a dir setting")
		}
		return NewFile(dir), nil
	})
}

// Register adds a provider type. Provider packages call it from init.
func Register(providerType string, factory plugins.Factory[Provider]) {
	providers.Register(providerType, factory)
}

// Resolve instantiates the provider registered for providerType.
func Resolve(providerType string, cfg map[string]any) (Provider, error) {
	return providers.Resolve(providerType, cfg)
}

// Types lists the registered provider types.
func Types() []string { return providers.Names() }
