package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

const fileExt = ".json"

// Store is a byte cache keyed by string.
type Store interface {
	// Get returns the cached bytes for key. ok is false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error
	// Delete removes key. Returns nil if key is not cached.
	Delete(ctx context.Context, key string) error
}

// Local implements Store on the local filesystem. Each key is one file;
// writes go to a temp file that is renamed into place, so concurrent
// writers sharing a directory never expose a partial entry.
type Local struct {
	dir string
}

// New creates the store selected by cfg, or returns nil when caching is
// disabled. Stores that hold connections implement io.Closer.
func New(cfg Config) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Disabled {
		return nil, nil
	}
	if cfg.Backend == BackendRedis {
		r, err := NewRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	l, err := NewLocal(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// NewLocal creates a local cache rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.ConfigurationError("cache: resolve directory", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errors.ConfigurationError("cache: create directory", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute cache directory.
func (l *Local) Dir() string { return l.dir }

// Get reads the entry for key.
func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read %q: %w", key, err)
	}
	return data, true, nil
}

// Put writes the entry for key atomically.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(l.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, l.path(key)); err != nil {
		return fmt.Errorf("cache: commit %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key. Returns nil if it does not exist.
func (l *Local) Delete(_ context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Files returns the cache file names in sorted order.
func (l *Local) Files() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("cache: list: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FileName maps key to its cache file name: a readable prefix of the key
// followed by its xxh3 hash, so keys holding paths stay valid file names.
func FileName(key string) string {
	return fmt.Sprintf("%s-%016x%s", readablePrefix(key), xxh3.HashString(key), fileExt)
}

func (l *Local) path(key string) string {
	return filepath.Join(l.dir, FileName(key))
}

func readablePrefix(key string) string {
	const maxLen = 48
	var b strings.Builder
	for i := 0; i < len(key) && b.Len() < maxLen; i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "entry"
	}
	return b.String()
}

// compile-time check
var _ Store = (*Local)(nil)
