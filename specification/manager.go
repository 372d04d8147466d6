package specification

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/CoReason-AI/omopcloudetl-core/cache"
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/logger"
	"github.com/CoReason-AI/omopcloudetl-core/observability"
	"github.com/CoReason-AI/omopcloudetl-core/resilience"
	"github.com/CoReason-AI/omopcloudetl-core/version"
)

// maxBodySize caps a downloaded CSV. The CDM v5.4 file is well under 1 MiB.
var maxBodySize int64 = 32 << 20

// Fetch outcomes reported to metrics.
const (
	outcomeCacheHit = "cache_hit"
	outcomeFetched  = "fetched"
	outcomeError    = "error"
)

// Catalog sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Manager fetches, parses and caches CDM catalogs. It is safe for
// concurrent use.
type Manager struct {
	cfg      Config
	client   *http.Client
	store    cache.Store
	storeSet bool
	log      *logger.Logger
	tracer   trace.Tracer
	metrics  *observability.CompileMetrics
	breaker  *resilience.Breaker
	s3       S3API
	group    singleflight.Group
}

var _ Resolver = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the HTTP client. cfg.Timeout is not applied to it.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithStore replaces the cache built from cfg.Cache. A nil store
// disables caching.
func WithStore(s cache.Store) Option {
	return func(m *Manager) {
		m.store = s
		m.storeSet = true
	}
}

// WithS3Client replaces the client built from cfg.S3 for s3:// base URLs.
func WithS3Client(c S3API) Option {
	return func(m *Manager) { m.s3 = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l.WithComponent("specification") }
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.CompileMetrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg: cfg,
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: cfg.Timeout}
	}
	breakerCfg := cfg.Breaker
	userOnStateChange := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to resilience.State) {
		m.log.Warn("specification source circuit changed state", logger.Fields(
			"from", from.String(), "to", to.String()))
		if userOnStateChange != nil {
			userOnStateChange(from, to)
		}
	}
	m.breaker = resilience.NewBreaker(breakerCfg)
	if isS3URL(cfg.BaseURL) && m.s3 == nil {
		client, err := newS3Client(context.Background(), cfg.S3)
		if err != nil {
			return nil, err
		}
		m.s3 = client
	}
	if !m.storeSet {
		store, err := cache.New(cfg.Cache)
		if err != nil {
			return nil, err
		}
		m.store = store
	}
	return m, nil
}

// Close releases the cache store when it holds connections.
func (m *Manager) Close() error {
	if c, ok := m.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CacheKey returns the cache key for a version and optional local file.
func CacheKey(version, localOverride string) string {
	source := SourceRemote
	if localOverride != "" {
		source = localOverride
	}
	return fmt.Sprintf("cdm_spec_%s_%s", version, source)
}

// Fetch returns the catalog for version, from cache when present. The
// returned value is a copy the caller may modify.
func (m *Manager) Fetch(ctx context.Context, version, localOverride string) (*CDMSpecification, error) {
	if version == "" {
		e := errors.SpecificationError("cdm version is required", nil)
		e.Retryable = false
		return nil, e
	}

	key := CacheKey(version, localOverride)
	ch := m.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not
		// fail the others. HTTP attempts stay bounded by the client timeout.
		return m.resolve(context.WithoutCancel(ctx), key, version, localOverride)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*CDMSpecification).Clone(), nil
	}
}

// Invalidate drops the cached catalog for version.
func (m *Manager) Invalidate(ctx context.Context, version, localOverride string) error {
	if m.store == nil {
		return nil
	}
	return m.store.Delete(ctx, CacheKey(version, localOverride))
}

func (m *Manager) resolve(ctx context.Context, key, version, localOverride string) (*CDMSpecification, error) {
	source := SourceRemote
	if localOverride != "" {
		source = SourceLocal
	}

	ctx, op := observability.StartOperation(ctx, m.tracer, observability.SpanSpecificationFetch,
		attribute.String(observability.AttrCDMVersion, version),
		attribute.String(observability.AttrSpecSource, source),
	)
	spec, outcome, err := m.load(ctx, key, version, localOverride)
	op.End(err, attribute.Bool(observability.AttrCacheHit, outcome == outcomeCacheHit))
	m.metrics.RecordSpecFetch(ctx, source, outcome)

	fields := logger.Fields(logger.FieldCDMVersion, version, "source", source, "outcome", outcome)
	fields[logger.FieldDuration] = op.Duration().Milliseconds()
	if err != nil {
		m.log.WithError(err).Error("specification fetch failed", fields)
		return nil, err
	}
	m.log.Debug("specification resolved", fields)
	return spec, nil
}

func (m *Manager) load(ctx context.Context, key, version, localOverride string) (*CDMSpecification, string, error) {
	if spec := m.cached(ctx, key); spec != nil {
		return spec, outcomeCacheHit, nil
	}

	var content []byte
	var err error
	if localOverride != "" {
		content, err = readLocal(localOverride)
	} else {
		content, err = m.fetchRemote(ctx, version)
	}
	if err != nil {
		return nil, outcomeError, err
	}

	tables, err := ParseCSV(bytes.NewReader(content))
	if err != nil {
		e := errors.SpecificationError(fmt.Sprintf("failed to parse specification for version %s", version), err)
		e.Retryable = false
		return nil, outcomeError, e
	}
	spec := &CDMSpecification{Version: version, Tables: tables}
	m.save(ctx, key, spec)
	return spec, outcomeFetched, nil
}

func (m *Manager) cached(ctx context.Context, key string) *CDMSpecification {
	if m.store == nil {
		return nil
	}
	data, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.log.WithError(err).Warn("specification cache read failed", logger.Fields("key", key))
		return nil
	}
	if !ok {
		return nil
	}
	var spec CDMSpecification
	if err := json.Unmarshal(data, &spec); err != nil || spec.Tables == nil {
		m.log.Warn("ignoring corrupt specification cache entry", logger.Fields("key", key))
		return nil
	}
	return &spec
}

func (m *Manager) save(ctx context.Context, key string, spec *CDMSpecification) {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(spec)
	if err == nil {
		err = m.store.Put(ctx, key, data)
	}
	if err != nil {
		m.log.WithError(err).Warn("specification cache write failed", logger.Fields("key", key))
	}
}

func readLocal(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		return content, nil
	}
	var e *errors.AppError
	if stderrors.Is(err, fs.ErrNotExist) {
		e = errors.SpecificationError(fmt.Sprintf("local specification file not found at: %s", path), err)
	} else {
		e = errors.SpecificationError(fmt.Sprintf("failed to read local specification %s", path), err)
	}
	e.Retryable = false
	return nil, e.WithPath(path)
}

func (m *Manager) fetchRemote(ctx context.Context, version string) ([]byte, error) {
	url := m.cfg.SpecURL(version)
	retry := m.cfg.Retry
	userOnRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		m.log.Warn("retrying specification download", logger.Fields(
			"url", url, "attempt", attempt, "backoff_ms", backoff.Milliseconds(), logger.FieldError, err.Error()))
		if userOnRetry != nil {
			userOnRetry(attempt, err, backoff)
		}
	}

	content, err := resilience.Execute(ctx, m.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.Retry(ctx, retry, func(ctx context.Context) ([]byte, error) {
			if isS3URL(url) {
				return m.downloadS3(ctx, url)
			}
			return m.download(ctx, url)
		})
	})
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		e := errors.SpecificationError("specification source is unavailable; remote fetches are suspended", err).
			WithDetail("url", url)
		e.Retryable = false
		return nil, e
	}
	if err != nil {
		return nil, errors.SpecificationError(
			fmt.Sprintf("failed to fetch remote specification for version %s", version), err).
			WithDetail("url", url)
	}
	return content, nil
}

// download performs one GET. Transport failures, 429 and 5xx are
// retryable; other statuses are not.
func (m *Manager) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e := errors.SpecificationError(fmt.Sprintf("invalid specification url %s", url), err)
		e.Retryable = false
		return nil, e
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, errors.SpecificationError(fmt.Sprintf("failed to fetch specification data from %s", url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		e := errors.SpecificationError(
			fmt.Sprintf("failed to fetch specification data from %s: HTTP %d", url, resp.StatusCode), nil).
			WithDetail("status", resp.StatusCode)
		e.Retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, e
	}

	return readBody(resp.Body, url)
}

// readBody reads at most maxBodySize bytes. A larger body is rejected
// rather than truncated, since a cut CSV can still parse.
func readBody(r io.Reader, source string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, errors.SpecificationError(fmt.Sprintf("failed to read specification data from %s", source), err)
	}
	if int64(len(body)) > maxBodySize {
		e := errors.SpecificationError(
			fmt.Sprintf("specification data from %s exceeds %d bytes", source, maxBodySize), nil).
			WithDetail("limit", maxBodySize)
		e.Retryable = false
		return nil, e
	}
	return body, nil
}
