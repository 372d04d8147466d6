package specification

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/CoReason-AI/omopcloudetl-core/cache"
	"github.com/CoReason-AI/omopcloudetl-core/errors"
	"github.com/CoReason-AI/omopcloudetl-core/resilience"
)

const (
	// DefaultBaseURL is the OHDSI CommonDataModel CSV directory.
	DefaultBaseURL = "https://raw.githubusercontent.com/OHDSI/CommonDataModel/master/inst/csv"
	// DefaultFilePattern names the field-level CSV; {version} is replaced
	// by the requested CDM version.
	DefaultFilePattern = "OMOP_CDM_v{version}_Field_Level.csv"
	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultS3Region is used for s3:// base URLs without a region.
	DefaultS3Region = "us-east-1"
)

// S3Config configures fetching from an s3://bucket/prefix base URL.
type S3Config struct {
	// Region is the AWS region of the bucket.
	Region string `mapstructure:"region" yaml:"region"`
	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// AccessKey and SecretKey select static credentials; otherwise the
	// default AWS credential chain is used.
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// Config configures a Manager.
type Config struct {
	// BaseURL is the directory the field-level CSV is fetched from.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// FilePattern is the CSV file name; {version} is substituted.
	FilePattern string `mapstructure:"file_pattern" yaml:"file_pattern"`
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Cache configures the on-disk catalog cache.
	Cache cache.Config `mapstructure:"cache" yaml:"cache"`
	// Retry configures remote fetch retries.
	Retry resilience.RetryConfig `mapstructure:"retry" yaml:"retry"`
	// Breaker stops remote fetches after repeated exhausted retries.
	Breaker resilience.BreakerConfig `mapstructure:"breaker" yaml:"breaker"`
	// S3 configures s3:// base URLs.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.FilePattern == "" {
		c.FilePattern = DefaultFilePattern
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		onRetry := c.Retry.OnRetry
		c.Retry = resilience.DefaultRetryConfig()
		c.Retry.OnRetry = onRetry
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultS3Region
	}
	c.Breaker.ApplyDefaults()
	c.Cache.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return errors.ConfigurationError(fmt.Sprintf("specification: invalid base_url %q", c.BaseURL), err)
	}
	switch u.Scheme {
	case "http", "https", schemeS3:
	default:
		return errors.ConfigurationError(
			fmt.Sprintf("specification: base_url scheme must be http, https or s3, got %q", u.Scheme), nil)
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return errors.ConfigurationError("specification: s3.access_key and s3.secret_key must be set together", nil)
	}
	if !strings.Contains(c.FilePattern, "{version}") {
		return errors.ConfigurationError("specification: file_pattern must contain {version}", nil)
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.ConfigurationError("specification: retry.max_attempts must not be negative", nil)
	}
	return c.Cache.Validate()
}

// SpecURL returns the remote CSV location for version.
func (c *Config) SpecURL(version string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.ReplaceAll(c.FilePattern, "{version}", version)
}
