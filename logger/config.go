package logger

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
)

// Config is the logging section of a project file.
type Config struct {
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// Level is a zerolog level name: trace, debug, info, warn, error, fatal or disabled.
	Level string `yaml:"level" mapstructure:"level"`
	// Format is json, console or pretty.
	Format  string `yaml:"format" mapstructure:"format"`
	Output  string `yaml:"output" mapstructure:"output"`
	NoColor bool   `yaml:"no_color" mapstructure:"no_color"`
	// Timestamp is always switched on by ApplyDefaults.
	Timestamp bool `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool `yaml:"caller" mapstructure:"caller"`
}

var (
	formats = []string{FormatJSON, FormatConsole, FormatPretty}
	outputs = []string{"stdout", "stderr"}
)

func (c *Config) ApplyDefaults() {
	c.Level = cmp.Or(c.Level, zerolog.LevelInfoValue)
	c.Format = cmp.Or(c.Format, FormatConsole)
	c.Output = cmp.Or(c.Output, "stderr")
	c.Timestamp = true
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil || c.Level == "" {
		return fmt.Errorf("logging.level %q is not a log level", c.Level)
	}
	if !slices.Contains(formats, c.Format) {
		return fmt.Errorf("logging.format must be one of %v (got: %s)", formats, c.Format)
	}
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("logging.output must be one of %v (got: %s)", outputs, c.Output)
	}
	return nil
}
