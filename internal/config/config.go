package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"texture-compressor-go/internal/compressor"
	"texture-compressor-go/internal/texture"

	"github.com/spf13/viper"
)

// Encoder backends.
const (
	BackendCLI     = "cli"
	BackendBuiltin = "builtin"
)

// Config represents the main configuration structure
type Config struct {
	InputDirectory      string            `mapstructure:"input_directory"`
	OutputDirectory     string            `mapstructure:"output_directory"`
	Formats             []string          `mapstructure:"formats"`
	SupportedExtensions []string          `mapstructure:"supported_extensions"`
	Exclude             []string          `mapstructure:"exclude"`
	Validation          ValidationConfig  `mapstructure:"validation"`
	Compressor          CompressorConfig  `mapstructure:"compressor"`
	Performance         PerformanceConfig `mapstructure:"performance"`
	Security            SecurityConfig    `mapstructure:"security"`
	Logging             LoggingConfig     `mapstructure:"logging"`
}

// ValidationConfig controls the pre-compression checks
type ValidationConfig struct {
	IgnoreErrors     bool `mapstructure:"ignore_errors"`
	CheckOrientation bool `mapstructure:"check_orientation"`
}

// CompressorConfig selects and tunes the encoder
type CompressorConfig struct {
	Backend string        `mapstructure:"backend"`
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
	Quality string        `mapstructure:"quality"` // builtin backend only
}

// PerformanceConfig contains performance tuning settings
type PerformanceConfig struct {
	WorkerThreads int `mapstructure:"worker_threads"`
}

// SecurityConfig contains safety settings
type SecurityConfig struct {
	DryRun         bool `mapstructure:"dry_run"`
	MaxFilesPerRun int  `mapstructure:"max_files_per_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	// Slices stay nil: Unmarshal decodes into an existing slice element by
	// element, and Validate fills in the default extensions.
	return &Config{
		Validation: ValidationConfig{
			IgnoreErrors:     false,
			CheckOrientation: true,
		},
		Compressor: CompressorConfig{
			Backend: BackendCLI,
			Binary:  compressor.DefaultBinary,
			Timeout: compressor.DefaultTimeout,
			Quality: "default",
		},
		Performance: PerformanceConfig{
			WorkerThreads: 0, // 0 means CPU count minus one
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Directories are not checked here; see ValidatePaths.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.texcompress")
		v.AddConfigPath("/etc/texcompress")
	}

	v.SetEnvPrefix("TEXCOMPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every key so AutomaticEnv values reach Unmarshal
// even when no config file mentions them.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"input_directory", "output_directory", "formats", "supported_extensions", "exclude",
		"validation.ignore_errors", "validation.check_orientation",
		"compressor.backend", "compressor.binary", "compressor.timeout", "compressor.quality",
		"performance.worker_threads",
		"security.dry_run", "security.max_files_per_run",
		"logging.level", "logging.format", "logging.file_path",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates and normalizes the configuration
func (c *Config) Validate() error {
	formats, err := texture.ParseFormats(c.Formats)
	if err != nil {
		return err
	}
	c.Formats = make([]string, len(formats))
	for i, f := range formats {
		c.Formats[i] = f.Name
	}

	if len(c.SupportedExtensions) == 0 {
		c.SupportedExtensions = append([]string(nil), texture.DefaultExtensions...)
	}
	c.SupportedExtensions = normalizeExtensions(c.SupportedExtensions)

	c.Compressor.Backend = strings.ToLower(c.Compressor.Backend)
	switch c.Compressor.Backend {
	case BackendCLI:
		if c.Compressor.Binary == "" {
			c.Compressor.Binary = compressor.DefaultBinary
		}
	case BackendBuiltin:
	default:
		return fmt.Errorf("invalid compressor backend: %s (valid: cli, builtin)", c.Compressor.Backend)
	}

	if c.Compressor.Timeout <= 0 {
		c.Compressor.Timeout = compressor.DefaultTimeout
	}

	if c.Performance.WorkerThreads <= 0 {
		c.Performance.WorkerThreads = compressor.DefaultWorkers()
	}

	if c.Security.MaxFilesPerRun < 0 {
		return fmt.Errorf("max_files_per_run must not be negative: %d", c.Security.MaxFilesPerRun)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// ValidatePaths checks the input and output locations. A missing output
// directory is created.
func (c *Config) ValidatePaths() error {
	if c.InputDirectory == "" {
		return fmt.Errorf("input directory is required")
	}
	info, err := os.Stat(c.InputDirectory)
	if err != nil {
		return fmt.Errorf("input directory does not exist: %s", c.InputDirectory)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", c.InputDirectory)
	}

	if c.OutputDirectory == "" {
		return fmt.Errorf("output directory is required")
	}
	info, err = os.Stat(c.OutputDirectory)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("output path is not a directory: %s", c.OutputDirectory)
	case os.IsNotExist(err):
		if err := os.MkdirAll(c.OutputDirectory, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to access output directory: %w", err)
	}

	return nil
}

// SelectedFormats returns the parsed output formats.
func (c *Config) SelectedFormats() ([]texture.Format, error) {
	return texture.ParseFormats(c.Formats)
}

// IsInPlace returns true if outputs are written next to their sources
func (c *Config) IsInPlace() bool {
	return texture.Layout{InputRoot: c.InputDirectory, OutputRoot: c.OutputDirectory}.InPlace()
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
