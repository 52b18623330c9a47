package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-filler/internal/matching"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultWorkers     = 4

	// EnvPrefix prefixes every environment variable the server reads
	EnvPrefix = "MCP_PDF_FILLER"

	appDirName = "mcp-pdf-filler"
)

// Config holds all configuration for the PDF form filler server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Directories
	PDFDirectory  string
	DataDirectory string // where imported provider data is kept

	// Matching configuration
	MatchThreshold float64
	CategoryBoost  float64
	WordOverlap    bool // score shared words when labels do not contain each other

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum input file size in bytes
	Workers     int   // concurrent fills in a batch
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFDirectory:   currentDir,
		DataDirectory:  defaultDataDirectory(),
		MatchThreshold: matching.DefaultThreshold,
		CategoryBoost:  matching.DefaultBoost,
		Version:        "1.0.0",
		ServerName:     "mcp-pdf-filler",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
		Workers:        DefaultWorkers,
	}
}

// defaultDataDirectory is the per-user config directory, or empty when the
// platform has none; the service then keeps data beside the PDFs
func defaultDataDirectory() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDirName)
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, dir := range []*string{&cfg.PDFDirectory, &cfg.DataDirectory} {
		if *dir == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*dir); err == nil {
			*dir = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("data-dir", cfg.DataDirectory)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("match-threshold", cfg.MatchThreshold)
	viper.SetDefault("category-boost", cfg.CategoryBoost)
	viper.SetDefault("word-overlap", cfg.WordOverlap)
	viper.SetDefault("workers", cfg.Workers)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF forms and provider exports")
	pflag.String("data-dir", cfg.DataDirectory, "Directory where imported provider data is stored")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum input file size in bytes")
	pflag.Float64("match-threshold", cfg.MatchThreshold, "Lowest similarity that counts as a field match (0-1)")
	pflag.Float64("category-boost", cfg.CategoryBoost, "Score given to fields sharing a category (0-1)")
	pflag.Bool("word-overlap", cfg.WordOverlap, "Score labels by shared words when neither contains the other")
	pflag.Int("workers", cfg.Workers, "Concurrent fills during a batch")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "data-dir", "log-level",
		"max-file-size", "match-threshold", "category-boost", "word-overlap", "workers",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Filler - A Model Context Protocol server for filling PDF forms from provider data\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                    "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/forms      # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --match-threshold=0.6                   # stricter matching\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE             Server mode\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_HOST             Server host\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_PORT             Server port\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_DIR              Forms directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_DATA_DIR         Provider data directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_LOG_LEVEL        Log level\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MAX_FILE_SIZE    Maximum file size\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MATCH_THRESHOLD  Match threshold\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_CATEGORY_BOOST   Category boost\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_WORD_OVERLAP     Score shared words (true/false)\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_WORKERS          Batch workers\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.DataDirectory = viper.GetString("data-dir")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.MatchThreshold = viper.GetFloat64("match-threshold")
	cfg.CategoryBoost = viper.GetFloat64("category-boost")
	cfg.WordOverlap = viper.GetBool("word-overlap")
	cfg.Workers = viper.GetInt("workers")
}

// Validate checks if the configuration is valid. Directories are not created
// here so placeholder paths survive until the server starts
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters in server mode
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if info, err := os.Stat(c.PDFDirectory); err == nil && !info.IsDir() {
		return fmt.Errorf("PDF directory is not a directory: %s", c.PDFDirectory)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if err := c.Matching().Validate(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Matching returns the scoring constants as a matching configuration
func (c *Config) Matching() matching.Config {
	return matching.Config{Threshold: c.MatchThreshold, Boost: c.CategoryBoost, WordOverlap: c.WordOverlap}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, DataDirectory: %s, "+
		"LogLevel: %s, MaxFileSize: %d, MatchThreshold: %.2f, CategoryBoost: %.2f, WordOverlap: %t, Workers: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.DataDirectory,
		c.LogLevel, c.MaxFileSize, c.MatchThreshold, c.CategoryBoost, c.WordOverlap, c.Workers)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
