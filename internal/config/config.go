package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio = "stdio"
	ModeBatch = "batch"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultWorkers     = 0                 // 0 selects one worker per CPU
	DefaultOutput      = "invoices.csv"
)

// Config holds all configuration for the invoice extraction tool.
type Config struct {
	// Mode selects between the MCP stdio surface and one-shot batch runs.
	Mode string

	// Batch configuration
	InvoiceDirectory string
	OutputPath       string
	Workers          int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:             ModeBatch,
		InvoiceDirectory: currentDir,
		OutputPath:       DefaultOutput,
		Workers:          DefaultWorkers,
		Version:          "1.0.0",
		ServerName:       "fapiao-extract",
		LogLevel:         DefaultLogLevel,
		MaxFileSize:      DefaultMaxFileSize,
	}
}

// LoadFromFlags loads configuration from command line flags and
// environment variables.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.InvoiceDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.InvoiceDirectory); err == nil {
			cfg.InvoiceDirectory = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FAPIAO")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("dir", cfg.InvoiceDirectory)
	viper.SetDefault("out", cfg.OutputPath)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' for a one-shot directory run, 'stdio' for MCP standard I/O")
	pflag.String("dir", cfg.InvoiceDirectory, "Directory containing invoice PDF files")
	pflag.String("out", cfg.OutputPath, "Output path for exported results (.csv or .xlsx)")
	pflag.Int("workers", cfg.Workers, "Concurrent document workers (0 = one per CPU)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("out", pflag.Lookup("out"))
	_ = viper.BindPFlag("workers", pflag.Lookup("workers"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nfapiao-extract - batch field extraction for VAT invoice PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/invoices                 # extract and write invoices.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/invoices --out=out.xlsx  # xlsx export\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                            # MCP server over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_MODE         Run mode\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_DIR          Invoice directory\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_OUT          Output path\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_WORKERS      Concurrent workers\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  FAPIAO_MAXFILESIZE  Maximum file size\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.InvoiceDirectory = viper.GetString("dir")
	cfg.OutputPath = viper.GetString("out")
	cfg.Workers = viper.GetInt("workers")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeBatch {
		return errors.New("mode must be either 'stdio' or 'batch'")
	}

	if c.InvoiceDirectory == "" {
		return errors.New("invoice directory cannot be empty")
	}
	if info, err := os.Stat(c.InvoiceDirectory); err != nil {
		return fmt.Errorf("cannot access invoice directory %s: %w", c.InvoiceDirectory, err)
	} else if !info.IsDir() {
		return fmt.Errorf("invoice directory %s is not a directory", c.InvoiceDirectory)
	}

	if c.Mode == ModeBatch && c.OutputPath == "" {
		return errors.New("output path cannot be empty in batch mode")
	}

	if c.Workers < 0 {
		return errors.New("workers cannot be negative")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
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

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, InvoiceDirectory: %s, OutputPath: %s, Workers: %d, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.InvoiceDirectory, c.OutputPath, c.Workers, c.LogLevel, c.MaxFileSize)
}

// IsBatchMode returns true when running a one-shot batch.
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsStdioMode returns true when serving MCP over stdio.
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
