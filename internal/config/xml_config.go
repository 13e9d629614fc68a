// Package config provides XML-based configuration management for the map server.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DistrictMapServer"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Rendering configuration
	Rendering RenderingConfig `xml:"Rendering"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory       string `xml:"DataDirectory"`
	UploadsDirectory    string `xml:"UploadsDirectory"`
	TempDirectory       string `xml:"TempDirectory"`
	DefaultGeometryPath string `xml:"DefaultGeometryPath"`
	DefaultMapConfig    string `xml:"DefaultMapConfigPath"` // empty uses the built-in document
	CoverageDatabase    string `xml:"CoverageDatabase"`
	EnableCoverageAudit bool   `xml:"EnableCoverageAudit"`
	MaxUploadSize       string `xml:"MaxUploadSize"`
}

// RenderingConfig contains map composition and raster settings
type RenderingConfig struct {
	DefaultDPI      int     `xml:"DefaultDPI"`
	MinDPI          int     `xml:"MinDPI"`
	MaxDPI          int     `xml:"MaxDPI"`
	FigureWidthIn   float64 `xml:"FigureWidthInches"`
	FigureHeightIn  float64 `xml:"FigureHeightInches"`
	MinSeparation   float64 `xml:"MinSeparation"`
	MaxAttempts     int     `xml:"MaxAttempts"`
	ShrinkMargin    float64 `xml:"ShrinkMargin"`
	LabelOffset     float64 `xml:"LabelOffset"`
	DistrictField   string  `xml:"DistrictField"`
	ExcludeSuffixes string  `xml:"ExcludeSuffixes"` // comma separated
	Supersample     int     `xml:"Supersample"`
	ImageCacheTTL   int     `xml:"ImageCacheTTLMinutes"`
}

// ProcessingConfig contains session and import settings
type ProcessingConfig struct {
	MaxConcurrentImports   int  `xml:"MaxConcurrentImports"`
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 120,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory:       "./data",
			UploadsDirectory:    "./data/uploads",
			TempDirectory:       "./data/temp",
			DefaultGeometryPath: "./data/shapefile.zip",
			DefaultMapConfig:    "",
			CoverageDatabase:    "./data/coverage.duckdb",
			EnableCoverageAudit: true,
			MaxUploadSize:       "512M",
		},
		Rendering: RenderingConfig{
			DefaultDPI:      150,
			MinDPI:          50,
			MaxDPI:          300,
			FigureWidthIn:   14,
			FigureHeightIn:  12,
			MinSeparation:   0.05,
			MaxAttempts:     30,
			ShrinkMargin:    0.02,
			LabelOffset:     0.06,
			DistrictField:   "NAME_2",
			ExcludeSuffixes: "Urban",
			Supersample:     2,
			ImageCacheTTL:   30,
		},
		Processing: ProcessingConfig{
			MaxConcurrentImports:   2,
			SessionTimeoutMinutes:  60,
			CleanupIntervalMinutes: 5,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "256MB",
		},
	}
}

// LoadConfig loads configuration from XML file. A .env file next to it is
// read first so its values take part in the environment overrides.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(configDir)
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(configDir)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- District Product Map Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would make rendering impossible.
func (c *AppConfig) Validate() error {
	r := c.Rendering
	if r.MinDPI <= 0 || r.MinDPI > r.MaxDPI {
		return fmt.Errorf("invalid DPI range [%d, %d]", r.MinDPI, r.MaxDPI)
	}
	if r.DefaultDPI < r.MinDPI || r.DefaultDPI > r.MaxDPI {
		return fmt.Errorf("default DPI %d outside [%d, %d]", r.DefaultDPI, r.MinDPI, r.MaxDPI)
	}
	if r.FigureWidthIn <= 0 || r.FigureHeightIn <= 0 {
		return fmt.Errorf("figure size must be positive")
	}
	if r.MaxAttempts < 0 || r.MinSeparation < 0 || r.ShrinkMargin < 0 {
		return fmt.Errorf("sampler settings must not be negative")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if field := os.Getenv("DISTRICT_FIELD"); field != "" {
		c.Rendering.DistrictField = field
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.TempDirectory,
		&c.Storage.DefaultGeometryPath,
		&c.Storage.DefaultMapConfig,
		&c.Storage.CoverageDatabase,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ExcludeSuffixList splits Rendering.ExcludeSuffixes.
func (c *AppConfig) ExcludeSuffixList() []string {
	var out []string
	for _, s := range strings.Split(c.Rendering.ExcludeSuffixes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
	}
	if c.Storage.CoverageDatabase != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.CoverageDatabase))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
