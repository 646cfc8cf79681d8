// Package config provides configuration loading and management for furnacewear.
// It handles loading configuration from YAML files, applies FURNACEWEAR_*
// environment overrides and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"furnacewear/internal/models"
	"furnacewear/pkg/ingest"
	"furnacewear/pkg/repair"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// HTTP server parameters
	Server struct {
		// Address is the listen address of the REST API
		Address string `yaml:"address"`

		// MetricsAddress serves /metrics separately; empty disables it
		MetricsAddress string `yaml:"metricsAddress"`

		// ShutdownTimeout bounds graceful shutdown
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

		// MaxUploadMB limits the size of uploaded scan files
		MaxUploadMB int `yaml:"maxUploadMB"`
	} `yaml:"server"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn or error
		Level string `yaml:"level"`

		// JSON switches the handler from text to JSON
		JSON bool `yaml:"json"`
	} `yaml:"logging"`

	// Storage parameters
	Storage struct {
		// DatabasePath is the SQLite file holding furnaces, campaigns and scans
		DatabasePath string `yaml:"databasePath"`

		// ScanFolder is loaded into the file cache at startup when set
		ScanFolder string `yaml:"scanFolder"`
	} `yaml:"storage"`

	// Shared proposal cache parameters
	Cache struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	// Ingestion parameters
	Ingest struct {
		// Workers bounds concurrent parsing of a folder
		Workers int `yaml:"workers"`

		// ThicknessSource is auto, column, reflectivity, distance or z
		ThicknessSource string `yaml:"thicknessSource"`

		// ReflectivityDivisor converts reflectivity into thickness
		ReflectivityDivisor float64 `yaml:"reflectivityDivisor"`

		// Scale divides every coordinate when positive, otherwise the scale
		// is inferred per row
		Scale float64 `yaml:"scale"`

		// FurnaceID is stamped on points ingested from the scan folder
		FurnaceID string `yaml:"furnaceId"`
	} `yaml:"ingest"`

	// Analysis parameters
	Analysis struct {
		RepairMaterial       string             `yaml:"repairMaterial"`
		WearThreshold        float64            `yaml:"wearThreshold"`
		DistanceBetweenAreas float64            `yaml:"distanceBetweenAreas"`
		MinimumAreaSize      int                `yaml:"minimumAreaSize"`
		ClusterMode          models.ClusterMode `yaml:"clusterMode"`
		ScanWindow           int                `yaml:"scanWindow"`

		// PointDensity is the number of scan points per square meter
		PointDensity float64 `yaml:"pointDensity"`

		// WearUnitDivisor converts wear depth into meters
		WearUnitDivisor float64 `yaml:"wearUnitDivisor"`
	} `yaml:"analysis"`

	// Materials is the repair material catalogue
	Materials []models.Material `yaml:"materials"`

	// Output parameters for the batch tool
	Output struct {
		// ExtractSlices writes a PNG image per profile of every file
		ExtractSlices bool `yaml:"extractSlices"`

		// SlicesDir is the directory the images are written to
		SlicesDir string `yaml:"slicesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.MetricsAddress = ":9090"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.MaxUploadMB = 64

	cfg.Logging.Level = "info"

	cfg.Storage.DatabasePath = "data/furnacewear.db"

	cfg.Cache.Addr = "localhost:6379"
	cfg.Cache.TTL = 15 * time.Minute

	cfg.Ingest.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Ingest.ThicknessSource = string(ingest.ThicknessAuto)
	cfg.Ingest.ReflectivityDivisor = ingest.DefaultReflectivityDivisor
	cfg.Ingest.FurnaceID = models.DefaultFurnaceID

	constants := repair.DefaultConstants()
	cfg.Analysis.RepairMaterial = "magnesia-gunning"
	cfg.Analysis.WearThreshold = 20
	cfg.Analysis.DistanceBetweenAreas = 0.5
	cfg.Analysis.MinimumAreaSize = 10
	cfg.Analysis.ClusterMode = models.ClusterSeedAnchored
	cfg.Analysis.ScanWindow = 1000
	cfg.Analysis.PointDensity = constants.PointDensity
	cfg.Analysis.WearUnitDivisor = constants.WearUnitDivisor

	cfg.Materials = repair.DefaultMaterials()

	cfg.Output.SlicesDir = "slices"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file and the environment.
// If the file doesn't exist, the defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every setting the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ingest.ParseThicknessSource(c.Ingest.ThicknessSource); err != nil {
		errs = append(errs, err)
	}
	if c.Ingest.Workers < 0 {
		errs = append(errs, fmt.Errorf("ingest.workers must be non-negative"))
	}
	if err := c.AnalysisParams().Validate(); err != nil {
		errs = append(errs, err)
	}
	if catalogue, err := c.Catalogue(); err != nil {
		errs = append(errs, err)
	} else if _, err := catalogue.Lookup(c.Analysis.RepairMaterial); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, fmt.Errorf("cache.addr is required when the cache is enabled"))
	}
	return errors.Join(errs...)
}

// AnalysisParams returns the initial analysis parameters.
func (c *Config) AnalysisParams() models.AnalysisParams {
	return models.AnalysisParams{
		RepairMaterial:       c.Analysis.RepairMaterial,
		WearThreshold:        c.Analysis.WearThreshold,
		DistanceBetweenAreas: c.Analysis.DistanceBetweenAreas,
		MinimumAreaSize:      c.Analysis.MinimumAreaSize,
		ClusterMode:          c.Analysis.ClusterMode,
		ScanWindow:           c.Analysis.ScanWindow,
	}
}

// RepairConstants returns the proposal unit conversions.
func (c *Config) RepairConstants() repair.Constants {
	return repair.Constants{
		PointDensity:    c.Analysis.PointDensity,
		WearUnitDivisor: c.Analysis.WearUnitDivisor,
	}
}

// Catalogue builds the material catalogue.
func (c *Config) Catalogue() (*repair.Catalogue, error) {
	return repair.NewCatalogue(c.Materials)
}

// ParseOptions returns the parser options for ingested files.
func (c *Config) ParseOptions() ingest.Options {
	src, _ := ingest.ParseThicknessSource(c.Ingest.ThicknessSource)
	return ingest.Options{
		FurnaceID:           c.Ingest.FurnaceID,
		ThicknessSource:     src,
		ReflectivityDivisor: c.Ingest.ReflectivityDivisor,
		Scale:               c.Ingest.Scale,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FURNACEWEAR_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v, ok := os.LookupEnv("FURNACEWEAR_METRICS_ADDRESS"); ok {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FURNACEWEAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FURNACEWEAR_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("FURNACEWEAR_DB_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("FURNACEWEAR_SCAN_FOLDER"); v != "" {
		cfg.Storage.ScanFolder = v
	}
	if v := os.Getenv("FURNACEWEAR_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FURNACEWEAR_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FURNACEWEAR_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FURNACEWEAR_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("FURNACEWEAR_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = ttl
		}
	}
	if v := os.Getenv("FURNACEWEAR_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Workers = n
		}
	}
	if v := os.Getenv("FURNACEWEAR_THICKNESS_SOURCE"); v != "" {
		cfg.Ingest.ThicknessSource = v
	}
	if v := os.Getenv("FURNACEWEAR_SCALE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ingest.Scale = s
		}
	}
	if v := os.Getenv("FURNACEWEAR_CLUSTER_MODE"); v != "" {
		cfg.Analysis.ClusterMode = models.ClusterMode(v)
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
