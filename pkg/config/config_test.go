package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"furnacewear/internal/models"
)

// TestLoadConfigMissingFile verifies defaults are used when the file does not exist
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Analysis.WearThreshold != 20 || cfg.Analysis.MinimumAreaSize != 10 {
		t.Errorf("Unexpected analysis defaults %+v", cfg.Analysis)
	}
	if cfg.Analysis.ClusterMode != models.ClusterSeedAnchored {
		t.Errorf("Expected seed-anchored default, got %q", cfg.Analysis.ClusterMode)
	}
	if len(cfg.Materials) == 0 {
		t.Error("Expected default materials")
	}
}

// TestSaveAndLoadConfig verifies a saved configuration loads back unchanged
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Analysis.WearThreshold = 35
	cfg.Cache.TTL = 2 * time.Minute
	cfg.Materials = []models.Material{{Name: "zircon", Density: 3.4}}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	cfg.Analysis.RepairMaterial = "zircon"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Analysis.WearThreshold != 35 {
		t.Errorf("Expected wear threshold 35, got %v", loaded.Analysis.WearThreshold)
	}
	if loaded.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected TTL 2m, got %v", loaded.Cache.TTL)
	}
	if len(loaded.Materials) != 1 || loaded.Materials[0].Density != 3.4 {
		t.Errorf("Unexpected materials %+v", loaded.Materials)
	}
}

// TestLoadConfigYAML verifies a partial file overrides only what it names
func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9000"
cache:
  ttl: 30s
analysis:
  clusterMode: single-linkage
  distanceBetweenAreas: 1.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Address != ":9000" || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Unexpected server/cache %q %v", cfg.Server.Address, cfg.Cache.TTL)
	}
	p := cfg.AnalysisParams()
	if p.ClusterMode != models.ClusterSingleLinkage || p.DistanceBetweenAreas != 1.5 || p.WearThreshold != 20 {
		t.Errorf("Unexpected params %+v", p)
	}
}

// TestEnvOverrides verifies FURNACEWEAR_* variables win over the file
func TestEnvOverrides(t *testing.T) {
	t.Setenv("FURNACEWEAR_SERVER_ADDRESS", ":7000")
	t.Setenv("FURNACEWEAR_LOG_FORMAT", "json")
	t.Setenv("FURNACEWEAR_CACHE_ENABLED", "true")
	t.Setenv("FURNACEWEAR_CACHE_DB", "3")
	t.Setenv("FURNACEWEAR_SCALE", "1000")
	t.Setenv("FURNACEWEAR_METRICS_ADDRESS", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Address != ":7000" || !cfg.Logging.JSON || !cfg.Cache.Enabled || cfg.Cache.DB != 3 {
		t.Errorf("Overrides not applied: %+v %+v %+v", cfg.Server, cfg.Logging, cfg.Cache)
	}
	if cfg.Server.MetricsAddress != "" {
		t.Errorf("Expected metrics disabled, got %q", cfg.Server.MetricsAddress)
	}
	if cfg.ParseOptions().Scale != 1000 {
		t.Errorf("Expected scale 1000, got %v", cfg.ParseOptions().Scale)
	}
}

// TestValidate verifies invalid settings are reported together
func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ingest.ThicknessSource = "ultrasound"
	cfg.Analysis.MinimumAreaSize = 0
	cfg.Materials = nil
	cfg.Analysis.RepairMaterial = "x"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"ultrasound", "minimumAreaSize"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

// TestCreateDefaultConfigFile verifies the default file is written
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(data), "wearThreshold") {
		t.Errorf("Expected analysis section in %s", data)
	}
}
