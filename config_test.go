package recovery

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recovery.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
primary_safe_max: 8
primary_borderline_mid: 11
primary_borderline_max: 13
secondary_exclude_at_mid: 20
secondary_include_at_max: 15
linkage: complete
bridge_min_pairs: 30
min_photo_area: 10000
separate_collections:
  - scanned_album/
  - slides 1974/
workers: 4
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PrimarySafeMax != 8 || cfg.PrimaryBorderlineMid != 11 || cfg.PrimaryBorderlineMax != 13 {
		t.Errorf("primary thresholds = %d/%d/%d, want 8/11/13",
			cfg.PrimarySafeMax, cfg.PrimaryBorderlineMid, cfg.PrimaryBorderlineMax)
	}
	if cfg.SecondaryExcludeAtMid != 20 || cfg.SecondaryIncludeAtMax != 15 {
		t.Errorf("secondary thresholds = %d/%d, want 20/15",
			cfg.SecondaryExcludeAtMid, cfg.SecondaryIncludeAtMax)
	}
	if cfg.Linkage != LinkageComplete {
		t.Errorf("linkage = %q, want complete", cfg.Linkage)
	}
	if cfg.BridgeMinPairs != 30 || cfg.MinPhotoArea != 10000 || cfg.Workers != 4 {
		t.Errorf("bridge/area/workers = %d/%d/%d, want 30/10000/4",
			cfg.BridgeMinPairs, cfg.MinPhotoArea, cfg.Workers)
	}
	if len(cfg.SeparateCollections) != 2 || cfg.SeparateCollections[0] != "scanned_album/" {
		t.Errorf("separate_collections = %v", cfg.SeparateCollections)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, "linkage: single\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.defaults()

	if cfg.PrimarySafeMax != DefaultPrimarySafeMax ||
		cfg.PrimaryBorderlineMid != DefaultPrimaryBorderlineMid ||
		cfg.PrimaryBorderlineMax != DefaultPrimaryBorderlineMax {
		t.Errorf("primary thresholds = %d/%d/%d, want defaults",
			cfg.PrimarySafeMax, cfg.PrimaryBorderlineMid, cfg.PrimaryBorderlineMax)
	}
	if cfg.BridgeMinPairs != DefaultBridgeMinPairs || cfg.MinPhotoArea != DefaultMinPhotoArea {
		t.Errorf("bridge/area = %d/%d, want defaults", cfg.BridgeMinPairs, cfg.MinPhotoArea)
	}
	if cfg.SiblingExists == nil || cfg.OpenFile == nil || cfg.Logger == nil {
		t.Error("hooks not defaulted")
	}
}

func TestLoadConfigUnknownLinkage(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(writeConfig(t, "linkage: average\n")); err == nil {
		t.Error("LoadConfig() accepted an unknown linkage mode")
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() succeeded on a missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "linkage: [unclosed")); err == nil {
		t.Error("LoadConfig() accepted invalid YAML")
	}
}
