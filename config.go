package recovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk YAML shape of the tunable knobs. Hooks and
// the logger stay programmatic.
type fileConfig struct {
	PrimarySafeMax        int         `yaml:"primary_safe_max"`
	PrimaryBorderlineMid  int         `yaml:"primary_borderline_mid"`
	PrimaryBorderlineMax  int         `yaml:"primary_borderline_max"`
	SecondaryExcludeAtMid int         `yaml:"secondary_exclude_at_mid"`
	SecondaryIncludeAtMax int         `yaml:"secondary_include_at_max"`
	Linkage               LinkageMode `yaml:"linkage"`
	BridgeMinPairs        int         `yaml:"bridge_min_pairs"`
	MinPhotoArea          int         `yaml:"min_photo_area"`
	SeparateCollections   []string    `yaml:"separate_collections"`
	Workers               int         `yaml:"workers"`
}

// LoadConfig reads a YAML config file into a Config. Missing fields keep
// their zero value and get defaults on first use; an unknown linkage
// mode is an error rather than a silent fallback.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	switch fc.Linkage {
	case "", LinkageSingle, LinkageComplete:
	default:
		return nil, fmt.Errorf("config %s: unknown linkage mode %q", path, fc.Linkage)
	}

	return &Config{
		PrimarySafeMax:        fc.PrimarySafeMax,
		PrimaryBorderlineMid:  fc.PrimaryBorderlineMid,
		PrimaryBorderlineMax:  fc.PrimaryBorderlineMax,
		SecondaryExcludeAtMid: fc.SecondaryExcludeAtMid,
		SecondaryIncludeAtMax: fc.SecondaryIncludeAtMax,
		Linkage:               fc.Linkage,
		BridgeMinPairs:        fc.BridgeMinPairs,
		MinPhotoArea:          fc.MinPhotoArea,
		SeparateCollections:   fc.SeparateCollections,
		Workers:               fc.Workers,
	}, nil
}
