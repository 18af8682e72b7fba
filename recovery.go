// Package recovery implements the classification and deduplication engine
// for a collection of recovered image files. Photos are judged one at a
// time by an ordered list of individual rules (reject / separate), the
// survivors are clustered by perceptual-hash similarity, and an ordered
// set of group rules decides which member of each cluster to keep. Path
// provenance from rejected duplicates is re-attached to a surviving
// member so no original location is ever lost.
//
// The engine consumes and produces plain record types; persistence lives
// behind the Store interface (see the store package for the sqlite
// implementation).
package recovery

import (
	"io"
	"log/slog"
	"os"
	"runtime"
)

// LinkageMode selects the clustering semantics used by the Grouper.
type LinkageMode string

const (
	// LinkageSingle groups by connected components: a transitive chain
	// of matching pairs is enough for membership.
	LinkageSingle LinkageMode = "single"

	// LinkageComplete requires every pair inside a cluster to match,
	// then joins clusters in a separate bridge-merge pass.
	LinkageComplete LinkageMode = "complete"
)

// Default same-scene thresholds, from visual sampling of pairwise
// distance distributions on the recovered collection.
const (
	DefaultPrimarySafeMax        = 10
	DefaultPrimaryBorderlineMid  = 12
	DefaultPrimaryBorderlineMax  = 14
	DefaultSecondaryExcludeAtMid = 22
	DefaultSecondaryIncludeAtMax = 17

	// DefaultBridgeMinPairs is the number of qualifying cross-cluster
	// pairs required before the bridge merge joins two complete-linkage
	// cores. Conservative; tune per collection.
	DefaultBridgeMinPairs = 50

	// DefaultMinPhotoArea is the pixel area below which an image is
	// rejected as an icon rather than a photo.
	DefaultMinPhotoArea = 5000
)

// Config holds tunable thresholds and injected hooks for the engine.
// Zero values mean "use defaults".
type Config struct {
	// Same-scene predicate thresholds (primary = pHash distance,
	// secondary = dHash distance).
	PrimarySafeMax        int // primary <= this: always same scene
	PrimaryBorderlineMid  int // primary <= this: same scene unless secondary >= SecondaryExcludeAtMid
	PrimaryBorderlineMax  int // primary <= this: same scene only if secondary <= SecondaryIncludeAtMax
	SecondaryExcludeAtMid int
	SecondaryIncludeAtMax int

	// Linkage selects single- or complete-linkage clustering.
	// Recorded in run metadata; the two modes produce different
	// cluster boundaries and are not interchangeable.
	Linkage LinkageMode

	// BridgeMinPairs is the bridge-merge acceptance threshold
	// (complete linkage only).
	BridgeMinPairs int

	// MinPhotoArea is the TINY_AREA rejection threshold in pixels.
	MinPhotoArea int

	// SeparateCollections are path substrings marking digitized
	// collections that need handling outside the main flow.
	SeparateCollections []string

	// Workers bounds the parallelism of the pairwise comparison.
	// Default: GOMAXPROCS.
	Workers int

	// SiblingExists reports whether a file exists next to a photo
	// (used by the web-asset rule). Default: os.Stat.
	SiblingExists func(path string) bool

	// OpenFile opens a source path for hashing. Default: os.Open.
	OpenFile func(path string) (io.ReadCloser, error)

	// Logger receives stage progress and invariant warnings.
	// Default: slog.Default().
	Logger *slog.Logger
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.PrimarySafeMax <= 0 {
		c.PrimarySafeMax = DefaultPrimarySafeMax
	}
	if c.PrimaryBorderlineMid <= 0 {
		c.PrimaryBorderlineMid = DefaultPrimaryBorderlineMid
	}
	if c.PrimaryBorderlineMax <= 0 {
		c.PrimaryBorderlineMax = DefaultPrimaryBorderlineMax
	}
	if c.SecondaryExcludeAtMid <= 0 {
		c.SecondaryExcludeAtMid = DefaultSecondaryExcludeAtMid
	}
	if c.SecondaryIncludeAtMax <= 0 {
		c.SecondaryIncludeAtMax = DefaultSecondaryIncludeAtMax
	}
	if c.Linkage == "" {
		c.Linkage = LinkageSingle
	}
	if c.BridgeMinPairs <= 0 {
		c.BridgeMinPairs = DefaultBridgeMinPairs
	}
	if c.MinPhotoArea <= 0 {
		c.MinPhotoArea = DefaultMinPhotoArea
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.SiblingExists == nil {
		c.SiblingExists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}
	if c.OpenFile == nil {
		c.OpenFile = func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
