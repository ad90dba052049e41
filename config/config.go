// Package config provides file-backed, hot-reloadable settings for
// suballocator construction: default block sizes, tracker thresholds,
// and the minimum direction-strategy version a custom implementation
// must declare to be accepted.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds the tunables a deployment typically wants to change
// without a rebuild.
type Settings struct {
	DefaultBlockElems int     `yaml:"defaultBlockElems"`
	MinFillPct        float64 `yaml:"minFillPct"`
	BucketElems       int     `yaml:"bucketElems"`
	PinBuffers        bool    `yaml:"pinBuffers"`

	// MinStrategyVersion gates custom DirectionStrategy registration;
	// see Compatibility.
	MinStrategyVersion string `yaml:"minStrategyVersion"`
}

// Option mutates Settings; functional-options style, matching the
// suballoc.Option pattern used for OpenConfig.
type Option func(*Settings)

// WithDefaultBlockElems sets the default allocation quantum.
func WithDefaultBlockElems(n int) Option {
	return func(s *Settings) { s.DefaultBlockElems = n }
}

// WithMinFillPct sets the UpdateWindowTracker combinability threshold.
func WithMinFillPct(pct float64) Option {
	return func(s *Settings) { s.MinFillPct = pct }
}

// WithBucketElems sets the FragmentationTracker bucket width.
func WithBucketElems(n int) Option {
	return func(s *Settings) { s.BucketElems = n }
}

// WithPinBuffers toggles whether internally-allocated buffers request
// page pinning by default.
func WithPinBuffers(enabled bool) Option {
	return func(s *Settings) { s.PinBuffers = enabled }
}

// WithMinStrategyVersion sets the minimum version a custom
// DirectionStrategy must declare.
func WithMinStrategyVersion(v string) Option {
	return func(s *Settings) { s.MinStrategyVersion = v }
}

// New returns Settings seeded with defaults, then overridden by opts.
func New(opts ...Option) *Settings {
	s := &Settings{
		DefaultBlockElems:  1,
		MinFillPct:         0.5,
		BucketElems:        64,
		MinStrategyVersion: "1.0.0",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load reads Settings from a YAML file, starting from defaults so an
// incomplete file only overrides what it specifies.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	s := New()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return s, nil
}
