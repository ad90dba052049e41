package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Compatibility gates custom DirectionStrategy registration behind a
// minimum declared version, so a deployment can refuse an older
// strategy plugin after a behavioral change to the strategy contract.
type Compatibility struct {
	min *semver.Version
}

// NewCompatibility parses minVersion (semantic-version string) into a
// reusable gate.
func NewCompatibility(minVersion string) (*Compatibility, error) {
	v, err := semver.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("config: parsing minimum strategy version %q: %w", minVersion, err)
	}

	return &Compatibility{min: v}, nil
}

// Check reports an error if strategyVersion is older than the configured minimum.
func (c *Compatibility) Check(strategyVersion string) error {
	v, err := semver.NewVersion(strategyVersion)
	if err != nil {
		return fmt.Errorf("config: parsing strategy version %q: %w", strategyVersion, err)
	}

	if v.LessThan(c.min) {
		return fmt.Errorf("config: strategy version %s is older than required minimum %s", v, c.min)
	}

	return nil
}
