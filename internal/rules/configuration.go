package rules

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
	"time"
)

// Configuration holds the rules of all control domains.
type Configuration struct {
	Domains []DomainConfiguration `yaml:"domains"`
}

// DomainConfiguration configures one control domain (e.g. "climate"): the device groups it drives, its global
// thresholds and its rules, in priority order.
type DomainConfiguration struct {
	Name           string        `yaml:"name"`
	DeviceGroups   []string      `yaml:"deviceGroups"`
	DefaultRunTime time.Duration `yaml:"defaultRunTime"`
	Thresholds     Thresholds    `yaml:"thresholds"`
	Rules          []Rule        `yaml:"rules"`
}

// Load decodes a rules configuration. Malformed rules are not reported here: they are flagged when the domain's
// Store is created.
func Load(r io.Reader) (Configuration, error) {
	var c Configuration
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return c, fmt.Errorf("decode: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Domains))
	for _, d := range c.Domains {
		if d.Name == "" {
			return c, errors.New("domain without a name")
		}
		if _, ok := seen[d.Name]; ok {
			return c, fmt.Errorf("duplicate domain %q", d.Name)
		}
		if d.DefaultRunTime < 0 {
			return c, fmt.Errorf("domain %q: defaultRunTime must not be negative", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return c, nil
}

// NewStore returns a Store holding the domain's rules. Malformed rules are kept, but flagged.
func (d DomainConfiguration) NewStore() (*Store, []error) {
	return NewStore(d.DeviceGroups, d.Thresholds, d.Rules...)
}
