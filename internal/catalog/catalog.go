// Package catalog loads the fixed list of satellites the refresher tracks.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/star/passwatch/internal/tle"
)

//go:embed default.yaml
var defaultYAML []byte

// Entry registers one satellite.
type Entry struct {
	Name      string `yaml:"name"`
	NoradID   string `yaml:"norad_id"`
	ManualTLE string `yaml:"manual_tle"`
}

// Key identifies the satellite in snapshots: the catalog identifier when
// present, otherwise the name.
func (e Entry) Key() string {
	if e.NoradID != "" {
		return e.NoradID
	}
	return e.Name
}

// HasManual reports whether a manual element set is configured.
func (e Entry) HasManual() bool {
	return strings.TrimSpace(e.ManualTLE) != ""
}

// Manual returns the configured manual element set. Operator-supplied lines
// often lose their trailing columns, so each line is right-padded with
// spaces to tle.MinLineLength before the usual line checks.
func (e Entry) Manual() (tle.ElementSet, error) {
	lines := tle.Lines(e.ManualTLE)
	if len(lines) < 2 {
		return tle.ElementSet{}, fmt.Errorf("%w: manual element set for %s needs two lines, has %d", tle.ErrInvalidElementSet, e.Name, len(lines))
	}
	set := tle.ElementSet{Line1: padLine(lines[0]), Line2: padLine(lines[1])}
	if err := set.Validate(); err != nil {
		return tle.ElementSet{}, fmt.Errorf("manual element set for %s: %w", e.Name, err)
	}
	return set, nil
}

func padLine(line string) string {
	if n := tle.MinLineLength - len(line); n > 0 {
		return line + strings.Repeat(" ", n)
	}
	return line
}

// Catalog is the ordered satellite list.
type Catalog struct {
	Satellites []Entry `yaml:"satellites"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. An empty path selects the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	for i := range c.Satellites {
		c.Satellites[i].Name = strings.TrimSpace(c.Satellites[i].Name)
		c.Satellites[i].NoradID = strings.TrimSpace(c.Satellites[i].NoradID)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate requires at least one satellite, non-empty names, and unique keys
// so that each satellite appears at most once in a snapshot.
func (c *Catalog) Validate() error {
	if len(c.Satellites) == 0 {
		return errors.New("catalog has no satellites")
	}
	keys := make(map[string]string, len(c.Satellites))
	for i, e := range c.Satellites {
		if e.Name == "" {
			return fmt.Errorf("catalog entry %d has no name", i)
		}
		if other, ok := keys[e.Key()]; ok {
			return fmt.Errorf("catalog entries %q and %q share key %q", other, e.Name, e.Key())
		}
		keys[e.Key()] = e.Name
	}
	return nil
}
