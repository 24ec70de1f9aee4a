// Package boxconfig loads host-level configuration for a climbing box
// controller from an HCL file: which boxes exist, podium size, and default
// timer presets.
package boxconfig

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete host configuration for a boxctl instance.
type Config struct {
	Event   EventSettings   `hcl:"event,block"`
	Ranking RankingSettings `hcl:"ranking,block"`
	Boxes   []BoxSettings   `hcl:"box,block"`
}

// EventSettings names the competition this controller serves.
type EventSettings struct {
	Name      string `hcl:"name"`
	RoundName string `hcl:"round_name,optional"`
	LogLevel  string `hcl:"log_level,optional"`
}

// RankingSettings controls the finals ranking engine.
type RankingSettings struct {
	PodiumPlaces int `hcl:"podium_places,optional"`
}

// BoxSettings configures a single numbered box.
type BoxSettings struct {
	ID              int    `hcl:"id,label"`
	Category        string `hcl:"category,optional"`
	DefaultPreset   string `hcl:"default_timer_preset,optional"`
	RequireSession  bool   `hcl:"require_session,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Event: EventSettings{
			Name:      "Untitled Event",
			RoundName: "Final",
			LogLevel:  "info",
		},
		Ranking: RankingSettings{
			PodiumPlaces: 3,
		},
		Boxes: []BoxSettings{
			{ID: 1, DefaultPreset: "06:00", RequireSession: true},
		},
	}
}

// Load reads and decodes an HCL configuration file, filling in defaults for
// the event name, round name, log level and podium places when the file
// leaves them zero-valued, and for the box list when it has no box blocks.
// Settings inside a box block are not defaulted. A missing file is not an
// error: Default() is returned instead.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl: %s", diags.Error())
	}

	defaults := Default()
	if cfg.Event.Name == "" {
		cfg.Event.Name = defaults.Event.Name
	}
	if cfg.Event.RoundName == "" {
		cfg.Event.RoundName = defaults.Event.RoundName
	}
	if cfg.Event.LogLevel == "" {
		cfg.Event.LogLevel = defaults.Event.LogLevel
	}
	if cfg.Ranking.PodiumPlaces == 0 {
		cfg.Ranking.PodiumPlaces = defaults.Ranking.PodiumPlaces
	}
	if len(cfg.Boxes) == 0 {
		cfg.Boxes = defaults.Boxes
	}

	return &cfg, nil
}

// Validate checks the decoded configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Event.Name == "" {
		return fmt.Errorf("event name is required")
	}
	if c.Ranking.PodiumPlaces < 1 {
		return fmt.Errorf("ranking.podium_places must be positive")
	}
	seen := map[int]bool{}
	for _, box := range c.Boxes {
		if box.ID < -1 || box.ID > 9999 {
			return fmt.Errorf("box id %d out of range", box.ID)
		}
		if seen[box.ID] {
			return fmt.Errorf("duplicate box id %d", box.ID)
		}
		seen[box.ID] = true
	}
	return nil
}
