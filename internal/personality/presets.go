package personality

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Preset is a ready-made character the onboarding UI offers as a starting
// point. Saving a personality from a preset still goes through Manager.Save.
type Preset struct {
	Profile string  `yaml:"profile" json:"profile"`
	Flavors Flavors `yaml:"flavors" json:"flavors"`
	Prompt  string  `yaml:"prompt" json:"prompt"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// Presets returns the embedded preset catalog.
func Presets() ([]Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	return f.Presets, nil
}

// PresetByProfile finds a preset by its profile label, case-insensitively.
func PresetByProfile(profile string) (Preset, bool) {
	presets, err := Presets()
	if err != nil {
		return Preset{}, false
	}
	for _, p := range presets {
		if strings.EqualFold(p.Profile, profile) {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply turns a preset into a Personality with the given assistant name.
func (p Preset) Apply(name string) Personality {
	return Personality{
		Name:    name,
		Flavors: p.Flavors,
		Prompt:  p.Prompt,
		Profile: p.Profile,
	}
}
