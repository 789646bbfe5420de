package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona holds the conversational texture of the bot: the system
// rules, the preamble prepended to every completion, the filler
// answers used when the backend is down, and the display-name mapping
// applied to speaker labels. Loaded from a YAML file next to the main
// config.
type Persona struct {
	Rules    string `yaml:"rules"`
	Preamble string `yaml:"preamble"` // "{name}" expands to the sender's display name

	DummyAnswers []string          `yaml:"dummyAnswers"`
	NameMap      map[string]string `yaml:"nameMap,omitempty"`

	// VisionQuestion is the default question for images posted without
	// a caption.
	VisionQuestion string `yaml:"visionQuestion"`

	// ImageRefusal is sent when image generation fails.
	ImageRefusal string `yaml:"imageRefusal"`

	// ThinkingNotice and GiveUpNotice drive the slow-response
	// progress messages.
	ThinkingNotice string `yaml:"thinkingNotice,omitempty"`
	GiveUpNotice   string `yaml:"giveUpNotice,omitempty"`
}

// LoadPersona reads and validates a persona file. The dummy-answer
// pool must not be empty: the fallback path depends on it.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read persona file %s: %w", path, err)
	}

	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("cannot parse persona file %s: %w", path, err)
	}

	var errs []string
	if strings.TrimSpace(p.Rules) == "" {
		errs = append(errs, "rules must not be empty")
	}
	if len(p.DummyAnswers) == 0 {
		errs = append(errs, "dummyAnswers must list at least one entry")
	}
	for i, a := range p.DummyAnswers {
		if strings.TrimSpace(a) == "" {
			errs = append(errs, fmt.Sprintf("dummyAnswers[%d] is blank", i))
		}
	}
	if p.VisionQuestion == "" {
		p.VisionQuestion = "Что на картинке?"
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("persona validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return &p, nil
}

// FormatPreamble expands the {name} placeholder with the sender's
// (already remapped) display name.
func (p *Persona) FormatPreamble(name string) string {
	return strings.ReplaceAll(p.Preamble, "{name}", name)
}

// MapName applies the display-name remapping to a speaker label.
// Content is never remapped, only authorship.
func (p *Persona) MapName(name string) string {
	for from, to := range p.NameMap {
		name = strings.ReplaceAll(name, from, to)
	}
	return name
}
