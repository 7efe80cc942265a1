// Package brand loads the brand kit that seeds campaign generation.
package brand

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Voice captures the tone guidance copied into stage prompts.
type Voice struct {
	Tone  []string `yaml:"tone"`
	Avoid []string `yaml:"avoid"`
}

// Kit is the brand configuration loaded from a brand.yaml file.
type Kit struct {
	Name           string   `yaml:"name"`
	Tagline        string   `yaml:"tagline"`
	Industry       string   `yaml:"industry"`
	Competitors    []string `yaml:"competitors"`
	TargetAudience string   `yaml:"target_audience"`
	Voice          Voice    `yaml:"voice"`
	Colors         []string `yaml:"colors"`
	Fonts          []string `yaml:"fonts"`
}

func (k Kit) Validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return errors.New("brand kit requires a name")
	}
	return nil
}

func Load(path string) (Kit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Kit{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Kit, error) {
	var k Kit
	if err := yaml.Unmarshal(b, &k); err != nil {
		return Kit{}, fmt.Errorf("parse brand kit: %w", err)
	}
	if err := k.Validate(); err != nil {
		return Kit{}, err
	}
	return k, nil
}

// PromptBlock renders the kit as a compact block for stage prompts.
func (k Kit) PromptBlock() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Brand: %s\n", k.Name)
	if k.Tagline != "" {
		fmt.Fprintf(&sb, "Tagline: %s\n", k.Tagline)
	}
	if k.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", k.Industry)
	}
	if len(k.Competitors) > 0 {
		fmt.Fprintf(&sb, "Competitors: %s\n", strings.Join(k.Competitors, ", "))
	}
	if k.TargetAudience != "" {
		fmt.Fprintf(&sb, "Target audience: %s\n", k.TargetAudience)
	}
	if len(k.Voice.Tone) > 0 {
		fmt.Fprintf(&sb, "Voice tone: %s\n", strings.Join(k.Voice.Tone, ", "))
	}
	if len(k.Voice.Avoid) > 0 {
		fmt.Fprintf(&sb, "Voice avoid: %s\n", strings.Join(k.Voice.Avoid, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
