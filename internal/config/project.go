package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProfileFileName is the generation profile looked up in the working directory
const ProfileFileName = ".autoqa.yaml"

// ProfileConfig represents a .autoqa.yaml file
type ProfileConfig struct {
	Version string `yaml:"version"`

	// Natural language the generated suite is written in
	Language string `yaml:"language,omitempty"`

	// Generation preferences
	Generation GenerationConfig `yaml:"generation"`

	// Provider defaults for this profile
	Provider ProviderConfig `yaml:"provider,omitempty"`
}

// GenerationConfig holds test generation preferences
type GenerationConfig struct {
	// Ask for at least one boundary case
	EdgeCases bool `yaml:"edge_cases"`

	// Ask for at least one error handling case
	ErrorPaths bool `yaml:"error_paths"`
}

// ProviderConfig holds provider preferences
type ProviderConfig struct {
	// hosted-api, local-custom, on-device
	Kind string `yaml:"kind,omitempty"`

	// Model override
	Model string `yaml:"model,omitempty"`

	// Endpoint override
	Endpoint string `yaml:"endpoint,omitempty"`
}

// DefaultProfileConfig returns sensible defaults
func DefaultProfileConfig() *ProfileConfig {
	return &ProfileConfig{
		Version:  "1.0",
		Language: "中文",
		Generation: GenerationConfig{
			EdgeCases:  true,
			ErrorPaths: true,
		},
	}
}

// LoadProfileConfig loads a .autoqa.yaml from the given directory
func LoadProfileConfig(dir string) (*ProfileConfig, error) {
	configPath := filepath.Join(dir, ProfileFileName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .autoqa.yml
		configPath = filepath.Join(dir, ".autoqa.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProfileConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProfileConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveProfileConfig saves the config to .autoqa.yaml
func SaveProfileConfig(dir string, cfg *ProfileConfig) error {
	configPath := filepath.Join(dir, ProfileFileName)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProfileConfig) Merge(other *ProfileConfig) {
	if other == nil {
		return
	}

	if other.Language != "" {
		c.Language = other.Language
	}

	if other.Provider.Kind != "" {
		c.Provider.Kind = other.Provider.Kind
	}

	if other.Provider.Model != "" {
		c.Provider.Model = other.Provider.Model
	}

	if other.Provider.Endpoint != "" {
		c.Provider.Endpoint = other.Provider.Endpoint
	}
}
