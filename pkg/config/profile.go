// Package config provides configuration file loading for the tryon CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the structure of a tryon.yaml profile. Every field is optional;
// command-line flags take precedence over profile values.
type Profile struct {
	ServerURL      string        `yaml:"server_url"`
	Catalog        string        `yaml:"catalog"`
	CacheDir       string        `yaml:"cache_dir"`
	Out            string        `yaml:"out"`
	SubmitTimeout  time.Duration `yaml:"submit_timeout"`
	PreprocessWait time.Duration `yaml:"preprocess_wait"`
}

// LoadProfile loads a CLI profile from a YAML file.
func LoadProfile(filepath string) (Profile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return profile, nil
}

// Merge fills empty profile fields from fallback. Used to layer a profile over
// built-in defaults.
func (p Profile) Merge(fallback Profile) Profile {
	if p.ServerURL == "" {
		p.ServerURL = fallback.ServerURL
	}

	if p.Catalog == "" {
		p.Catalog = fallback.Catalog
	}

	if p.CacheDir == "" {
		p.CacheDir = fallback.CacheDir
	}

	if p.Out == "" {
		p.Out = fallback.Out
	}

	if p.SubmitTimeout == 0 {
		p.SubmitTimeout = fallback.SubmitTimeout
	}

	if p.PreprocessWait == 0 {
		p.PreprocessWait = fallback.PreprocessWait
	}

	return p
}
