// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     tts
// Description: Voice catalog loaded from a YAML file
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package tts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Voice describes one synthesis voice
type Voice struct {
	Name       string `yaml:"name"`
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
}

// Catalog is the set of configured voices
type Catalog struct {
	Voices []Voice `yaml:"voices"`
}

// LoadCatalog reads a voice catalog from a YAML file
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse voice catalog: %w", err)
	}

	for i, v := range catalog.Voices {
		if v.Name == "" {
			return nil, fmt.Errorf("voice %d has no name", i)
		}
		if v.ProviderID == "" {
			return nil, fmt.Errorf("voice %q has no provider_id", v.Name)
		}
	}

	return &catalog, nil
}

// Lookup returns the voice with the given name
func (c *Catalog) Lookup(name string) (Voice, bool) {
	for _, v := range c.Voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// Names returns all voice names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Voices))
	for i, v := range c.Voices {
		names[i] = v.Name
	}
	return names
}
