package sandbox

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/isdmx/noimport/config"
)

// ManifestFile is the app descriptor's file name inside the workspace
const ManifestFile = "app.yaml"

// Manifest describes the sandbox application: one catch-all route to the
// probe program.
type Manifest struct {
	Application string    `yaml:"application"`
	Version     int       `yaml:"version"`
	Runtime     string    `yaml:"runtime"`
	APIVersion  int       `yaml:"api_version"`
	Handlers    []Handler `yaml:"handlers"`
}

// Handler maps a URL pattern to a script
type Handler struct {
	URL    string `yaml:"url"`
	Script string `yaml:"script"`
}

// NewManifest builds the manifest from the sandbox section
func NewManifest(cfg *config.Config) Manifest {
	return Manifest{
		Application: cfg.Sandbox.Application,
		Version:     cfg.Sandbox.Version,
		Runtime:     cfg.Sandbox.Runtime,
		APIVersion:  cfg.Sandbox.APIVersion,
		Handlers: []Handler{
			{URL: "/.*", Script: ProgramFile},
		},
	}
}

// Render encodes the manifest as YAML
func (m Manifest) Render() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
