package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/noimport/config"
)

func TestManifestRender(t *testing.T) {
	cfg := &config.Config{
		Sandbox: config.SandboxConfig{
			Application: "gaenoimport",
			Version:     1,
			Runtime:     "python",
			APIVersion:  1,
		},
	}

	data, err := NewManifest(cfg).Render()
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "application: gaenoimport\n")
	assert.Contains(t, text, "version: 1\n")
	assert.Contains(t, text, "runtime: python\n")
	assert.Contains(t, text, "api_version: 1\n")
	assert.Contains(t, text, "handlers:\n  - url: ")

	// The sandbox reads keys, not Go field names.
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"application", "version", "runtime", "api_version", "handlers"}, keys(raw))

	var decoded Manifest
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, []Handler{{URL: "/.*", Script: ProgramFile}}, decoded.Handlers)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
