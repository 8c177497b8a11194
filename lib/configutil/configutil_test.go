package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl     string            `json:"base_url" yaml:"base_url"`
	Concurrency int               `json:"concurrency" yaml:"concurrency"`
	Polite      bool              `json:"polite" yaml:"polite"`
	Listings    map[string]string `json:"listings" yaml:"listings"`
}

func TestSplitExt(t *testing.T) {
	testCases := []struct {
		name   string
		prefix string
		ext    string
	}{
		{name: "wikimon.json5", prefix: "wikimon", ext: "json5"},
		{name: "wikimon.local.yaml", prefix: "wikimon.local", ext: "yaml"},
		{name: "wikimon", prefix: "wikimon", ext: ""},
	}
	for _, test := range testCases {
		prefix, ext := splitExt(test.name)
		require.Equal(t, test.prefix, prefix)
		require.Equal(t, test.ext, ext)
	}
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "wikimon.json5"), []byte(`{
		// comments are allowed
		base_url: "https://wikimon.net",
		concurrency: 2,
		listings: {child: "a"},
	}`), 0644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "wikimon.local.json5"), []byte(`{
		concurrency: 8,
	}`), 0644))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "wikimon.json5"))
	require.Nil(t, err)

	diff := cmp.Diff(testConfig{
		BaseUrl:     "https://wikimon.net",
		Concurrency: 8,
		Listings:    map[string]string{"child": "a"},
	}, config)
	require.Empty(t, diff)
}

func TestReadConfigYaml(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "wikimon.yaml"), []byte(
		"base_url: https://example.org\npolite: true\n",
	), 0644))

	config, err := ReadConfig[testConfig](filepath.Join(dir, "wikimon.yaml"))
	require.Nil(t, err)
	require.Equal(t, "https://example.org", config.BaseUrl)
	require.True(t, config.Polite)
}

func TestReadConfigOrDefault(t *testing.T) {
	dir := t.TempDir()
	defaults := testConfig{BaseUrl: "https://wikimon.net", Concurrency: 4}

	config, err := ReadConfigOrDefault(filepath.Join(dir, "missing.json5"), defaults)
	require.Nil(t, err)
	require.Equal(t, defaults, config)

	_, err = ReadConfig[testConfig](filepath.Join(dir, "missing.json5"))
	require.True(t, os.IsNotExist(err))

	require.Nil(t, os.WriteFile(filepath.Join(dir, "partial.json5"), []byte(`{concurrency: 1}`), 0644))
	config, err = ReadConfigOrDefault(filepath.Join(dir, "partial.json5"), defaults)
	require.Nil(t, err)
	require.Equal(t, 1, config.Concurrency)
	require.Equal(t, "https://wikimon.net", config.BaseUrl)
}
