package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMappingConfig(t *testing.T) {
	path := writeMapping(t, `
version: 1
default_status: EN_STOCK
sheets:
  Items:
    columns:
      Model: model
      Tag: asset_tag
      Serial: serial_number
    aliases:
      Tag: ["Asset Tag"]
`)

	cfg, err := loadMappingConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "EN_STOCK", cfg.DefaultStatus)
	require.Contains(t, cfg.Sheets, "Items")
	assert.Equal(t, "asset_tag", cfg.Sheets["Items"].Columns["Tag"])
}

func TestLoadMappingConfigDefaultsStatus(t *testing.T) {
	path := writeMapping(t, `
version: 1
sheets:
  Items:
    columns:
      Tag: asset_tag
`)

	cfg, err := loadMappingConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "EN_STOCK", cfg.DefaultStatus)
}

func TestLoadMappingConfigRejectsUnknownField(t *testing.T) {
	path := writeMapping(t, `
version: 1
sheets:
  Items:
    columns:
      Tag: barcode
`)

	_, err := loadMappingConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestLoadMappingConfigRejectsEmptySheets(t *testing.T) {
	path := writeMapping(t, "version: 1\n")
	_, err := loadMappingConfig(path)
	assert.Error(t, err)
}

func TestLoadMappingConfigMissingFile(t *testing.T) {
	_, err := loadMappingConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolveHeader(t *testing.T) {
	config := SheetConfig{
		Columns: map[string]string{
			"Tag":   "asset_tag",
			"Model": "model",
		},
		Aliases: map[string][]string{
			"Tag": {"Asset Tag", "Etiquette"},
		},
	}

	assert.Equal(t, "asset_tag", resolveHeader("Tag", config))
	assert.Equal(t, "asset_tag", resolveHeader("TAG", config))
	assert.Equal(t, "asset_tag", resolveHeader("asset tag", config))
	assert.Equal(t, "asset_tag", resolveHeader("ETIQUETTE", config))
	assert.Equal(t, "model", resolveHeader("Model", config))
	assert.Equal(t, "", resolveHeader("Serial", config))
}
