package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.DisplayWidth)
	assert.Equal(t, 600, cfg.DisplayHeight)
	assert.Equal(t, 3, cfg.PNGCompression)
	assert.Equal(t, OracleRegionGrow, cfg.Oracle.Kind)
}

func TestValidateRepairs(t *testing.T) {
	cfg := &Config{ImageDir: "in", MaskExt: ".PNG", PNGCompression: 12, RegionGrow: RegionGrowConfig{Threshold: 3, MaxPixels: -1}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "png", cfg.MaskExt)
	assert.Equal(t, 3, cfg.PNGCompression)
	assert.Equal(t, "masks", cfg.MaskDir)
	assert.Equal(t, "metadata.csv", cfg.MetadataPath)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Extensions)
	assert.Equal(t, 0.12, cfg.RegionGrow.Threshold)
	assert.Zero(t, cfg.RegionGrow.MaxPixels)
	assert.Equal(t, 30.0, cfg.Oracle.TimeoutSeconds)
}

func TestValidateRejects(t *testing.T) {
	assert.Error(t, (&Config{}).Validate(), "no image dir")

	cfg := DefaultConfig()
	cfg.Oracle.Kind = "magic"
	assert.ErrorContains(t, cfg.Validate(), "magic")

	cfg = DefaultConfig()
	cfg.Oracle.Kind = "REMOTE"
	cfg.Oracle.URL = ""
	assert.ErrorContains(t, cfg.Validate(), "oracle.url")

	for _, ext := range []string{"jpg", ".jpeg", "tif"} {
		cfg = DefaultConfig()
		cfg.MaskExt = ext
		assert.ErrorContains(t, cfg.Validate(), "mask_ext", ext)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := DefaultConfig()
	cfg.ImageDir = "/data/cats"
	cfg.Oracle = OracleConfig{Kind: OracleRemote, URL: "ws://gpu:9000/sam", TimeoutSeconds: 5}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MASKBOT_IMAGE_DIR":              "/imgs",
		"MASKBOT_EXTENSIONS":             ".jpg, .jpeg ,",
		"MASKBOT_DISPLAY_WIDTH":          "1024",
		"MASKBOT_ORACLE_KIND":            "remote",
		"MASKBOT_ORACLE_TIMEOUT_SECONDS": "2.5",
		"MASKBOT_DEBUG":                  "true",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "/imgs", cfg.ImageDir)
	assert.Equal(t, []string{".jpg", ".jpeg"}, cfg.Extensions)
	assert.Equal(t, 1024, cfg.DisplayWidth)
	assert.Equal(t, OracleRemote, cfg.Oracle.Kind)
	assert.Equal(t, 2.5, cfg.Oracle.TimeoutSeconds)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 600, cfg.DisplayHeight, "untouched")
}

func TestApplyEnvReportsBadNumbers(t *testing.T) {
	env := map[string]string{"MASKBOT_DISPLAY_WIDTH": "wide", "MASKBOT_DISPLAY_HEIGHT": "tall"}
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.ErrorContains(t, err, "MASKBOT_DISPLAY_WIDTH")
	assert.Equal(t, 800, cfg.DisplayWidth)
	assert.Equal(t, 600, cfg.DisplayHeight)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MASKBOT_TEST_ONLY_KEY=from-file\n"), 0o644))
	t.Setenv("MASKBOT_TEST_ONLY_KEY", "preset")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "preset", os.Getenv("MASKBOT_TEST_ONLY_KEY"), "existing variables win")
}
