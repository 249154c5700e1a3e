package app

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/maskbot-go/config"
	"github.com/soocke/maskbot-go/domain/annotate"
	"github.com/soocke/maskbot-go/domain/oracle"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png"} {
		require.NoError(t, imaging.Save(imaging.New(6, 4, image.White), filepath.Join(dir, name)))
	}
	out := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ImageDir = dir
	cfg.MaskDir = filepath.Join(out, "masks")
	cfg.MetadataPath = filepath.Join(out, "metadata.csv")
	cfg.MetadataSQLitePath = filepath.Join(out, "metadata.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildContainerWiresSession(t *testing.T) {
	cfg := testConfig(t)
	c, err := BuildContainer(context.Background(), cfg, slog.New(slog.DiscardHandler), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 2, c.Machine.Total())
	assert.Equal(t, "a.png", c.Images.Name(0), "images sorted by name")
	assert.IsType(t, &oracle.RegionGrow{}, c.Oracle)
	assert.Equal(t, annotate.StateIdle, c.Machine.State())
	assert.Same(t, c.Machine, c.Runner.Machine())
}

func TestBuildContainerRejectsEmptyDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ImageDir = t.TempDir()
	_, err := BuildContainer(context.Background(), cfg, slog.New(slog.DiscardHandler), nil)
	assert.ErrorContains(t, err, "no images")
}

func TestNewOracle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Oracle.Kind = config.OracleRemote
	o, closer, err := NewOracle(cfg, "s1", nil)
	require.NoError(t, err)
	assert.IsType(t, &oracle.Remote{}, o)
	require.NotNil(t, closer)
	assert.NoError(t, closer())

	cfg.Oracle.Kind = "magic"
	_, _, err = NewOracle(cfg, "s1", nil)
	assert.Error(t, err)
}

func TestOverlayColor(t *testing.T) {
	c, err := OverlayColor("#00ff00")
	require.NoError(t, err)
	r, g, b, _ := c.RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0}, []uint32{r, g, b})

	c, err = OverlayColor("green")
	assert.Error(t, err)
	r, _, _, _ = c.RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
