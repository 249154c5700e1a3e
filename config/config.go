package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Oracle kinds.
const (
	OracleRemote     = "remote"
	OracleRegionGrow = "regiongrow"
)

// OracleConfig selects and tunes the segmentation backend.
type OracleConfig struct {
	Kind           string  `json:"kind"`
	URL            string  `json:"url"`
	Token          string  `json:"token"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// RegionGrowConfig tunes the local colour-similarity oracle.
type RegionGrowConfig struct {
	Threshold float64 `json:"threshold"`
	MaxPixels int     `json:"max_pixels"`
}

// Config holds runtime configuration for a labelling session.
// Fields may be loaded from a JSON file, then overridden by MASKBOT_* environment
// variables and finally by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Inputs and outputs
	ImageDir           string   `json:"image_dir"`
	MaskDir            string   `json:"mask_dir"`
	MetadataPath       string   `json:"metadata_path"`
	MetadataSQLitePath string   `json:"metadata_sqlite_path"`
	MaskExt            string   `json:"mask_ext"`
	Extensions         []string `json:"extensions"`
	PNGCompression     int      `json:"png_compression"`

	// Display
	DisplayWidth  int    `json:"display_width"`
	DisplayHeight int    `json:"display_height"`
	OverlayColor  string `json:"overlay_color"`

	Oracle     OracleConfig     `json:"oracle"`
	RegionGrow RegionGrowConfig `json:"regiongrow"`

	ImageCacheSize int    `json:"image_cache_size"`
	LogFile        string `json:"log_file"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:          false,
		ImageDir:       "images",
		MaskDir:        "masks",
		MetadataPath:   "metadata.csv",
		MaskExt:        "png",
		Extensions:     []string{".jpg", ".png"},
		PNGCompression: 3,
		DisplayWidth:   800,
		DisplayHeight:  600,
		OverlayColor:   "#ff0000",
		Oracle: OracleConfig{
			Kind:           OracleRegionGrow,
			URL:            "ws://127.0.0.1:8765/segment",
			TimeoutSeconds: 30,
		},
		RegionGrow: RegionGrowConfig{
			Threshold: 0.12,
			MaxPixels: 0,
		},
		ImageCacheSize: 4,
	}
}

// Validate clamps/normalizes values to safe ranges. Only settings that cannot
// be repaired are reported as errors.
func (c *Config) Validate() error {
	if c.ImageDir == "" {
		return errors.New("image_dir is required")
	}
	if c.MaskDir == "" {
		c.MaskDir = "masks"
	}
	if c.MetadataPath == "" {
		c.MetadataPath = "metadata.csv"
	}
	c.MaskExt = strings.TrimPrefix(strings.ToLower(c.MaskExt), ".")
	if c.MaskExt == "" {
		c.MaskExt = "png"
	}
	// Masks are always encoded losslessly as PNG.
	if c.MaskExt != "png" {
		return errors.Errorf("mask_ext %q is not supported, masks are written as png", c.MaskExt)
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".jpg", ".png"}
	}
	if c.PNGCompression < 0 || c.PNGCompression > 9 {
		c.PNGCompression = 3
	}
	if c.DisplayWidth <= 0 {
		c.DisplayWidth = 800
	}
	if c.DisplayHeight <= 0 {
		c.DisplayHeight = 600
	}
	if c.OverlayColor == "" {
		c.OverlayColor = "#ff0000"
	}
	c.Oracle.Kind = strings.ToLower(c.Oracle.Kind)
	switch c.Oracle.Kind {
	case "":
		c.Oracle.Kind = OracleRegionGrow
	case OracleRegionGrow:
	case OracleRemote:
		if c.Oracle.URL == "" {
			return errors.New("oracle.url is required for the remote oracle")
		}
	default:
		return errors.Errorf("unknown oracle kind %q", c.Oracle.Kind)
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 30
	}
	if c.RegionGrow.Threshold <= 0 || c.RegionGrow.Threshold > 1 {
		c.RegionGrow.Threshold = 0.12
	}
	if c.RegionGrow.MaxPixels < 0 {
		c.RegionGrow.MaxPixels = 0
	}
	if c.ImageCacheSize < 0 {
		c.ImageCacheSize = 0
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "decode %s", path)
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MASKBOT_"

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overwriting variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}

// ApplyEnv overrides fields from MASKBOT_* variables returned by lookup
// (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			firstErr = keep(firstErr, errors.Wrapf(err, "%s%s", EnvPrefix, key))
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			firstErr = keep(firstErr, errors.Wrapf(err, "%s%s", EnvPrefix, key))
			return
		}
		*dst = f
	}

	str("IMAGE_DIR", &c.ImageDir)
	str("MASK_DIR", &c.MaskDir)
	str("METADATA_PATH", &c.MetadataPath)
	str("METADATA_SQLITE_PATH", &c.MetadataSQLitePath)
	str("MASK_EXT", &c.MaskExt)
	str("OVERLAY_COLOR", &c.OverlayColor)
	str("LOG_FILE", &c.LogFile)
	str("ORACLE_KIND", &c.Oracle.Kind)
	str("ORACLE_URL", &c.Oracle.URL)
	str("ORACLE_TOKEN", &c.Oracle.Token)
	num("PNG_COMPRESSION", &c.PNGCompression)
	num("DISPLAY_WIDTH", &c.DisplayWidth)
	num("DISPLAY_HEIGHT", &c.DisplayHeight)
	num("IMAGE_CACHE_SIZE", &c.ImageCacheSize)
	num("REGIONGROW_MAX_PIXELS", &c.RegionGrow.MaxPixels)
	float("ORACLE_TIMEOUT_SECONDS", &c.Oracle.TimeoutSeconds)
	float("REGIONGROW_THRESHOLD", &c.RegionGrow.Threshold)
	if v, ok := lookup(EnvPrefix + "EXTENSIONS"); ok {
		c.Extensions = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "DEBUG"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			firstErr = keep(firstErr, errors.Wrapf(err, "%sDEBUG", EnvPrefix))
		} else {
			c.Debug = b
		}
	}
	return firstErr
}

func keep(cur, next error) error {
	if cur != nil {
		return cur
	}
	return next
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
