package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/soocke/maskbot-go/app"
	"github.com/soocke/maskbot-go/config"
	"github.com/soocke/maskbot-go/debug"
)

const (
	flagConfig      = "config"
	flagImageDir    = "image-dir"
	flagMaskDir     = "mask-dir"
	flagMetadata    = "metadata"
	flagSQLite      = "sqlite"
	flagOracle      = "oracle"
	flagOracleURL   = "oracle-url"
	flagOracleToken = "oracle-token"
	flagTimeout     = "oracle-timeout"
	flagWidth       = "width"
	flagHeight      = "height"
	flagLogFile     = "log-file"
	flagDebug       = "debug"
	flagSaveConfig  = "save-config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newCLI(run).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "maskbot:", err)
		os.Exit(1)
	}
}

func newCLI(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:  "maskbot",
		Usage: "click objects in a folder of images and save their segmentation masks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: flagImageDir, Aliases: []string{"i"}, Usage: "directory of source images"},
			&cli.StringFlag{Name: flagMaskDir, Aliases: []string{"o"}, Usage: "directory for mask files"},
			&cli.StringFlag{Name: flagMetadata, Usage: "metadata CSV `FILE`"},
			&cli.StringFlag{Name: flagSQLite, Usage: "also mirror metadata into this SQLite `FILE`"},
			&cli.StringFlag{Name: flagOracle, Usage: "segmentation backend: remote or regiongrow"},
			&cli.StringFlag{Name: flagOracleURL, Usage: "websocket URL of the remote segmentation service"},
			&cli.StringFlag{Name: flagOracleToken, Usage: "bearer token for the remote segmentation service"},
			&cli.DurationFlag{Name: flagTimeout, Usage: "per-call oracle timeout"},
			&cli.IntFlag{Name: flagWidth, Usage: "display surface width"},
			&cli.IntFlag{Name: flagHeight, Usage: "display surface height"},
			&cli.StringFlag{Name: flagLogFile, Usage: "also write logs to a rotated `FILE`"},
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging and runtime metrics"},
			&cli.StringFlag{Name: flagSaveConfig, Usage: "write the effective configuration to `FILE` and exit"},
		},
		Action: action,
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}
	if path := cCtx.String(flagSaveConfig); path != "" {
		return cfg.Save(path)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger, closeLog := NewLogger(level, cfg.LogFile)
	defer func() { _ = closeLog() }()

	application, err := app.NewApp(cCtx.Context, "Mask Bot", cfg, logger)
	if err != nil {
		return err
	}
	if cfg.Debug {
		debug.StartRuntimeLogger(cCtx.Context, 5*time.Second, logger, application.Container().Machine.Queue().Pending)
	}
	return application.Run()
}

// loadConfig layers the config file, .env and MASKBOT_* variables, then flags.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cCtx.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	applyFlags(cCtx, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cCtx *cli.Context, cfg *config.Config) {
	str := func(name string, dst *string) {
		if cCtx.IsSet(name) {
			*dst = cCtx.String(name)
		}
	}
	str(flagImageDir, &cfg.ImageDir)
	str(flagMaskDir, &cfg.MaskDir)
	str(flagMetadata, &cfg.MetadataPath)
	str(flagSQLite, &cfg.MetadataSQLitePath)
	str(flagOracle, &cfg.Oracle.Kind)
	str(flagOracleURL, &cfg.Oracle.URL)
	str(flagOracleToken, &cfg.Oracle.Token)
	str(flagLogFile, &cfg.LogFile)
	if cCtx.IsSet(flagTimeout) {
		cfg.Oracle.TimeoutSeconds = cCtx.Duration(flagTimeout).Seconds()
	}
	if cCtx.IsSet(flagWidth) {
		cfg.DisplayWidth = cCtx.Int(flagWidth)
	}
	if cCtx.IsSet(flagHeight) {
		cfg.DisplayHeight = cCtx.Int(flagHeight)
	}
	if cCtx.IsSet(flagDebug) {
		cfg.Debug = cCtx.Bool(flagDebug)
	}
}
