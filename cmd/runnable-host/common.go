package main

import (
	"github.com/reglet-dev/runnable-sdk/application/config"
	"github.com/reglet-dev/runnable-sdk/internal/hostapp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// loadConfig loads the file named by --config and applies the logging overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.NewLoader().LoadFile(c.Path("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("loglvl"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if format := c.String("logfmt"); format != "" {
		cfg.Log.Format = format
	}
	return cfg, nil
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := hostapp.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
