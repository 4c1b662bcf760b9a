package main

import (
	"fmt"

	"github.com/reglet-dev/runnable-sdk/internal/hostapp"
	"github.com/urfave/cli/v2"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check the configuration file and, optionally, every guest binary it names",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "compile",
				Usage: "compile each guest and check its exports",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			if c.Bool("compile") {
				if err := hostapp.Check(c.Context, cfg, logger); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(c.App.Writer, "ok: %d runnable(s)\n", len(cfg.Runnables))
			return err
		},
	}
}
