// Command runnable-host runs Runnable guests described by a YAML configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

var flags = []cli.Flag{
	&cli.PathFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "load host configuration from `path`",
		Value:   "runnable-host.yaml",
		EnvVars: []string{"RUNNABLE_CONFIG"},
	},
	// Logging
	&cli.StringFlag{
		Name:    "loglvl",
		Usage:   "override the configured logging `level` (debug, info, warn, error)",
		EnvVars: []string{"RUNNABLE_LOGLVL"},
	},
	&cli.StringFlag{
		Name:    "logfmt",
		Aliases: []string{"f"},
		Usage:   "override the configured log `format` (console, json)",
		EnvVars: []string{"RUNNABLE_LOGFMT"},
	},
}

var commands = []*cli.Command{
	runCommand(),
	validateCommand(),
	schemaCommand(),
}

func main() {
	run(newApp())
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "runnable-host",
		Usage:                "run sandboxed Runnable guests on wazero",
		UsageText:            "runnable-host [global options] command [command options] [arguments...]",
		Version:              Version,
		EnableBashCompletion: true,
		Flags:                flags,
		Commands:             commands,
	}
}

func run(app *cli.App) {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
