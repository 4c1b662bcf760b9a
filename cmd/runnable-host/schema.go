package main

import (
	"github.com/reglet-dev/runnable-sdk/application/config"
	"github.com/urfave/cli/v2"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "print the JSON Schema of the configuration file",
		Action: func(c *cli.Context) error {
			raw, err := config.Schema()
			if err != nil {
				return err
			}
			_, err = c.App.Writer.Write(append(raw, '\n'))
			return err
		},
	}
}
