package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	domainerrors "github.com/reglet-dev/runnable-sdk/domain/errors"
	"github.com/reglet-dev/runnable-sdk/internal/hostapp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "invoke a Runnable once and print its output",
		ArgsUsage: "<runnable>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "use `bytes` as the input instead of reading stdin",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up after `duration` (0 waits forever)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("run: missing runnable name", 2)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	input, err := readInput(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h, err := hostapp.Start(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(context.Background()); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	out, err := h.Registry.Do(ctx, name, input)
	if err != nil {
		var coded domainerrors.Coded
		if errors.As(err, &coded) {
			// Guest failures keep their code visible to scripts.
			return cli.Exit(err.Error(), exitCode(coded.Code()))
		}
		return err
	}

	_, err = c.App.Writer.Write(out)
	return err
}

func readInput(c *cli.Context) ([]byte, error) {
	if c.IsSet("data") {
		return []byte(c.String("data")), nil
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stdin(c)); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return buf.Bytes(), nil
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

// exitCode maps a guest status onto a process exit status.
func exitCode(code int32) int {
	if code > 0 && code < 256 {
		return int(code)
	}
	return 1
}
