package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	efficio "github.com/ghost-in-the-sushi/efficio-webapp"
)

// FlushCommand erases the database. It refuses to run unless
// EFFICIO_ENABLE_FLUSH (or --enable-flush) is set and --yes is given.
func FlushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "Erase every key of the efficio database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "enable-flush",
				Usage:   "Allow destructive maintenance",
				EnvVars: []string{"EFFICIO_ENABLE_FLUSH"},
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Confirm the flush",
			},
		},
		Action: flush,
	}
}

func flush(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("refusing to flush without --yes")
	}

	engine, err := newEngine(c, func(cfg *efficio.Config) {
		cfg.Maintenance.EnableFlush = c.Bool("enable-flush")
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	if err := engine.Flush(ctx); err != nil {
		if errors.Is(err, efficio.ErrFlushDisabled) {
			return errors.New("flush disabled: set EFFICIO_ENABLE_FLUSH=true")
		}
		return err
	}

	fmt.Fprintln(c.App.Writer, "database flushed")
	return nil
}

// StatsCommand prints account counts as JSON.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show the number of registered accounts",
		Action: stats,
	}
}

func stats(c *cli.Context) error {
	engine, err := newEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	s, err := engine.Stats(ctx)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, s)
}

// PingCommand checks that Redis answers.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:   "ping",
		Usage:  "Check Redis connectivity",
		Action: ping,
	}
}

func ping(c *cli.Context) error {
	engine, err := newEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := commandContext(c)
	defer cancel()

	rtt, err := engine.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "PONG %s\n", rtt)
	return nil
}
