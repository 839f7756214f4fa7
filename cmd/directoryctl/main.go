// Command directoryctl manages users, groups, memberships and tasks from the
// command line. Results are printed as JSON.
package main

import (
	"context"
	"os"

	"github.com/goliatone/go-errors"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-user-directory/internal/logging"
)

func main() {
	logger := logging.New(os.Stderr, "info")
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := newApp(runner).Run(context.Background(), os.Args); err != nil {
		var appErr *errors.Error
		if errors.As(err, &appErr) {
			errors.LogBySeverity(logging.Slog(logger), appErr)
		} else {
			logger.Error("command failed", "err", err)
		}
		os.Exit(1)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "directoryctl",
		Usage:   "Manage the user, group and task directory",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "directory.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Override the database driver (memory, sqlite3, postgres)",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Override the database DSN",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Commands: r.register(),
	}
}

func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write an example configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Where to write the file",
				Value: "directory.toml",
			},
		},
		Action: r.Init,
	}
}
