package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/internal/config"
	"github.com/goliatone/go-user-directory/internal/logging"
	"github.com/goliatone/go-user-directory/pkg/di"
)

// Runner holds the dependencies of the CLI commands and implements their actions.
type Runner struct {
	container *di.Container
	owned     bool
	logger    *log.Logger
	output    io.Writer
	pretty    bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Container is used as is when set; otherwise one is built from the
	// configuration before the first directory command and closed after it.
	Container *di.Container
	Logger    *log.Logger
	Output    io.Writer
}

// NewRunner creates a new Runner with the provided options.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.New(os.Stderr, "info")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		container: opts.Container,
		logger:    opts.Logger,
		output:    opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, userCommand, groupCommand, membershipCommand, taskCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// setup runs before every directory command. It builds the container when
// none was injected and tags the context with a fresh request id.
func (r *Runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.pretty = cmd.Bool("pretty")

	if r.container == nil {
		cfg, err := r.loadConfig(cmd)
		if err != nil {
			return ctx, err
		}
		if lvl, err := logging.ParseLevel(cfg.Log.Level); err == nil {
			r.logger.SetLevel(lvl)
		}

		container, err := di.NewContainer(ctx, cfg, di.WithLogger(r.logger))
		if err != nil {
			return ctx, err
		}
		r.container = container
		r.owned = true
	}

	id := uuid.NewString()
	r.logger.Debug("command", "name", cmd.FullName(), "request_id", id)
	return apperr.WithRequestID(ctx, id), nil
}

func (r *Runner) teardown(ctx context.Context, cmd *cli.Command) error {
	if !r.owned || r.container == nil {
		return nil
	}
	err := r.container.Close()
	r.container = nil
	r.owned = false
	return err
}

// loadConfig reads --config when the file exists, falling back to the
// embedded defaults, then applies the flag overrides. An explicitly given
// config path must exist.
func (r *Runner) loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg := config.Default()

	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil || cmd.IsSet("config") {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if v := cmd.String("driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := cmd.String("dsn"); v != "" {
		cfg.Database.DSN = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

// Init writes the example configuration.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := config.WriteExample(path); err != nil {
		return err
	}
	r.logger.Info("configuration written", "path", path)
	return nil
}

func (r *Runner) writeJSON(data any) error {
	var output []byte
	var err error

	if r.pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	output = append(output, '\n')
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

type deleted struct {
	Deleted string `json:"deleted"`
	ID      int64  `json:"id"`
}

// argID parses the n-th positional argument as a record id.
func argID(cmd *cli.Command, n int, name string) (int64, error) {
	raw := cmd.Args().Get(n)
	if raw == "" {
		return 0, apperr.InvalidInput("missing %s argument", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.InvalidInput("%s must be an integer, got %q", name, raw)
	}
	return id, nil
}

// parseDate parses a YYYY-MM-DD deadline. The empty string is the zero time.
func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("deadline must be YYYY-MM-DD, got %q", v)
	}
	return t, nil
}
