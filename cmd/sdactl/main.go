package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/sdactl/internal/app"
	"github.com/dokzlo13/sdactl/internal/config"
	"github.com/dokzlo13/sdactl/internal/playbook"
	"github.com/dokzlo13/sdactl/internal/reconcile"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// usageError marks failures that happen before any reconciliation starts.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errRunFailed reports a run whose result was already written.
var errRunFailed = errors.New("run failed")

type options struct {
	configPath   string
	playbookPath string
	domain       string
}

func main() {
	os.Exit(execute(app.SignalContext(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRunFailed):
		return exitFailed
	default:
		// Flag errors from cobra land here too.
		fmt.Fprintln(stderr, "Error:", err)
		return exitUsage
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "sdactl",
		Short:         "Reconcile Catalyst Center SDA fabric configuration from a playbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd("apply", "Make the controller match the playbook", stdout, (*app.App).Apply),
		newRunCmd("verify", "Check the controller against the playbook without writing", stdout, (*app.App).Verify),
	)
	return root
}

type runFunc func(*app.App, context.Context, *playbook.Document, app.Domain) *reconcile.Result

func newRunCmd(use, short string, stdout io.Writer, fn runFunc) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), use, opts, stdout, fn)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file")
	cmd.Flags().StringVarP(&opts.playbookPath, "playbook", "f", "", "Path to playbook file")
	cmd.Flags().StringVar(&opts.domain, "domain", string(app.DomainAll), "Domain to reconcile")
	_ = cmd.MarkFlagRequired("playbook")
	return cmd
}

func run(ctx context.Context, command string, opts options, stdout io.Writer, fn runFunc) error {
	domain, err := app.ParseDomain(opts.domain)
	if err != nil {
		return &usageError{err}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &usageError{err}
	}
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	doc, err := playbook.Load(opts.playbookPath)
	if err != nil {
		return &usageError{err}
	}

	log.Info().
		Str("command", command).
		Str("playbook", opts.playbookPath).
		Str("domain", string(domain)).
		Msg("Starting sdactl")

	application, err := app.New(cfg)
	if err != nil {
		return &usageError{fmt.Errorf("failed to create application: %w", err)}
	}
	defer application.Close()

	res := fn(application, ctx, doc, domain)
	if err := writeResult(stdout, res); err != nil {
		return err
	}
	if res.Failed {
		return errRunFailed
	}
	return nil
}

func writeResult(w io.Writer, res *reconcile.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
