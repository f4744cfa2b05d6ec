package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/morganhein/netsync"
	"github.com/morganhein/netsync/logger"
	"github.com/morganhein/netsync/pubsub"
	"github.com/morganhein/netsync/report"
	"github.com/morganhein/netsync/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errAborted = errors.New("aborted")

// app carries what the commands share: the viper instance the flags are bound to and the
// configuration read from it before a command runs.
type app struct {
	v   *viper.Viper
	cfg *config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "netsync",
		Short: "Run command sequences on network devices over interactive ssh shells",
		Long: "Logs into each device, enters privileged mode, turns paging off and runs commands, " +
			"deciding when each command's output is complete before sending the next.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = loadConfig(a.v)
			if err := logger.SetLevel(a.cfg.LogLevel); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			return nil
		},
	}
	addFlags(root.PersistentFlags())
	if err := bindFlags(a.v, root.PersistentFlags()); err != nil {
		panic(err)
	}
	root.AddCommand(a.runCmd(), a.remediateCmd(), a.bgpCmd())
	return root
}

// create opens path for writing, making parent directories as needed.
func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// writeOut writes to --out, or to the command's stdout when --out is empty.
func (a *app) writeOut(cmd *cobra.Command, write func(io.Writer) error) error {
	if a.cfg.Out == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := create(a.cfg.Out)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// startTranscript records every session's traffic to --transcript until the returned
// function is called.
func (a *app) startTranscript() (func() error, error) {
	if a.cfg.Transcript == "" {
		return func() error { return nil }, nil
	}
	f, err := create(a.cfg.Transcript)
	if err != nil {
		return nil, err
	}
	events := make(chan schema.MessageEvent, 20)
	id := pubsub.Subscribe(events)
	done := make(chan error, 1)
	go func() {
		done <- pubsub.WriteTranscript(f, events)
	}()
	return func() error {
		pubsub.Unsubscribe(id)
		close(events)
		werr := <-done
		if err := f.Close(); werr == nil {
			werr = err
		}
		return werr
	}, nil
}

// finish writes the optional YAML report and turns device failures into an error.
func (a *app) finish(m *netsync.Manager, name string, results []netsync.Result) error {
	if a.cfg.Report != "" {
		f, err := create(a.cfg.Report)
		if err != nil {
			return err
		}
		err = report.New(m.RunID, name, results).WriteYAML(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	if n := netsync.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d devices failed", n, len(results))
	}
	return nil
}

// manager builds a manager from the credentials and session flags.
func (a *app) manager() (*netsync.Manager, schema.Credentials, error) {
	creds, err := a.cfg.credentials()
	if err != nil {
		return nil, creds, err
	}
	opts, err := a.cfg.sessionOptions()
	if err != nil {
		return nil, creds, err
	}
	m := netsync.NewManager(a.cfg.dialer(), creds, opts...)
	if a.cfg.Workers > 0 {
		m.Workers = a.cfg.Workers
	}
	return m, creds, nil
}
