package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/morganhein/netsync"
	"github.com/morganhein/netsync/interaction"
	"github.com/morganhein/netsync/report"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the command list on every device and log the output",
		Long: "Lines starting with conf open a configuration block that runs inside configure terminal " +
			"until a line starting with end. Every other line is run as a command and its output logged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, cmds, err := a.cfg.targets(true)
			if err != nil {
				return err
			}
			if !a.cfg.confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), cmds, devs) {
				return errAborted
			}
			m, creds, err := a.manager()
			if err != nil {
				return err
			}
			stop, err := a.startTranscript()
			if err != nil {
				return err
			}
			results := m.Run(cmd.Context(), devs, netsync.DeployJob(interaction.Plan(cmds), creds.EnablePassword))
			_ = m.Shutdown()
			if err := stop(); err != nil {
				return err
			}
			if err := a.writeOut(cmd, func(w io.Writer) error { return report.WriteLog(w, results) }); err != nil {
				return err
			}
			return a.finish(m, "run", results)
		},
	}
}

func (a *app) remediateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "remediate",
		Short: "Shut ports that are up but link down, tagging their descriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devs, _, err := a.cfg.targets(false)
			if err != nil {
				return err
			}
			note := a.v.GetString("note")
			if !a.cfg.confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), []string{"shutdown + desc <description> " + note}, devs) {
				return errAborted
			}
			m, creds, err := a.manager()
			if err != nil {
				return err
			}
			stop, err := a.startTranscript()
			if err != nil {
				return err
			}
			results := m.Run(cmd.Context(), devs, netsync.RemediateJob(note, creds.EnablePassword))
			_ = m.Shutdown()
			if err := stop(); err != nil {
				return err
			}
			r := report.New(m.RunID, "remediate", results)
			if err := a.writeOut(cmd, r.WriteYAML); err != nil {
				return err
			}
			return a.finish(m, "remediate", results)
		},
	}
	c.Flags().String("note", interaction.AuditNote, "Text appended to the description of every port shut down")
	_ = a.v.BindPFlag("note", c.Flags().Lookup("note"))
	return c
}

func (a *app) bgpCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "bgp",
		Short: "Count the paths to every BGP route",
		Long: "Reads a saved show ip bgp table with --file, or runs show ip bgp on every device, and " +
			"writes the number of paths per route as YAML.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file := a.v.GetString("file"); file != "" {
				return a.bgpFile(cmd, file)
			}
			devs, _, err := a.cfg.targets(false)
			if err != nil {
				return err
			}
			m, creds, err := a.manager()
			if err != nil {
				return err
			}
			stop, err := a.startTranscript()
			if err != nil {
				return err
			}
			results := m.Run(cmd.Context(), devs, netsync.CommandJob("show ip bgp", creds.EnablePassword))
			_ = m.Shutdown()
			if err := stop(); err != nil {
				return err
			}
			tables, err := bgpTables(results)
			if err != nil {
				return err
			}
			if err := a.writeOut(cmd, func(w io.Writer) error { return writeYAML(w, tables) }); err != nil {
				return err
			}
			return a.finish(m, "bgp", results)
		},
	}
	c.Flags().String("file", "", "Parse a saved show ip bgp table instead of logging into devices")
	_ = a.v.BindPFlag("file", c.Flags().Lookup("file"))
	return c
}

func (a *app) bgpFile(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	db, err := interaction.ParseBGPRedundancy(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return a.writeOut(cmd, db.WriteYAML)
}

// bgpTables parses the show ip bgp output of every device that answered, keyed by address.
func bgpTables(results []netsync.Result) (map[string]interaction.Redundancy, error) {
	tables := make(map[string]interaction.Redundancy)
	for _, res := range results {
		if res.Err != nil || len(res.Outputs) == 0 {
			continue
		}
		db, err := interaction.ParseBGPRedundancy(strings.NewReader(res.Outputs[0].Text))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", res.Device.Addr(), err)
		}
		tables[res.Device.Addr()] = db
	}
	return tables, nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
