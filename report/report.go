// Package report writes the results of a run as a YAML document or as a plain text log.
package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/morganhein/netsync"
	"github.com/morganhein/netsync/interaction"
	"gopkg.in/yaml.v3"
)

const banner = "~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"

type Report struct {
	RunID     string   `yaml:"run_id"`
	Name      string   `yaml:"name,omitempty"`
	Generated string   `yaml:"generated"`
	Devices   []Device `yaml:"devices"`
	Failed    int      `yaml:"failed"`
}

type Device struct {
	Host    string               `yaml:"host"`
	Port    int                  `yaml:"port,omitempty"`
	Type    string               `yaml:"type,omitempty"`
	Elapsed string               `yaml:"elapsed"`
	Error   string               `yaml:"error,omitempty"`
	Outputs []interaction.Output `yaml:"outputs,omitempty"`
}

// New builds a report with devices sorted by host.
func New(runID, name string, results []netsync.Result) *Report {
	r := &Report{
		RunID:     runID,
		Name:      name,
		Generated: time.Now().Format(time.RFC3339),
		Failed:    netsync.Failed(results),
	}
	for _, res := range sortedResults(results) {
		d := Device{
			Host:    res.Device.Host,
			Port:    res.Device.Port,
			Type:    res.Device.Type,
			Elapsed: res.Elapsed.Round(time.Millisecond).String(),
			Outputs: res.Outputs,
		}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		r.Devices = append(r.Devices, d)
	}
	return r
}

func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return enc.Close()
}

// WriteLog writes every device's command outputs under a banner with its host, each
// command introduced by "host# command". Configuration blocks are not logged.
func WriteLog(w io.Writer, results []netsync.Result) error {
	bw := bufio.NewWriter(w)
	for _, res := range sortedResults(results) {
		host := res.Device.Host
		var data strings.Builder
		for _, out := range res.Outputs {
			if out.Command == "" {
				continue
			}
			fmt.Fprintf(&data, "\n\n%s# %s\n%s", host, out.Command, out.Text)
			if out.Error != "" {
				fmt.Fprintf(&data, "\n%% %s", out.Error)
			}
		}
		if res.Err != nil && len(res.Outputs) == 0 {
			fmt.Fprintf(&data, "\n\n%% %s", res.Err)
		}
		fmt.Fprintf(bw, "%s\n%s\n%s\n", banner, host, banner)
		for _, line := range strings.Split(strings.TrimLeft(data.String(), "\n"), "\n") {
			fmt.Fprintln(bw, line)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func sortedResults(results []netsync.Result) []netsync.Result {
	out := append([]netsync.Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Device.Addr() < out[j].Device.Addr()
	})
	return out
}
