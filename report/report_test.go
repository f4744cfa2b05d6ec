package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/morganhein/netsync"
	"github.com/morganhein/netsync/interaction"
	"github.com/morganhein/netsync/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func results() []netsync.Result {
	return []netsync.Result{
		{
			Device:  inventory.Device{Host: "10.0.0.2", Type: "cisco_ios"},
			Err:     errors.New("login to 10.0.0.2 failed: connection refused"),
			Elapsed: 1500 * time.Millisecond,
		},
		{
			Device: inventory.Device{Host: "10.0.0.1", Type: "cisco_ios"},
			Outputs: []interaction.Output{
				{Command: "show clock", Text: "*10:00:00.000 UTC"},
				{Config: []string{"hostname edge1"}},
				{Command: "show version", Text: "Cisco IOS Software\nVersion 12.2"},
			},
			Elapsed: 2 * time.Second,
		},
	}
}

func TestWriteLog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLog(&buf, results()))

	want := banner + "\n10.0.0.1\n" + banner + "\n" +
		"10.0.0.1# show clock\n" +
		"*10:00:00.000 UTC\n" +
		"\n" +
		"10.0.0.1# show version\n" +
		"Cisco IOS Software\n" +
		"Version 12.2\n" +
		"\n" +
		banner + "\n10.0.0.2\n" + banner + "\n" +
		"% login to 10.0.0.2 failed: connection refused\n" +
		"\n"
	assert.Equal(t, want, buf.String())
}

func TestReport_YAML(t *testing.T) {
	r := New("5f0c6d3e-8a52-4a4e-9c43-1f1f7b1b2c3d", "audit", results())
	assert.Equal(t, 1, r.Failed)
	require.Len(t, r.Devices, 2)
	assert.Equal(t, "10.0.0.1", r.Devices[0].Host)
	assert.Equal(t, "2s", r.Devices[0].Elapsed)

	var buf bytes.Buffer
	require.NoError(t, r.WriteYAML(&buf))

	var back Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, r.RunID, back.RunID)
	assert.Equal(t, "login to 10.0.0.2 failed: connection refused", back.Devices[1].Error)
	assert.Equal(t, "Cisco IOS Software\nVersion 12.2", back.Devices[0].Outputs[2].Text)
	assert.Contains(t, buf.String(), "run_id: 5f0c6d3e-8a52-4a4e-9c43-1f1f7b1b2c3d")
}
