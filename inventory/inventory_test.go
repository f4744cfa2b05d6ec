package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/morganhein/netsync/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDevices(t *testing.T) {
	in := "10.2.0.1, juniper\n\n10.0.0.1\n10.3.0.1,cisco_xr\r\n10.0.0.1,cisco_xe\n   \n"
	devs, err := ReadDevices(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{Host: "10.0.0.1", Type: "cisco_xe"},
		{Host: "10.2.0.1", Type: "juniper"},
		{Host: "10.3.0.1", Type: "cisco_xr"},
	}, devs)
}

func TestReadDevices_DefaultType(t *testing.T) {
	devs, err := ReadDevices(strings.NewReader("core1\nedge1,\n"))
	require.NoError(t, err)
	assert.Equal(t, "cisco_ios", devs[0].Type)
	assert.Equal(t, "cisco_ios", devs[1].Type)
}

func TestReadCommands(t *testing.T) {
	cmds, err := ReadCommands(strings.NewReader("show clock\n\nconf t\n interface Gi0/1\r\nend\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"show clock", "conf t", " interface Gi0/1", "end"}, cmds)
}

func TestParse(t *testing.T) {
	in := `
name: audit
devices:
  - host: 10.0.0.2
    port: 2222
    type: cisco_xr
    user: ops
  - 10.0.0.1,juniper
  - host: 10.0.0.3
commands:
  - show version
  - show clock
`
	inv, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "audit", inv.Name)
	assert.Equal(t, []Device{
		{Host: "10.0.0.1", Type: "juniper"},
		{Host: "10.0.0.2", Port: 2222, Type: "cisco_xr", User: "ops"},
		{Host: "10.0.0.3", Type: "cisco_ios"},
	}, inv.Devices)
	assert.Equal(t, []string{"show version", "show clock"}, inv.Commands)
	assert.Equal(t, schema.Target{Host: "10.0.0.2", Port: 2222, DeviceType: "cisco_xr"}, inv.Devices[1].Target())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.Error(t, err)
	_, err = Parse(strings.NewReader("devices:\n  - port: 22\n"))
	assert.Error(t, err)
	_, err = Parse(strings.NewReader("devices: [\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "devices.txt")
	cmdPath := filepath.Join(dir, "commands.txt")
	invPath := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(devPath, []byte("10.0.0.1\n"), 0644))
	require.NoError(t, os.WriteFile(cmdPath, []byte("show clock\n"), 0644))
	require.NoError(t, os.WriteFile(invPath, []byte("devices:\n  - 10.0.0.1\n"), 0644))

	devs, err := LoadDevices(devPath)
	require.NoError(t, err)
	assert.Len(t, devs, 1)
	cmds, err := LoadCommands(cmdPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"show clock"}, cmds)
	inv, err := Load(invPath)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", inv.Devices[0].Host)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
