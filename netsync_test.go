package netsync

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/morganhein/netsync/detect"
	"github.com/morganhein/netsync/interaction"
	"github.com/morganhein/netsync/inventory"
	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/session"
	"github.com/morganhein/netsync/testdevice"
	"github.com/morganhein/netsync/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ipIntBrief = `Interface              IP-Address      OK? Method Status                Protocol
GigabitEthernet0/0     10.0.0.1        YES NVRAM  up                    up
GigabitEthernet0/1     unassigned      YES unset  up                    down`

func device(t *testing.T, cfg testdevice.Config) (*testdevice.Server, inventory.Device) {
	t.Helper()
	if cfg.EnablePassword == "" {
		cfg.EnablePassword = "cisco"
	}
	dev, err := testdevice.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })
	return dev, inventory.Device{Host: dev.Host(), Port: dev.Port(), Type: "cisco_ios"}
}

func unreachable(t *testing.T) inventory.Device {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return inventory.Device{Host: "127.0.0.1", Port: port, Type: "cisco_ios"}
}

func manager() *Manager {
	m := NewManager(&transport.SSH{DialTimeout: 2 * time.Second},
		schema.Credentials{Username: "admin", Password: "admin"},
		session.TrailingMethod(), session.WithCommandTimeout(5*time.Second))
	m.Workers = 2
	return m
}

func TestManager_RunIsolatesFailures(t *testing.T) {
	dev1, d1 := device(t, testdevice.Config{Hostname: "edge1", Outputs: map[string]string{"show clock": "*10:00:00.000 UTC"}})
	_, d2 := device(t, testdevice.Config{Hostname: "edge2", Outputs: map[string]string{"show clock": "*11:00:00.000 UTC"}})
	bad := unreachable(t)
	devs := []inventory.Device{d1, bad, d2}

	m := manager()
	results := m.Run(context.Background(), devs, CommandJob("show clock", "cisco"))
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	require.Len(t, results[0].Outputs, 1)
	assert.Equal(t, "*10:00:00.000 UTC", results[0].Outputs[0].Text)

	assert.True(t, errors.Is(results[1].Err, session.ErrAuthentication))
	assert.Equal(t, bad, results[1].Device)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, "*11:00:00.000 UTC", results[2].Outputs[0].Text)

	assert.Equal(t, 1, Failed(results))
	_, open := m.GetDevice(d1.Addr())
	assert.False(t, open)
	assert.Equal(t, []string{"enable", "cisco", "terminal length 0", "show clock"}, dev1.Received())
	assert.Len(t, m.RunID, 36)
}

func TestManager_WrongEnablePassword(t *testing.T) {
	_, d := device(t, testdevice.Config{})
	m := NewManager(&transport.SSH{}, schema.Credentials{Username: "admin", Password: "admin"},
		session.TrailingMethod(),
		session.WithLoginDetector(detect.NewFixedDelay(200*time.Millisecond)),
		session.WithCommandTimeout(2*time.Second))

	results := m.Run(context.Background(), []inventory.Device{d}, CommandJob("show clock", "wrong"))
	assert.ErrorIs(t, results[0].Err, interaction.ErrNotPrivileged)
	assert.Empty(t, results[0].Outputs)
}

func TestManager_Remediate(t *testing.T) {
	dev, d := device(t, testdevice.Config{Outputs: map[string]string{
		"show ip int brief":                 ipIntBrief,
		"show interface GigabitEthernet0/1": "GigabitEthernet0/1 is up, line protocol is down\n  Description: printer",
	}})

	results := manager().Run(context.Background(), []inventory.Device{d}, RemediateJob(interaction.AuditNote, "cisco"))
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Outputs, 1)
	assert.Equal(t, []string{
		"interface GigabitEthernet0/1",
		"desc printer (audit item - admin down 2017)",
		"shutdown",
	}, results[0].Outputs[0].Config)
	assert.Subset(t, dev.Received(), []string{"config t", "desc printer (audit item - admin down 2017)", "end"})
}

func TestManager_RunSkipsRepeatedAddress(t *testing.T) {
	dev, d := device(t, testdevice.Config{Outputs: map[string]string{"show clock": "*10:00:00.000 UTC"}})

	results := manager().Run(context.Background(), []inventory.Device{d, d}, CommandJob("show clock", "cisco"))
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "*10:00:00.000 UTC", results[0].Outputs[0].Text)
	assert.ErrorIs(t, results[1].Err, ErrDuplicateDevice)
	assert.Equal(t, 1, Failed(results))
	assert.Equal(t, []string{"enable", "cisco", "terminal length 0", "show clock"}, dev.Received())
}

func TestManager_ReleaseKeepsNewerSession(t *testing.T) {
	_, d := device(t, testdevice.Config{})
	m := manager()
	defer m.Shutdown()

	first, err := m.Connect(context.Background(), d)
	require.NoError(t, err)
	second, err := m.Connect(context.Background(), d)
	require.NoError(t, err)

	m.release(d.Addr(), first)
	got, ok := m.GetDevice(d.Addr())
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, schema.Closed, first.State())
	assert.Equal(t, schema.ShellActive, second.State())
}

func TestManager_CanceledContext(t *testing.T) {
	_, d := device(t, testdevice.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := manager().Run(ctx, []inventory.Device{d}, CommandJob("show clock", "cisco"))
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestManager_ConnectAndShutdown(t *testing.T) {
	_, d := device(t, testdevice.Config{})
	m := manager()

	sess, err := m.Connect(context.Background(), d)
	require.NoError(t, err)
	got, ok := m.GetDevice(d.Addr())
	require.True(t, ok)
	assert.Same(t, sess, got)

	require.NoError(t, m.Shutdown())
	assert.Equal(t, schema.Closed, sess.State())
	_, ok = m.GetDevice(d.Addr())
	assert.False(t, ok)
}
