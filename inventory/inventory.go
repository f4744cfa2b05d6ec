// Package inventory reads the device and command lists a run works through.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/morganhein/netsync/devices"
	"github.com/morganhein/netsync/schema"
	"gopkg.in/yaml.v3"
)

// Device is one entry of the inventory.
type Device struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"`
	Type string `yaml:"type,omitempty"`
	User string `yaml:"user,omitempty"`
}

// Addr is the host, with the port when one is set. It keys a device within a run.
func (d Device) Addr() string {
	if d.Port == 0 {
		return d.Host
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d Device) Target() schema.Target {
	return schema.Target{Host: d.Host, Port: d.Port, DeviceType: d.Type}
}

// UnmarshalYAML accepts either a mapping or the "host[,type]" shorthand of devices.txt.
func (d *Device) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		dev, ok := parseDeviceLine(value.Value)
		if !ok {
			return fmt.Errorf("line %d: empty device", value.Line)
		}
		*d = dev
		return nil
	}
	type plain Device
	var aux plain
	if err := value.Decode(&aux); err != nil {
		return err
	}
	*d = Device(aux)
	if d.Type == "" {
		d.Type = devices.Default
	}
	return nil
}

// Inventory is the YAML form: devices plus the commands to run on each.
type Inventory struct {
	Name     string   `yaml:"name,omitempty"`
	Devices  []Device `yaml:"devices"`
	Commands []string `yaml:"commands,omitempty"`
}

func parseDeviceLine(line string) (Device, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Device{}, false
	}
	host, kind, found := strings.Cut(line, ",")
	dev := Device{Host: strings.TrimSpace(host), Type: devices.Default}
	if found && strings.TrimSpace(kind) != "" {
		dev.Type = strings.TrimSpace(kind)
	}
	return dev, dev.Host != ""
}

// ReadDevices parses one device per line as "host" or "host,device_type". Blank lines are
// skipped, a repeated host keeps its last entry, and the result is sorted by host.
func ReadDevices(r io.Reader) ([]Device, error) {
	byHost := map[string]Device{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if dev, ok := parseDeviceLine(sc.Text()); ok {
			byHost[dev.Addr()] = dev
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sorted(byHost), nil
}

// ReadCommands returns the non-blank lines of r, untrimmed.
func ReadCommands(r io.Reader) ([]string, error) {
	var cmds []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		cmds = append(cmds, strings.TrimRight(sc.Text(), "\r"))
	}
	return cmds, sc.Err()
}

// Parse reads a YAML inventory.
func Parse(r io.Reader) (*Inventory, error) {
	var inv Inventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("inventory is empty")
		}
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	byHost := map[string]Device{}
	for _, d := range inv.Devices {
		if d.Host == "" {
			return nil, fmt.Errorf("device without a host in inventory")
		}
		byHost[d.Addr()] = d
	}
	inv.Devices = sorted(byHost)
	return &inv, nil
}

func sorted(byHost map[string]Device) []Device {
	out := make([]Device, 0, len(byHost))
	for _, d := range byHost {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Port < out[j].Port
	})
	return out
}

func LoadDevices(path string) ([]Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDevices(f)
}

func LoadCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCommands(f)
}

func Load(path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	inv, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inv, nil
}
