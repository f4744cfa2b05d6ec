package interaction

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AuditNote is appended to the description of every port shut down by Remediate.
const AuditNote = "(audit item - admin down 2017)"

// DownPorts picks the ports that are administratively up but link down out of
// "show ip interface brief" output. The port is the first field of the line.
func DownPorts(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		l := strings.ToLower(line)
		if !strings.Contains(l, "up") || !strings.Contains(l, "down") {
			continue
		}
		if f := strings.Fields(line); len(f) > 0 {
			ports = append(ports, f[0])
		}
	}
	return ports
}

// Description returns the text after "Description:" in "show interface" output.
func Description(output string) string {
	for _, line := range strings.Split(output, "\n") {
		i := strings.Index(line, "Description:")
		if i < 0 {
			continue
		}
		return strings.TrimSpace(line[i+len("Description:"):])
	}
	return ""
}

// Descriptions runs "show interface" for every port and collects the current descriptions.
// Ports without one map to "".
func Descriptions(ctx context.Context, c Commander, ports []string) (map[string]string, error) {
	out := make(map[string]string, len(ports))
	for _, port := range ports {
		res, err := c.SendCommand(ctx, "show interface "+port)
		if err != nil {
			return out, fmt.Errorf("show interface %s: %w", port, err)
		}
		out[port] = Description(res.Text)
	}
	return out, nil
}

// ConfigureDescriptions enters configuration mode, tags and shuts every port, and ends.
// It returns the description written to each port.
func ConfigureDescriptions(ctx context.Context, c Commander, descriptions map[string]string, note string) (map[string]string, error) {
	ports := make([]string, 0, len(descriptions))
	for p := range descriptions {
		ports = append(ports, p)
	}
	sort.Strings(ports)

	written := make(map[string]string, len(ports))
	if _, err := c.SendCommand(ctx, "config t"); err != nil {
		return written, err
	}
	for _, port := range ports {
		desc := note
		if d := descriptions[port]; d != "" {
			desc = d + " " + note
		}
		log.Debugf("Configuring %s: %s", port, desc)
		for _, cmd := range []string{"interface " + port, "desc " + desc, "shutdown"} {
			if _, err := c.SendCommand(ctx, cmd); err != nil {
				return written, fmt.Errorf("configure %s: %w", port, err)
			}
		}
		written[port] = desc
	}
	_, err := c.SendCommand(ctx, "end")
	return written, err
}

// Remediate finds the up/down ports on a prepared shell and shuts them with note appended
// to their descriptions.
func Remediate(ctx context.Context, c Commander, note string) (map[string]string, error) {
	res, err := c.SendCommand(ctx, "show ip int brief")
	if err != nil {
		return nil, err
	}
	ports := DownPorts(Clean(res))
	if len(ports) == 0 {
		return map[string]string{}, nil
	}
	descriptions, err := Descriptions(ctx, c, ports)
	if err != nil {
		return nil, err
	}
	return ConfigureDescriptions(ctx, c, descriptions, note)
}
