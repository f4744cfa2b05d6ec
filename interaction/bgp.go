package interaction

import (
	"bufio"
	"io"
	"net/netip"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var notAddressChars = regexp.MustCompile(`[^\d./]+`)

// Addresses returns the words of a BGP table line that are IPv4 addresses or prefixes,
// after stripping everything but digits, dots and slashes from each word.
func Addresses(line string) []string {
	var out []string
	for _, word := range strings.Fields(line) {
		word = notAddressChars.ReplaceAllString(word, "")
		if isIPv4(word) {
			out = append(out, word)
		}
	}
	return out
}

func isIPv4(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		return err == nil && p.Addr().Is4()
	}
	a, err := netip.ParseAddr(s)
	return err == nil && a.Is4()
}

// Redundancy counts the paths seen per route in a "show ip bgp" table.
type Redundancy map[string]int

// ParseBGPRedundancy reads a BGP table. A line with two addresses names a route and one
// path to it; a line with a single address is another path for the route above it, the
// way Cisco prints multipath entries.
func ParseBGPRedundancy(r io.Reader) (Redundancy, error) {
	db := Redundancy{}
	route := ""
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		addrs := Addresses(sc.Text())
		switch len(addrs) {
		case 2:
			route = addrs[0]
			db[route]++
		case 1:
			if route == "" {
				continue
			}
			db[route]++
		}
	}
	return db, sc.Err()
}

// WriteYAML writes the counts as a block style YAML mapping.
func (r Redundancy) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]int(r)); err != nil {
		return err
	}
	return enc.Close()
}
