// Package devices holds the per-vendor CLI conventions a session needs to drive a device.
package devices

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	CiscoIOS = "cisco_ios"
	CiscoXE  = "cisco_xe"
	CiscoXR  = "cisco_xr"
	Juniper  = "juniper"
	Casa     = "casa"
	Foundry  = "foundry"

	Default = CiscoIOS
)

// Profile describes how one family of devices behaves at the CLI.
type Profile struct {
	Name           string
	PagingCommand  string // empty when paging cannot be turned off before enabling
	EnableCommand  string
	Prompt         *regexp.Regexp
	Continuation   []*regexp.Regexp // pager prompts answered with a space
	CommandTimeout time.Duration
	Ciphers        []string // non-empty for boxes that only speak legacy ssh
	KeyExchanges   []string
}

var prompt = regexp.MustCompile(`> *$|# *$|\$ *$`)

// legacy algorithms for older IOS-XR and IOS images
var (
	legacyCiphers = []string{
		"aes128-gcm@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
		"aes256-cbc",
		"arcfour256",
		"arcfour128",
	}
	legacyKeyExchanges = []string{
		"curve25519-sha256",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}
)

var profiles = map[string]Profile{
	CiscoIOS: {
		Name:           CiscoIOS,
		PagingCommand:  "terminal length 0",
		EnableCommand:  "enable",
		Prompt:         prompt,
		Continuation:   compile(`^.*?--More-- ?$`),
		CommandTimeout: 10 * time.Second,
	},
	CiscoXE: {
		Name:           CiscoXE,
		PagingCommand:  "terminal length 0",
		EnableCommand:  "enable",
		Prompt:         prompt,
		Continuation:   compile(`^.*?--More-- ?$`),
		CommandTimeout: 10 * time.Second,
	},
	CiscoXR: {
		Name:           CiscoXR,
		PagingCommand:  "terminal length 0",
		EnableCommand:  "enable",
		Prompt:         prompt,
		Continuation:   compile(`^.*?--More-- ?$`),
		CommandTimeout: 8 * time.Second,
		Ciphers:        legacyCiphers,
		KeyExchanges:   legacyKeyExchanges,
	},
	Juniper: {
		Name:           Juniper,
		PagingCommand:  "set cli screen-length 0",
		EnableCommand:  "",
		Prompt:         prompt,
		Continuation:   compile(`^.*?---\(more.*\)---$`),
		CommandTimeout: 8 * time.Second,
	},
	Casa: {
		Name:           Casa,
		PagingCommand:  "page-off",
		EnableCommand:  "enable",
		Prompt:         prompt,
		Continuation:   compile(`^--more--$`),
		CommandTimeout: 30 * time.Second,
	},
	Foundry: {
		Name:           Foundry,
		PagingCommand:  "skip-page-display",
		EnableCommand:  "enable",
		Prompt:         prompt,
		Continuation:   compile(`^--More--,`),
		CommandTimeout: 30 * time.Second,
	},
}

// Lookup returns the profile for a device type. Unknown or empty names fall back to
// cisco_ios, the same default the device list format uses; ok reports whether name matched.
func Lookup(name string) (p Profile, ok bool) {
	p, ok = profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return profiles[Default], false
	}
	return p, true
}

// Names lists every known device type, sorted.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func compile(patterns ...string) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, next := range patterns {
		out = append(out, regexp.MustCompile(next))
	}
	return out
}
