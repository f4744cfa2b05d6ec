package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/morganhein/netsync/detect"
	"github.com/morganhein/netsync/inventory"
	"github.com/morganhein/netsync/schema"
	"github.com/morganhein/netsync/session"
	"github.com/morganhein/netsync/transport"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const envPrefix = "NETSYNC"

type config struct {
	Devices   string
	Commands  string
	Inventory string

	User           string
	Password       string
	EnablePassword string
	Key            string
	Passphrase     string
	KnownHosts     string
	StrictHostKey  bool
	Agent          bool

	Method      string
	Delay       time.Duration
	CmdTimeout  time.Duration
	ConnTimeout time.Duration
	Workers     int

	Out        string
	Report     string
	Transcript string
	LogLevel   string
	Yes        bool
}

// addFlags registers the flags shared by every command on fs.
func addFlags(fs *pflag.FlagSet) {
	fs.String("devices", "devices.txt", "Device list, one host[,device_type] per line")
	fs.String("commands", "commands.txt", "Command list, one command per line")
	fs.String("inventory", "", "YAML inventory with devices and commands (overrides --devices/--commands)")
	fs.StringP("user", "u", "", "Login username")
	fs.String("password", "", "Login password (or set NETSYNC_PASSWORD)")
	fs.String("enable-password", "", "Enable secret (or set NETSYNC_ENABLE_PASSWORD)")
	fs.String("key", "", "Path to SSH private key (PEM, OpenSSH)")
	fs.String("passphrase", "", "Private key passphrase (or set NETSYNC_PASSPHRASE)")
	fs.String("known-hosts", filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts"), "Path to known_hosts file")
	fs.Bool("strict-host-key", false, "Require host key verification against --known-hosts")
	fs.Bool("agent", false, "Also offer keys from the ssh agent at SSH_AUTH_SOCK")
	fs.String("method", "timer", "Completion method: timer, trailing or pattern")
	fs.Duration("delay", detect.DefaultDelay, "Wait per command for the timer method")
	fs.Duration("cmd-timeout", 0, "Per-command timeout (e.g. 30s). 0 uses the device profile default")
	fs.Duration("conn-timeout", transport.DefaultDialTimeout, "Connection timeout")
	fs.Int("workers", 4, "Devices worked on at the same time")
	fs.StringP("out", "o", "", "Output file (stdout when empty)")
	fs.String("report", "", "Also write a YAML report to this path")
	fs.String("transcript", "", "Write every byte sent and received to this path")
	fs.String("log-level", "info", "Log level: debug, info, notice, warning, error, critical")
	fs.BoolP("yes", "y", false, "Do not ask for confirmation")
}

// bindFlags exposes every flag through v, so NETSYNC_ENABLE_PASSWORD sets --enable-password.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(fs)
}

func loadConfig(v *viper.Viper) *config {
	return &config{
		Devices:        v.GetString("devices"),
		Commands:       v.GetString("commands"),
		Inventory:      v.GetString("inventory"),
		User:           v.GetString("user"),
		Password:       v.GetString("password"),
		EnablePassword: v.GetString("enable-password"),
		Key:            v.GetString("key"),
		Passphrase:     v.GetString("passphrase"),
		KnownHosts:     v.GetString("known-hosts"),
		StrictHostKey:  v.GetBool("strict-host-key"),
		Agent:          v.GetBool("agent"),
		Method:         strings.ToLower(v.GetString("method")),
		Delay:          v.GetDuration("delay"),
		CmdTimeout:     v.GetDuration("cmd-timeout"),
		ConnTimeout:    v.GetDuration("conn-timeout"),
		Workers:        v.GetInt("workers"),
		Out:            v.GetString("out"),
		Report:         v.GetString("report"),
		Transcript:     v.GetString("transcript"),
		LogLevel:       v.GetString("log-level"),
		Yes:            v.GetBool("yes"),
	}
}

// readSecret prompts on the terminal without echo. It returns "" when stdin is not a
// terminal; tests replace it.
var readSecret = func(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	_, _ = fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.TrimSpace(label), err)
	}
	return string(b), nil
}

// credentials fills in anything missing from the terminal.
func (c *config) credentials() (schema.Credentials, error) {
	if c.User == "" {
		return schema.Credentials{}, errors.New("--user is required")
	}
	var err error
	if c.Password == "" && c.Key == "" {
		if c.Password, err = readSecret("Password: "); err != nil {
			return schema.Credentials{}, err
		}
	}
	if c.EnablePassword == "" {
		if c.EnablePassword, err = readSecret("Secret: "); err != nil {
			return schema.Credentials{}, err
		}
	}
	if c.EnablePassword == "" {
		c.EnablePassword = c.Password
	}
	return schema.Credentials{
		Username:       c.User,
		Password:       c.Password,
		EnablePassword: c.EnablePassword,
		KeyPath:        c.Key,
		Passphrase:     c.Passphrase,
	}, nil
}

func (c *config) dialer() *transport.SSH {
	return &transport.SSH{
		KnownHosts:    c.KnownHosts,
		StrictHostKey: c.StrictHostKey,
		UseAgent:      c.Agent,
		DialTimeout:   c.ConnTimeout,
	}
}

func (c *config) sessionOptions() ([]session.Option, error) {
	var opts []session.Option
	switch c.Method {
	case "", "timer":
		if c.Delay <= 0 {
			return nil, errors.New("--delay must be positive")
		}
		opts = append(opts, session.TimerMethod(c.Delay))
	case "trailing":
		opts = append(opts, session.TrailingMethod())
	case "pattern":
		opts = append(opts, session.PatternMethod(nil))
	default:
		return nil, fmt.Errorf("unknown --method %q, want timer, trailing or pattern", c.Method)
	}
	if c.CmdTimeout > 0 {
		if (c.Method == "" || c.Method == "timer") && c.CmdTimeout <= c.Delay {
			return nil, fmt.Errorf("--cmd-timeout %s must be longer than --delay %s", c.CmdTimeout, c.Delay)
		}
		opts = append(opts, session.WithCommandTimeout(c.CmdTimeout))
	}
	return opts, nil
}

// targets loads the devices and, when wantCommands is set, the commands to run on them.
func (c *config) targets(wantCommands bool) ([]inventory.Device, []string, error) {
	if c.Inventory != "" {
		inv, err := inventory.Load(c.Inventory)
		if err != nil {
			return nil, nil, err
		}
		if wantCommands && len(inv.Commands) == 0 {
			return nil, nil, fmt.Errorf("%s lists no commands", c.Inventory)
		}
		return inv.Devices, inv.Commands, nil
	}
	devs, err := inventory.LoadDevices(c.Devices)
	if err != nil {
		return nil, nil, fmt.Errorf("read devices: %w", err)
	}
	if len(devs) == 0 {
		return nil, nil, fmt.Errorf("%s lists no devices", c.Devices)
	}
	if !wantCommands {
		return devs, nil, nil
	}
	cmds, err := inventory.LoadCommands(c.Commands)
	if err != nil {
		return nil, nil, fmt.Errorf("read commands: %w", err)
	}
	if len(cmds) == 0 {
		return nil, nil, fmt.Errorf("%s lists no commands", c.Commands)
	}
	return devs, cmds, nil
}

// confirm shows what is about to run and asks before going on. Without a terminal, or
// with --yes, it does not ask.
func (c *config) confirm(in io.Reader, out io.Writer, commands []string, devs []inventory.Device) bool {
	if c.Yes || !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	_, _ = fmt.Fprintln(out, "\nYou are about to run the following commands:")
	for _, cmd := range commands {
		_, _ = fmt.Fprintln(out, cmd)
	}
	_, _ = fmt.Fprintln(out, "\nOn the following devices:")
	for _, d := range devs {
		_, _ = fmt.Fprintln(out, d.Addr())
	}
	_, _ = fmt.Fprint(out, "\nAre you sure you wish to proceed? (y/n) ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}
