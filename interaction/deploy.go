package interaction

import (
	"context"
	"strings"
)

// Step is either a configuration block or a single command whose output is kept.
type Step struct {
	Config  []string
	Command string
}

func (s Step) IsConfig() bool {
	return len(s.Config) > 0
}

// Output is what one step produced on a device.
type Output struct {
	Command string   `yaml:"command,omitempty"`
	Config  []string `yaml:"config,omitempty"`
	Text    string   `yaml:"output,omitempty"`
	Error   string   `yaml:"error,omitempty"`
}

// Plan groups a command list into steps. A line starting with "conf" opens a configuration
// block and a line starting with "end" closes it; a block left open runs at the end.
func Plan(commands []string) []Step {
	var (
		steps  []Step
		block  []string
		inConf bool
	)
	flush := func() {
		if len(block) > 0 {
			steps = append(steps, Step{Config: block})
		}
		block = nil
	}
	for _, raw := range commands {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
		case strings.HasPrefix(line, "conf"):
			inConf = true
		case strings.HasPrefix(line, "end"):
			inConf = false
			flush()
		case inConf:
			block = append(block, line)
		default:
			steps = append(steps, Step{Command: line})
		}
	}
	flush()
	return steps
}

// Deploy runs the steps in order on a prepared shell. Configuration blocks are wrapped in
// "configure terminal" and "end". It stops at the first failing step and returns the
// outputs gathered so far, the failing one included.
func Deploy(ctx context.Context, c Commander, steps []Step) ([]Output, error) {
	var outputs []Output
	for _, step := range steps {
		if step.IsConfig() {
			out := Output{Config: step.Config}
			var text []string
			for _, cmd := range configSet(step.Config) {
				res, err := c.SendCommand(ctx, cmd)
				if t := Clean(res); t != "" {
					text = append(text, t)
				}
				if err != nil {
					out.Text = strings.Join(text, "\n")
					out.Error = err.Error()
					return append(outputs, out), err
				}
			}
			out.Text = strings.Join(text, "\n")
			outputs = append(outputs, out)
			continue
		}
		res, err := c.SendCommand(ctx, step.Command)
		out := Output{Command: step.Command, Text: Clean(res)}
		if err != nil {
			out.Error = err.Error()
			return append(outputs, out), err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func configSet(lines []string) []string {
	set := make([]string, 0, len(lines)+2)
	set = append(set, "configure terminal")
	set = append(set, lines...)
	return append(set, "end")
}
