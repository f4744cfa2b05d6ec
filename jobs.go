package netsync

import (
	"context"
	"sort"

	"github.com/morganhein/netsync/interaction"
	"github.com/morganhein/netsync/session"
)

// DeployJob prepares the device and runs the planned steps.
func DeployJob(steps []interaction.Step, enablePassword string) Job {
	return func(ctx context.Context, sess *session.Session) ([]interaction.Output, error) {
		if err := interaction.Prepare(ctx, sess, enablePassword); err != nil {
			return nil, err
		}
		return interaction.Deploy(ctx, sess, steps)
	}
}

// RemediateJob prepares the device and shuts every up/down port, tagging its description
// with note. Each reconfigured port becomes one output.
func RemediateJob(note, enablePassword string) Job {
	return func(ctx context.Context, sess *session.Session) ([]interaction.Output, error) {
		if err := interaction.Prepare(ctx, sess, enablePassword); err != nil {
			return nil, err
		}
		written, err := interaction.Remediate(ctx, sess, note)
		ports := make([]string, 0, len(written))
		for p := range written {
			ports = append(ports, p)
		}
		sort.Strings(ports)
		outs := make([]interaction.Output, 0, len(ports))
		for _, p := range ports {
			outs = append(outs, interaction.Output{
				Config: []string{"interface " + p, "desc " + written[p], "shutdown"},
			})
		}
		return outs, err
	}
}

// CommandJob prepares the device and runs a single command, keeping its output.
func CommandJob(command, enablePassword string) Job {
	return DeployJob([]interaction.Step{{Command: command}}, enablePassword)
}
