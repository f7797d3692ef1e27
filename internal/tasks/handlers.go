package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// CredentialRedeemer turns a job credential back into directory credentials.
type CredentialRedeemer interface {
	Redeem(token, jobID string) (username, password string, err error)
}

// CommandRunner executes a command on a network device.
type CommandRunner interface {
	Run(ctx context.Context, host, username, password, command string) (string, error)
}

// Hello echoes the job data back as its result.
func Hello(_ context.Context, msg *Message) (json.RawMessage, error) {
	return msg.Data, nil
}

// InterfaceDescription runs the fixed interface-description command on the job's
// device with the submitter's credentials and returns the command output.
func InterfaceDescription(redeemer CredentialRedeemer, runner CommandRunner) Handler {
	return func(ctx context.Context, msg *Message) (json.RawMessage, error) {
		if msg.Host == "" {
			return nil, errors.New("job has no target device")
		}
		if msg.Command != InterfaceDescriptionCommand {
			return nil, fmt.Errorf("refusing to run unexpected command %q", msg.Command)
		}

		username, password, err := redeemer.Redeem(msg.Credential, msg.ID)
		if err != nil {
			return nil, err
		}
		if username != msg.Submitter {
			return nil, errors.New("job credential does not belong to the submitter")
		}

		output, err := runner.Run(ctx, msg.Host, username, password, msg.Command)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", msg.Command, msg.Host, err)
		}
		return json.Marshal(output)
	}
}
