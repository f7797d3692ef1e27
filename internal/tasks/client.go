package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lco77/netops-portal/internal/auth"
	"github.com/lco77/netops-portal/internal/metrics"
	"github.com/lco77/netops-portal/internal/models"
)

// CredentialMinter issues a job credential for a sealed password.
type CredentialMinter interface {
	Issue(username, sealedPassword, jobID string) (string, error)
}

// Client is the web-process side of the pipeline: it validates and publishes
// jobs and reads their status back. It never waits for a job to run.
type Client struct {
	broker      Broker
	results     *ResultStore
	minter      CredentialMinter
	deviceRoles []string
	now         func() time.Time
}

// NewClient wires a Client. deviceRoles restricts who may submit device jobs;
// an empty list allows every authenticated caller.
func NewClient(broker Broker, results *ResultStore, minter CredentialMinter, deviceRoles []string) *Client {
	return &Client{
		broker:      broker,
		results:     results,
		minter:      minter,
		deviceRoles: deviceRoles,
		now:         time.Now,
	}
}

// Submit validates a job request from caller, publishes it and returns its id.
func (c *Client) Submit(ctx context.Context, taskType string, data json.RawMessage, caller Caller) (string, error) {
	if taskType == "" || isNull(data) {
		return "", ErrMissingField
	}

	msg := &Message{
		ID:          uuid.NewString(),
		Type:        taskType,
		Data:        data,
		Submitter:   caller.Username,
		SubmittedAt: c.now().UTC(),
	}

	switch taskType {
	case TypeHello:
	case TypeInterfaceDescription:
		if !auth.HasAnyRole(caller.Roles, c.deviceRoles) {
			return "", ErrForbidden
		}
		var device models.DeviceTaskData
		if err := json.Unmarshal(data, &device); err != nil {
			return "", fmt.Errorf("%w: data must be an object with ip_address", ErrMissingField)
		}
		if device.IPAddress == "" {
			return "", fmt.Errorf("%w: data.ip_address is required", ErrMissingField)
		}
		credential, err := c.minter.Issue(caller.Username, caller.SealedPassword, msg.ID)
		if err != nil {
			return "", fmt.Errorf("failed to issue job credential: %w", err)
		}
		msg.Host = device.IPAddress
		msg.Command = InterfaceDescriptionCommand
		msg.Credential = credential
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTaskType, taskType)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	if err := c.broker.Publish(ctx, body); err != nil {
		return "", err
	}

	metrics.TasksSubmitted.WithLabelValues(taskType).Inc()
	log.Info("Job submitted", "id", msg.ID, "type", taskType, "user", caller.Username)
	return msg.ID, nil
}

// Status reports the state of job id. Unknown ids are PENDING.
func (c *Client) Status(ctx context.Context, id string) (*models.TaskStatusResponse, error) {
	r, err := c.results.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := &models.TaskStatusResponse{
		TaskID:  id,
		Status:  string(r.Status),
		Ready:   r.Status.Ready(),
		Success: r.Status == StatusSuccess,
	}
	if resp.Ready && resp.Success {
		resp.Result = r.Result
	}
	return resp, nil
}

// Ping checks the broker and the result store.
func (c *Client) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"broker":  c.broker.Ping(ctx),
		"results": c.results.Ping(ctx),
	}
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
