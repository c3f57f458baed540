package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/campushq/corekit/errors"
	"github.com/campushq/corekit/transport"
)

// Client talks to a remote registry over HTTP. It implements the same
// Registry interface as the in-process table.
type Client struct {
	baseURL string
	doer    transport.Doer
}

// NewClient creates a registry client against the given base URL.
func NewClient(baseURL string, doer transport.Doer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// Register registers an instance with the remote registry and returns the
// instance ID assigned by the server.
func (c *Client) Register(ctx context.Context, reg *Registration) (string, error) {
	if reg == nil {
		return "", errors.InvalidRegistration("registration is nil")
	}

	body, err := c.doer.Post(ctx, c.baseURL+"/api/v1/registry/register", reg)
	if err != nil {
		return "", remoteError(body, err)
	}

	var resp struct {
		InstanceID string `json:"instance_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.ConnectionFailed(c.baseURL, fmt.Errorf("decode register response: %w", err))
	}
	reg.InstanceID = resp.InstanceID
	return resp.InstanceID, nil
}

// Heartbeat refreshes the instance's heartbeat, stamping the request with the
// local send time.
func (c *Client) Heartbeat(ctx context.Context, instanceID string) error {
	u := fmt.Sprintf("%s/api/v1/registry/instances/%s/heartbeat", c.baseURL, url.PathEscape(instanceID))
	body, err := c.doer.Post(ctx, u, map[string]any{"sent_at": time.Now().UTC()})
	return remoteError(body, err)
}

// Deregister removes the instance from the remote registry.
func (c *Client) Deregister(ctx context.Context, instanceID string) error {
	u := fmt.Sprintf("%s/api/v1/registry/instances/%s/deregister", c.baseURL, url.PathEscape(instanceID))
	body, err := c.doer.Post(ctx, u, nil)
	return remoteError(body, err)
}

// Lookup fetches the registered instances of a service.
func (c *Client) Lookup(ctx context.Context, serviceName string, healthyOnly bool) ([]Registration, error) {
	u := fmt.Sprintf("%s/api/v1/registry/services/%s?healthy_only=%t",
		c.baseURL, url.PathEscape(serviceName), healthyOnly)

	body, err := c.doer.Get(ctx, u)
	if err != nil {
		return nil, remoteError(body, err)
	}

	var resp struct {
		Instances []Registration `json:"instances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.ConnectionFailed(c.baseURL, fmt.Errorf("decode lookup response: %w", err))
	}
	return resp.Instances, nil
}

// UpdateStatus is not exposed over HTTP; status transitions on the server are
// driven by heartbeats and the sweep.
func (c *Client) UpdateStatus(_ context.Context, instanceID string, _ Status) error {
	return errors.Validation(fmt.Sprintf("status of %q cannot be set remotely", instanceID))
}

// remoteError reconstructs the server's AppError from the response body when
// one is present. The transport layer classifies by status code only and would
// otherwise flatten a 409 DuplicateInstance into a generic rejection.
func remoteError(body []byte, err error) error {
	if err == nil {
		return nil
	}
	if len(body) > 0 {
		var resp errors.ErrorResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr == nil && resp.Error.Code != "" {
			return &errors.AppError{
				Code:       resp.Error.Code,
				Message:    resp.Error.Message,
				Retryable:  resp.Error.Retryable,
				HTTPStatus: errors.StatusOf(err),
				Details:    resp.Error.Details,
			}
		}
	}
	if _, ok := errors.AsAppError(err); ok {
		return err
	}
	return errors.Internal(err)
}

// Compile-time check.
var _ Registry = (*Client)(nil)
