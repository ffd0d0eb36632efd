package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quadrant-tasks/quadrant/internal/schema"
)

// DefaultTimeout bounds every remote call. A timeout is handled exactly
// like any other failure: the round skips and retries next interval.
const DefaultTimeout = 30 * time.Second

// Client talks to the remote task service. All requests carry the bearer
// token; any response other than 200 is a failure.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a remote client. An empty baseURL yields an
// unconfigured client: Configured reports false and the engine stays in
// local mode.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// Configured reports whether a remote endpoint is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s returned %d: %s", method, endpoint, resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

// GetTasks fetches the remote's full task list.
func (c *Client) GetTasks(ctx context.Context) ([]*schema.Task, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/tasks", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Tasks []json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode task list: %w", err)
	}

	tasks := make([]*schema.Task, 0, len(envelope.Tasks))
	for _, raw := range envelope.Tasks {
		t, err := DecodeTask(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode remote task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// PostTask uploads one task (upsert by id on the remote side).
func (c *Client) PostTask(ctx context.Context, t *schema.Task) error {
	_, err := c.do(ctx, http.MethodPost, "/api/tasks", EncodeTask(t))
	return err
}

// DeleteTask removes a task on the remote.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
