package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nmehta6/jobforge/pkg/models"
)

// WebhookExecutor dispatches a job to a domain service over HTTP. The service
// receives the job identity, performs the actual sync/workflow/notebook work,
// and reports row counts back. Non-2xx responses become StatusErrors so the
// retry policy can classify them.
type WebhookExecutor struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewWebhookExecutor creates an executor posting to baseURL/execute.
func NewWebhookExecutor(name, baseURL string, timeout time.Duration) *WebhookExecutor {
	return &WebhookExecutor{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *WebhookExecutor) Name() string { return e.name }

type webhookRequest struct {
	JobID      string `json:"job_id"`
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
	SpaceID    string `json:"space_id"`
	Attempt    int    `json:"attempt"`
}

func (e *WebhookExecutor) Execute(ctx context.Context, job *models.Job) (*Result, error) {
	body, err := json.Marshal(webhookRequest{
		JobID:      job.ID.String(),
		Type:       job.Type,
		ResourceID: job.ResourceID.String(),
		SpaceID:    job.SpaceID.String(),
		Attempt:    job.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := e.baseURL + "/execute"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		// Transport errors (timeouts, resets, DNS) are wrapped with %w so the
		// retry policy still reaches the underlying net error via errors.As.
		return nil, fmt.Errorf("calling %s executor: %w", e.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding %s executor response: %w", e.name, err)
	}
	return &result, nil
}

var _ Executor = (*WebhookExecutor)(nil)
