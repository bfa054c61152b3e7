// Package policy provides a client for the external escalation policy
// service. The service decides which admitted alerts are pushed to
// on-call responders on top of the normal alert feed.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halcyon-security/framewatch/pkg/messages"
)

// Client is a policy service API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new policy client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Decision represents a policy decision
type Decision struct {
	Escalate bool                   `json:"escalate"`
	Reasons  []string               `json:"reasons,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// QueryInput is the input for a policy query
type QueryInput struct {
	Input interface{} `json:"input"`
}

// QueryResult is the result of a policy query
type QueryResult struct {
	Result map[string]interface{} `json:"result"`
}

// Query evaluates a policy and returns the result
func (c *Client) Query(ctx context.Context, path string, input interface{}) (*QueryResult, error) {
	url := fmt.Sprintf("%s/v1/data/%s", c.baseURL, path)

	body, err := json.Marshal(QueryInput{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("policy service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// Decide evaluates a policy and returns a structured decision
func (c *Client) Decide(ctx context.Context, policyPath string, input interface{}) (*Decision, error) {
	result, err := c.Query(ctx, policyPath, input)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Metadata: make(map[string]interface{}),
	}

	if result.Result != nil {
		if escalate, ok := result.Result["escalate"].(bool); ok {
			decision.Escalate = escalate
		} else if escalate, ok := result.Result["allow"].(bool); ok {
			decision.Escalate = escalate
		}

		if reasons, ok := result.Result["reasons"].([]interface{}); ok {
			for _, r := range reasons {
				if s, ok := r.(string); ok {
					decision.Reasons = append(decision.Reasons, s)
				}
			}
		}

		decision.Metadata["raw_result"] = result.Result
	}

	return decision, nil
}

// ShouldEscalate asks the policy service whether an alert warrants paging.
// A service failure fails open to a severity-based default: high and
// critical alerts escalate, everything else does not.
func (c *Client) ShouldEscalate(ctx context.Context, alert *messages.Alert) (bool, error) {
	fallback := alert.Severity.Rank() >= messages.SeverityHigh.Rank()

	input := map[string]interface{}{
		"alert_type": alert.Type,
		"severity":   alert.Severity,
		"camera_id":  alert.CameraID,
		"metadata":   alert.Metadata,
	}

	decision, err := c.Decide(ctx, "framewatch/escalation", input)
	if err != nil {
		return fallback, fmt.Errorf("escalation policy unavailable: %w", err)
	}

	return decision.Escalate, nil
}

// Health checks if the policy service is healthy
func (c *Client) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("policy service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}
