package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Agentic-Trust-Layer/agentic-trust-sub001/internal/metrics"
)

// ValidationClient is an HTTP JSON client for the validation
// registry.
type ValidationClient struct {
	baseURL string
	client  *http.Client
}

func NewValidationClient(baseURL string) *ValidationClient {
	return &ValidationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ListPending returns validation requests awaiting a response from
// the given agent on the given chain.
func (c *ValidationClient) ListPending(ctx context.Context, agentID string, chainID int64) ([]PendingValidation, error) {
	u := fmt.Sprintf("%s/validations/pending?agent=%s&chainId=%d", c.baseURL, url.QueryEscape(agentID), chainID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("list pending validations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("validation registry returned %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var out struct {
		Pending []PendingValidation `json:"pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("decode pending validations: %w", err)
	}
	metrics.RegistryCalls.WithLabelValues("validation", "ok").Inc()
	return out.Pending, nil
}

// SubmitResponse posts a scored response for one pending request.
func (c *ValidationClient) SubmitResponse(ctx context.Context, vr ValidationResponse) (*ValidationReceipt, error) {
	body, err := json.Marshal(vr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/validations/respond", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("submit validation response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("validation registry returned %d: %s", resp.StatusCode, readBody(resp.Body))
	}

	var receipt ValidationReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		metrics.RegistryCalls.WithLabelValues("validation", "error").Inc()
		return nil, fmt.Errorf("decode validation receipt: %w", err)
	}
	metrics.RegistryCalls.WithLabelValues("validation", "ok").Inc()
	return &receipt, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
