package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is the plumbing shared by the provider clients: one HTTP client,
// one circuit breaker, JSON-in/JSON-out POSTs with provider-specific headers.
type apiClient struct {
	name    string
	http    *http.Client
	breaker *CircuitBreaker
	timeout time.Duration
	headers map[string]string
}

func newAPIClient(name string, timeout time.Duration, headers map[string]string) *apiClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &apiClient{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		breaker: NewCircuitBreaker(),
		timeout: timeout,
		headers: headers,
	}
}

// postJSON marshals payload, POSTs it to url through the circuit breaker, and
// decodes the response body into out.
func (a *apiClient) postJSON(ctx context.Context, url string, payload, out interface{}) error {
	_, err := a.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, a.post(ctx, url, payload, out)
	})
	if errors.Is(err, ErrCircuitOpen) {
		return fmt.Errorf("%s circuit breaker open: %w", a.name, err)
	}
	return err
}

func (a *apiClient) post(ctx context.Context, url string, payload, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", a.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", a.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", a.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", a.name, resp.StatusCode, string(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", a.name, err)
	}
	return nil
}
