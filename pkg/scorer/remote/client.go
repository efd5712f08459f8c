// Package remote provides a scorer.Scorer backed by a model-serving HTTP
// endpoint.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"urlrisk/pkg/scorer"
	"urlrisk/pkg/serrors"
)

// Client asks a model server for the malicious-probability of a URL. It is
// safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs requests to the model server
	endpoint   string       // endpoint receives POST {"url": ...}
	token      string       // token is sent as Api-Key when not empty
}

// Score posts {"url": URL} and reads "probability_malicious" from the
// response. Transport errors, 429 and 5xx responses are reported as
// serrors.ErrUnavailable.
func (c *Client) Score(ctx context.Context, URL string) (float64, error) {
	type scoreReq struct {
		URL string `json:"url"`
	}
	bodyBytes, err := json.Marshal(scoreReq{URL: URL})
	if err != nil {
		return 0, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return 0, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Api-Key", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrUnavailable, err, "could not reach model server")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, serrors.Wrap(serrors.ErrUnavailable, err, "could not read response body")
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, serrors.With(serrors.ErrUnavailable, "rate limited (retry after %q): %s",
			resp.Header.Get("Retry-After"), strings.TrimSpace(string(b)))
	case resp.StatusCode >= 500:
		return 0, serrors.With(serrors.ErrUnavailable, "model server failed with %d: %s",
			resp.StatusCode, strings.TrimSpace(string(b)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, fmt.Errorf("score request rejected with %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	// successful
	var scoreResp struct {
		Probability *float64 `json:"probability_malicious"`
	}
	if err := json.Unmarshal(b, &scoreResp); err != nil {
		return 0, fmt.Errorf("could not decode response: %w", err)
	}
	if scoreResp.Probability == nil {
		return 0, fmt.Errorf("response has no probability_malicious")
	}

	return *scoreResp.Probability, nil
}

// Ensure Client conforms to the scorer.Scorer interface at compile time.
var _ scorer.Scorer = (*Client)(nil)

// New constructs a Client that posts to endpoint using httpClient.
func New(httpClient *http.Client, endpoint, token string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		token:      token,
	}
}
