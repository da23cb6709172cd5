package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// GetJSON issues a GET through d and decodes a 2xx body into dst.
func GetJSON(ctx context.Context, d Doer, url, serviceName string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create GET request: %w", err)
	}
	return doJSON(ctx, d, req, serviceName, dst)
}

// PostJSON encodes body as JSON, POSTs it through d and decodes a 2xx body
// into dst. dst may be nil when the response body is not needed.
func PostJSON(ctx context.Context, d Doer, url, serviceName string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(ctx, d, req, serviceName, dst)
}

func doJSON(ctx context.Context, d Doer, req *http.Request, serviceName string, dst any) error {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return TransportError(err, serviceName)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", serviceName, err)
	}
	return nil
}
