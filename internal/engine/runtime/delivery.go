package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Deliverer posts a built message to a destination endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, url, protocol string, body []byte) error
}

// HTTPDeliverer posts messages over plain HTTP. FHIR payloads go out as
// application/json, HL7 as text/plain.
type HTTPDeliverer struct {
	client *http.Client
}

// NewHTTPDeliverer returns a deliverer whose requests time out after
// timeout.
func NewHTTPDeliverer(timeout time.Duration) *HTTPDeliverer {
	return &HTTPDeliverer{client: &http.Client{Timeout: timeout}}
}

// Deliver posts body to url. Only 200 and 201 count as accepted; any
// other status is an error carrying the status code and response body
// so the gateway can report it per route.
func (d *HTTPDeliverer) Deliver(ctx context.Context, url, protocol string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	if protocol == ProtocolHL7 {
		req.Header.Set("Content-Type", "text/plain")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("destination %s returned %d: %s", url, resp.StatusCode, string(respBody))
}
