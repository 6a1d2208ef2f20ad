// Package health probes the /health endpoint of registered servers.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prober reports whether a host answers its health endpoint.
type Prober interface {
	Healthy(ctx context.Context, ip string, port int) bool
}

// Checker probes GET http://{ip}:{port}/health. Anything other than a
// 200 within the timeout counts as unhealthy.
type Checker struct {
	client *http.Client
}

// NewChecker returns a checker whose probes time out after timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{client: &http.Client{Timeout: timeout}}
}

func (c *Checker) Healthy(ctx context.Context, ip string, port int) bool {
	url := fmt.Sprintf("http://%s:%d/health", ip, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
