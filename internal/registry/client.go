package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotRegistered is returned when the backend answers anything but 200.
var ErrNotRegistered = errors.New("device not registered")

// Client asks the backend whether an IMEI may connect.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Lookup returns nil only for HTTP 200 on GET {base}/v1/api/devices/{imei}.
func (c *Client) Lookup(ctx context.Context, imei string) error {
	u := c.base + "/v1/api/devices/" + url.PathEscape(imei)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrNotRegistered, imei, resp.StatusCode)
	}
	return nil
}
