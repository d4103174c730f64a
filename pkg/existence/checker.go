package existence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Checker asks the owning service whether a subject exists.
type Checker interface {
	Check(ctx context.Context, id int64) (bool, error)
}

// StatusError is a non-2xx answer from the remote service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("existence check: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type existsResponse struct {
	Exists bool  `json:"exists"`
	UserID int64 `json:"userId"`
}

type httpChecker struct {
	client  *http.Client
	baseURL string
}

// NewHTTPChecker calls GET {baseURL}/users/{id}/exists.
func NewHTTPChecker(client *http.Client, baseURL string) Checker {
	return &httpChecker{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *httpChecker) Check(ctx context.Context, id int64) (bool, error) {
	url := c.baseURL + "/users/" + strconv.FormatInt(id, 10) + "/exists"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("existence check: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out existsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("existence check: decode response: %w", err)
	}
	return out.Exists, nil
}
