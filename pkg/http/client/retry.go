package client

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// retryTransport resends a request that failed on a dead pooled connection.
// Retries are immediate. Once they run out, idle connections are dropped and
// one last attempt goes out on a fresh connection.
type retryTransport struct {
	base       http.RoundTripper
	transport  *http.Transport // nil when base is not an *http.Transport
	maxRetries int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; attempt <= t.maxRetries; {
		resp, err := t.send(req, attempt)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrConnExpired) {
			continue
		}
		if !isRetryableError(err) {
			return nil, err
		}
		attempt++
	}

	if t.transport != nil {
		t.transport.CloseIdleConnections()
	}
	return t.send(req, t.maxRetries+1)
}

func (t *retryTransport) send(req *http.Request, attempt int) (*http.Response, error) {
	if attempt == 0 {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return t.base.RoundTrip(clone)
}

var retryableErrors = []error{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ENETUNREACH,
	syscall.EPIPE,
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
}

// isRetryableError reports connection-level failures typical of a pod going away.
func isRetryableError(err error) bool {
	for _, target := range retryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
