package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/inventory"
)

// Session is an authenticated connection to one target. The header carries
// whatever token the dialect handshake issued and is applied to every
// subsequent request.
type Session struct {
	kind    Kind
	baseURL string
	client  *http.Client
	header  http.Header
	target  inventory.Target
}

func (s *Session) Kind() Kind {
	return s.kind
}

func (s *Session) Target() inventory.Target {
	return s.target
}

func (s *Session) getJSON(ctx context.Context, path string, out any) error {
	resp, err := doRequest(ctx, s.client, http.MethodGet, s.baseURL+path, s.header, nil)
	if err != nil {
		return err
	}

	return decodeJSON(resp, out)
}

// StatusError reports a non-2xx response. The retry classifier inspects the
// status code to separate transient congestion from permanent rejection.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s from %s", e.Status, e.URL)
}

func newHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureTLS,
				MinVersion:         tls.VersionTLS12,
			},
		},
	}
}

// baseURLFor builds the request base for a target address. Consoles are
// reached over HTTPS unless the address already carries a scheme.
func baseURLFor(address string) string {
	addr := strings.TrimRight(strings.TrimSpace(address), "/")
	if strings.Contains(addr, "://") {
		return addr
	}

	return "https://" + addr
}

// doRequest sends a JSON request and returns the response for 2xx statuses.
// Any other status drains and closes the body and returns a StatusError.
func doRequest(ctx context.Context, client *http.Client, method, rawURL string, header http.Header, body any) (*http.Response, error) {
	var reader io.Reader

	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		drainClose(resp)

		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}

	return resp, nil
}

func decodeJSON(resp *http.Response, out any) error {
	defer drainClose(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errFactory.Wrap(ErrDecodeResponse, err)
	}

	return nil
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// fetchDetail retrieves one detail document. Both dialects address details by
// entity ID interpolated into the category path.
func fetchDetail(ctx context.Context, sess *Session, entity inventory.Entity, spec DetailSpec) (any, error) {
	path := fmt.Sprintf(spec.PathTemplate, url.PathEscape(entity.ID))

	var payload any
	if err := sess.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// IsTransient reports whether an error is worth retrying: network failures,
// timeouts, server-side errors and throttling. Everything else, including
// malformed responses and 4xx rejections, is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	return false
}
