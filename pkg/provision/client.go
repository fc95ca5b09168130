// Package provision talks to a freshly started node over HTTP: it waits for
// the node to accept requests, uploads a license and sets built-in account
// passwords.
package provision

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// BootstrapUser is the account every request authenticates as.
const BootstrapUser = "elastic"

// Client is an HTTP client bound to one node.
type Client struct {
	// BaseURL is the node root, e.g. http://localhost:9200/.
	BaseURL string

	// HTTP is the underlying client.
	HTTP *http.Client

	// Poll controls WaitForReady.
	Poll PollConfig

	// OnRequest, when set, is called after every HTTP exchange. status is 0
	// when no response was received.
	OnRequest func(method, path string, status int, d time.Duration)

	session engine.Session
	logger  zerolog.Logger
}

// NewClient creates a client for host:port. An empty host means localhost.
func NewClient(host string, port int, logger zerolog.Logger) *Client {
	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	return &Client{
		BaseURL: fmt.Sprintf("http://%s/", net.JoinHostPort(host, strconv.Itoa(port))),
		HTTP:    &http.Client{},
		Poll:    DefaultPollConfig(),
		logger:  logger.With().Str("component", "provision").Logger(),
	}
}

// WithSession returns a copy of the client that reports progress to s.
func (c *Client) WithSession(s engine.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) progress(ticks int, msg string) {
	if c.session != nil && ticks > 0 {
		c.session.Progress(ticks, msg)
	}
}

func (c *Client) log(msg string) {
	if c.session != nil {
		c.session.Log(msg)
	}
	c.logger.Info().Msg(msg)
}

// do sends one request. A non-empty password adds Basic auth for the
// bootstrap user.
func (c *Client) do(ctx context.Context, method, path, password string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.BaseURL, "/")+"/"+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	if password != "" {
		req.Header.Set("Authorization", basicAuth(BootstrapUser, password))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if c.OnRequest != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.OnRequest(method, "/"+strings.TrimPrefix(stripQuery(path), "/"), status, time.Since(start))
	}
	return resp, err
}

func basicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// ensureSuccess fails on any non-2xx status, draining and closing the body.
func ensureSuccess(resp *http.Response, operation string) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return statusError(resp, operation)
}

func statusError(resp *http.Response, operation string) *engine.EngineError {
	return engine.NewPermanentError(
		fmt.Sprintf("Response status code does not indicate success: %d (%s).",
			resp.StatusCode, http.StatusText(resp.StatusCode)), nil).
		WithCode(engine.ErrCodeTaskFailed).
		WithOperation(operation).
		WithDetail("status", resp.StatusCode)
}
