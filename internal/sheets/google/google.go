package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tablero/internal/core"
	ports "tablero/internal/sheets"
)

// ValueInputOption makes the sheet parse appended values as if typed.
const ValueInputOption = "USER_ENTERED"

type Client struct {
	svc  *gsheet.Service
	mode AuthMode
	// pool carries service account traffic; API key requests use the
	// library's own transport.
	pool *http.Client
}

// Ensure interface conformance
var _ ports.Boundary = (*Client)(nil)

// New creates a Sheets client for the resolved credential. Extra options
// are appended after the credential options.
func New(ctx context.Context, auth Auth, opts ...goption.ClientOption) (*Client, error) {
	if auth == nil {
		return nil, &core.ConfigurationError{Missing: []string{EnvServiceAccountEmail, EnvPrivateKey, EnvAPIKey}}
	}
	pool := newHTTPClientWithPooling()
	authOpts, err := auth.clientOptions(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("build %s credentials: %w", auth.Mode(), err)
	}

	svc, err := gsheet.NewService(ctx, append(authOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "auth_mode", auth.Mode())
	return &Client{svc: svc, mode: auth.Mode(), pool: pool}, nil
}

// Mode reports which credential variant the client uses.
func (c *Client) Mode() AuthMode { return c.mode }

// Close drops the idle pooled connections. The client stays usable.
func (c *Client) Close() error {
	if c.pool != nil {
		c.pool.CloseIdleConnections()
	}
	return nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API
// with connection pooling, timeouts and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) ReadValues(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", rng, describeAPIError(err))
	}
	return valuesToStrings(resp.Values), nil
}

func (c *Client) AppendValues(ctx context.Context, spreadsheetID, rng string, row []string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{toInterfaces(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption(ValueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append values %s: %w", rng, describeAPIError(err))
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

// describeAPIError surfaces the status and message of a Sheets API error
// while keeping the original error in the chain.
func describeAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("sheets api status %d: %s: %w", gerr.Code, gerr.Message, err)
	}
	return err
}
