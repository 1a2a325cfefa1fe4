// Package client is the typed façade over the Flowdeck HTTP API. It is
// the single point of contact with the backend: every other component
// receives domain types from here and never talks to the network itself.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/flowdeck/flowdeck/internal/session"
)

// APIError is a non-success HTTP response normalized to the
// server-provided message, with a generic fallback when the body is not
// parseable JSON.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client wraps authenticated calls to a Flowdeck backend. The bearer
// token lives in the injected session store so it survives restarts and
// is cleared on logout.
type Client struct {
	baseURL string
	httpc   *http.Client
	session *session.Store
}

// New creates a Client for the given base URL (e.g. "http://localhost:8080").
// A nil session store means unauthenticated requests only.
func New(baseURL string, sess *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   http.DefaultClient,
		session: sess,
	}
}

// SetHTTPClient overrides the underlying transport (tests, timeouts).
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpc = hc }

// SetToken persists the bearer token for subsequent requests.
func (c *Client) SetToken(token string) error {
	if c.session == nil {
		return nil
	}
	return c.session.SetToken(token)
}

// Token returns the stored bearer token, or "".
func (c *Client) Token() string {
	if c.session == nil {
		return ""
	}
	return c.session.Token()
}

// Logout clears the stored bearer token.
func (c *Client) Logout() error {
	if c.session == nil {
		return nil
	}
	return c.session.ClearToken()
}

// newRequest builds an API request with auth and content-type headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// do issues a JSON request and decodes the JSON response into out (which
// may be nil). Non-2xx statuses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doMultipart uploads a single file field and decodes the JSON response.
func (c *Client) doMultipart(ctx context.Context, path, field, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the server-provided message from an error body.
// Both {"error": "..."} and {"message": "..."} shapes are accepted.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    "something went wrong",
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Error != "" {
			apiErr.Message = parsed.Error
		} else if parsed.Message != "" {
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}
