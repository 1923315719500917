// Package openai implements model.Caller against the OpenAI Responses API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
)

const (
	// DefaultBaseURL is the public OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultKeyEnv is the environment variable the API key is read from.
	DefaultKeyEnv = "OPENAI_API_KEY"

	providerName = "openai"
	// maxErrorBody bounds how much of a failed response body is kept in the error.
	maxErrorBody = 512
)

// Client calls the /responses endpoint. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.BaseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sets the bearer token explicitly.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.APIKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout bounds each HTTP request. Zero means no timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.HTTPClient = &http.Client{Timeout: d} }
}

// NewClient creates a Client. When no key is supplied through options it is
// read from OPENAI_API_KEY; a missing key surfaces as a fatal error on the
// first call, not here.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv(DefaultKeyEnv)
	}
	return c
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoningParams struct {
	Effort string `json:"effort,omitempty"`
}

type textParams struct {
	Verbosity string `json:"verbosity,omitempty"`
}

type responsesRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions,omitempty"`
	Input        []inputMessage   `json:"input"`
	Reasoning    *reasoningParams `json:"reasoning,omitempty"`
	Text         *textParams      `json:"text,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentItem `json:"content"`
}

type responsesResponse struct {
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func buildRequest(req model.Request) responsesRequest {
	input := make([]inputMessage, 0, len(req.Input))
	for _, m := range req.Input {
		input = append(input, inputMessage{Role: m.Role, Content: m.Content})
	}
	out := responsesRequest{
		Model:        req.Options.ModelID,
		Instructions: req.Instructions,
		Input:        input,
	}
	if req.Options.Reasoning != "" {
		out.Reasoning = &reasoningParams{Effort: req.Options.Reasoning}
	}
	if req.Options.Verbosity != "" {
		out.Text = &textParams{Verbosity: req.Options.Verbosity}
	}
	return out
}

// Complete implements model.Caller.
func (c *Client) Complete(ctx context.Context, req model.Request) (string, error) {
	if c.APIKey == "" {
		return "", errors.Fatal("no API key configured", errors.ErrMissingAPIKey).WithProvider(providerName)
	}

	data, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", errors.Fatal("failed to encode request", err).WithProvider(providerName)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/responses", bytes.NewReader(data))
	if err != nil {
		return "", errors.Fatal("failed to build request", err).WithProvider(providerName)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", errors.Transient("request failed", err).WithProvider(providerName)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Transient("failed to read response", err).WithProvider(providerName)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", classifyStatus(resp.StatusCode, body)
	}

	var parsed responsesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Transient("failed to decode response", err).
			WithProvider(providerName).WithStatusCode(resp.StatusCode)
	}

	text := extractText(parsed)
	if text == "" {
		return "", errors.Transient("no text in response", errors.ErrEmptyResponse).WithProvider(providerName)
	}
	return text, nil
}

// classifyStatus maps a non-2xx response to a classified ModelError.
func classifyStatus(status int, body []byte) *errors.ModelError {
	msg := errorMessage(status, body)
	var err *errors.ModelError
	if isTransientStatus(status) {
		err = errors.Transient(msg, nil)
	} else {
		err = errors.Fatal(msg, nil)
	}
	return err.WithProvider(providerName).WithStatusCode(status)
}

func isTransientStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func errorMessage(status int, body []byte) string {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return text
}

// extractText prefers the aggregated output_text field and falls back to
// concatenating every output_text content part.
func extractText(resp responsesResponse) string {
	if text := strings.TrimSpace(resp.OutputText); text != "" {
		return text
	}
	var sb strings.Builder
	for _, item := range resp.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
