// Package oracle asks Claude for the chronology tags and placement hints
// the merge engines consume. Its answers are proposals: they go through
// the same validation as any hand-written tag or hint file.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/bookweave/internal/doctree"
	"github.com/dgallion1/bookweave/internal/proposal"
)

const defaultEndpoint = "https://api.anthropic.com/v1/messages"

// Client calls the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client

	// Stats, when set, receives the latency of every call.
	Stats *LLMStats
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint points the client at another Messages API URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		Stats: NewLLMStats(time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// TagPage asks for line-range chronology tags on one page. The page
// number and source id of the answer always come from the page asked
// about, never from the model.
func (c *Client) TagPage(ctx context.Context, src *doctree.Source, page *doctree.Page) (proposal.TaggedPage, error) {
	text, err := c.complete(ctx, TagPrompt(src, page))
	if err != nil {
		return proposal.TaggedPage{}, err
	}

	var tp proposal.TaggedPage
	if isArray(text) {
		err = json.Unmarshal([]byte(text), &tp.LineTags)
	} else {
		err = json.Unmarshal([]byte(text), &tp)
	}
	if err != nil {
		return proposal.TaggedPage{}, fmt.Errorf("parse tags json: %w (raw: %s)", err, truncate(text, 200))
	}
	tp.SourceID = src.ID
	tp.PageNumber = proposal.I(page.Number)
	for i := range tp.LineTags {
		tidyTag(&tp.LineTags[i])
	}
	return tp, nil
}

// PlacePage asks where each paragraph of a secondary page belongs in the
// base book. baseContext is the preview built by BaseContext.
func (c *Client) PlacePage(ctx context.Context, secondary *doctree.Source, page *doctree.Page, baseContext string) ([]proposal.Hint, error) {
	text, err := c.complete(ctx, PlacePrompt(secondary, page, baseContext))
	if err != nil {
		return nil, err
	}

	var set proposal.HintSet
	if isArray(text) {
		err = json.Unmarshal([]byte(text), &set.InsertionPoints)
	} else {
		err = json.Unmarshal([]byte(text), &set)
	}
	if err != nil {
		return nil, fmt.Errorf("parse hints json: %w (raw: %s)", err, truncate(text, 200))
	}
	for i := range set.InsertionPoints {
		set.InsertionPoints[i].SourcePage = proposal.I(page.Number)
		tidyHint(&set.InsertionPoints[i])
	}
	return set.InsertionPoints, nil
}

// complete sends one user message and returns the reply with any code
// fence removed.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.Stats != nil {
		failed := err
		if failed == nil && resp.StatusCode != http.StatusOK {
			failed = fmt.Errorf("status %d", resp.StatusCode)
		}
		c.Stats.Record(time.Since(start), failed)
	}
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 || strings.TrimSpace(apiResp.Content[0].Text) == "" {
		// An empty answer is worth asking again.
		return "", &RetryableError{StatusCode: resp.StatusCode, Message: "empty response from claude"}
	}

	return stripCodeBlock(apiResp.Content[0].Text), nil
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// isArray reports whether the model answered with a bare JSON list
// instead of the requested object.
func isArray(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "[")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
