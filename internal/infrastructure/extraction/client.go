package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cartly/backend/internal/domain"
)

// extractionPrompt is the fixed instruction sent with every receipt
// image. The model is told to answer with the items envelope and
// nothing else; parseItems still recovers from fenced or prose-wrapped
// answers because models drift.
const extractionPrompt = `You are a receipt parser. Extract every purchased line item from this receipt photo.
Respond with ONLY a JSON object of this exact shape, no prose and no markdown:
{"items":[{"name":"<product name as printed>","quantity":<integer>,"price":<unit price as number>,"barcode":"<digits if printed, else null>"}]}
Keep product names in their original language. Use null for missing fields.`

const maxAttempts = 3

// Client calls an OpenAI-compatible vision chat-completions endpoint to
// turn receipt photos into structured line items.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new extraction API client
func NewClient(apiKey, baseURL, model string) *Client {
	// Hosted vision APIs throttle aggressively; 1 req/sec with a small
	// burst keeps scans under every provider tier we run against.
	limiter := rate.NewLimiter(rate.Limit(1), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		rateLimiter: limiter,
	}
}

// SetDebug enables verbose request/response logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// chat-completions wire types, request side
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// itemsEnvelope is the shape the model is instructed to return
type itemsEnvelope struct {
	Items []domain.RawItem `json:"items"`
}

// ExtractItems sends a receipt image to the extraction API and returns
// the raw line-item records. An unreadable model answer yields zero
// items with a nil error; transport and API failures are returned after
// bounded retries.
func (c *Client) ExtractItems(ctx context.Context, image []byte) ([]domain.RawItem, error) {
	body, err := json.Marshal(c.buildRequest(image))
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/chat/completions", c.baseURL)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		respBody, status, err := c.doRequest(ctx, reqURL, body)
		if err != nil {
			if c.debug {
				log.Printf("[EXTRACT] Request error (attempt %d): %v", attempt, err)
			}
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}

		if status != http.StatusOK {
			if c.debug {
				log.Printf("[EXTRACT] API error (attempt %d) - Status: %d, Body: %s", attempt, status, string(respBody))
			}
			lastErr = fmt.Errorf("%w: status %d", domain.ErrExtractionFailure, status)
			c.backoff(ctx, attempt)
			continue
		}

		var chatResp chatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return nil, fmt.Errorf("%w: response carried no choices", domain.ErrExtractionFailure)
		}

		content := chatResp.Choices[0].Message.Content
		items, ok := parseItems(content)
		if !ok {
			// Zero items is the contract for unreadable answers; the
			// caller reports everything as not found instead of failing.
			log.Printf("[EXTRACT] Unparseable model answer, treating as zero items: %.120q", content)
			return []domain.RawItem{}, nil
		}

		if c.debug {
			log.Printf("[EXTRACT] Parsed %d line items", len(items))
		}
		return items, nil
	}

	return nil, lastErr
}

// buildRequest assembles the vision chat-completions payload with the
// fixed instruction prompt and the base64-inlined image.
func (c *Client) buildRequest(image []byte) chatRequest {
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	return chatRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: extractionPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
	}
}

// doRequest executes one HTTP POST and returns the response body and status
func (c *Client) doRequest(ctx context.Context, reqURL string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Cartly/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrExtractionFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}

// backoff sleeps before the next retry, respecting cancellation
func (c *Client) backoff(ctx context.Context, attempt int) {
	select {
	case <-time.After(exponentialBackoff(attempt)):
	case <-ctx.Done():
	}
}

// exponentialBackoff returns the wait before retrying after the given
// attempt: 500ms, 1s, 2s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return 500 * time.Millisecond << (attempt - 1)
}

// parseItems extracts the items envelope from a model answer. Tries the
// raw content, then a fenced code block, then the widest brace window.
func parseItems(content string) ([]domain.RawItem, bool) {
	for _, candidate := range jsonCandidates(content) {
		var env itemsEnvelope
		if err := json.Unmarshal([]byte(candidate), &env); err == nil && env.Items != nil {
			return env.Items, true
		}
	}
	return nil, false
}

// jsonCandidates lists substrings of the answer worth a parse attempt
func jsonCandidates(content string) []string {
	trimmed := strings.TrimSpace(content)
	candidates := []string{trimmed}

	if block := fencedBlock(trimmed); block != "" {
		candidates = append(candidates, block)
	}

	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	return candidates
}

// fencedBlock returns the body of the first ``` code fence, or ""
func fencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	// Skip a language tag like "json" on the fence line
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
