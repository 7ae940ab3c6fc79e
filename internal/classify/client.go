package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Oracle assigns semantic roles to spreadsheet columns. Implementations
// return exactly one mapping entry per input column.
type Oracle interface {
	ClassifyColumns(ctx context.Context, samples []ColumnSample) (*Mapping, error)
}

// Client classifies columns using an OpenRouter-compatible chat
// completions API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	referer    string
	title      string
}

// Config holds oracle client configuration.
type Config struct {
	APIKey    string
	Model     string // e.g., "openai/gpt-4.1"
	BaseURL   string // Default: https://openrouter.ai/api/v1
	MaxTokens int
	Timeout   time.Duration
	Referer   string
	Title     string
}

// NewClient creates a new classification client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}

	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4.1"
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		referer:    cfg.Referer,
		title:      cfg.Title,
	}, nil
}

// chatRequest represents a chat completions API request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage is a single chat message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the API response.
type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

// chatChoice is a single completion choice.
type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// apiError represents an API-level error payload.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// ClassifyColumns sends the column samples to the oracle and parses its
// response into a Mapping. A single attempt is made: contract violations
// surface as *ParseError or *SchemaError and are not retried here.
func (c *Client) ClassifyColumns(ctx context.Context, samples []ColumnSample) (*Mapping, error) {
	if len(samples) == 0 {
		return &Mapping{}, nil
	}

	userPrompt, err := buildUserPrompt(samples)
	if err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
		MaxTokens:   c.maxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return nil, fmt.Errorf("API error: %s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, &ParseError{Msg: "response contained no choices"}
	}

	mapping, err := parseMapping(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if err := validateMapping(mapping, samples); err != nil {
		return nil, err
	}

	return mapping, nil
}

// Model returns the model being used.
func (c *Client) Model() string {
	return c.model
}

// parseMapping extracts and parses the JSON mapping from the oracle's
// textual response. The oracle may wrap the JSON in markdown fences or
// surround it with prose; only the outermost object is parsed.
func parseMapping(content string) (*Mapping, error) {
	content = strings.TrimSpace(content)

	// Remove markdown code blocks if present
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Find JSON object boundaries
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, &ParseError{Msg: "no JSON object found in response"}
	}

	var mapping Mapping
	if err := json.Unmarshal([]byte(content[start:end+1]), &mapping); err != nil {
		return nil, &ParseError{Msg: "invalid JSON in response", Err: err}
	}

	return &mapping, nil
}

// validateMapping enforces the classification contract against the request:
// every requested column exactly once, no invented columns, roles and
// stages inside their closed sets, confidence in [0, 1].
func validateMapping(m *Mapping, samples []ColumnSample) error {
	requested := make(map[string]bool, len(samples))
	for _, s := range samples {
		requested[s.ColumnName] = true
	}

	seen := make(map[string]bool, len(m.Columns))
	for _, col := range m.Columns {
		if !requested[col.ColumnName] {
			return &SchemaError{Msg: fmt.Sprintf("response contains unknown column %q", col.ColumnName)}
		}
		if seen[col.ColumnName] {
			return &SchemaError{Msg: fmt.Sprintf("column %q appears more than once", col.ColumnName)}
		}
		seen[col.ColumnName] = true

		if !validRoles[col.Role] {
			return &SchemaError{Msg: fmt.Sprintf("column %q has invalid role %q", col.ColumnName, col.Role)}
		}
		if col.Stage != "" && !IsCanonicalStage(col.Stage) {
			return &SchemaError{Msg: fmt.Sprintf("column %q has non-canonical stage %q", col.ColumnName, col.Stage)}
		}
		switch col.DateType {
		case "", DatePlanned, DateActual, DateUnknown:
		default:
			return &SchemaError{Msg: fmt.Sprintf("column %q has invalid date_type %q", col.ColumnName, col.DateType)}
		}
		if col.Confidence < 0 || col.Confidence > 1 {
			return &SchemaError{Msg: fmt.Sprintf("column %q has confidence %g outside [0, 1]", col.ColumnName, col.Confidence)}
		}
	}

	for name := range requested {
		if !seen[name] {
			return &SchemaError{Msg: fmt.Sprintf("column %q missing from response", name)}
		}
	}

	return nil
}

// MockOracle provides a deterministic oracle for tests and offline runs.
type MockOracle struct {
	Mapping     *Mapping
	Err         error
	Calls       int
	LastSamples []ColumnSample
}

// ClassifyColumns returns the configured mapping or error. When neither is
// set, every column is classified as ignore.
func (m *MockOracle) ClassifyColumns(ctx context.Context, samples []ColumnSample) (*Mapping, error) {
	m.Calls++
	m.LastSamples = samples
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Mapping != nil {
		return m.Mapping, nil
	}

	mapping := &Mapping{Columns: make([]ColumnMapping, 0, len(samples))}
	for _, s := range samples {
		mapping.Columns = append(mapping.Columns, ColumnMapping{
			ColumnName: s.ColumnName,
			Role:       RoleIgnore,
			Confidence: 1,
		})
	}
	return mapping, nil
}

// Ensure implementations satisfy interface.
var (
	_ Oracle = (*Client)(nil)
	_ Oracle = (*MockOracle)(nil)
)
