package oracle

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

// Classifier sends a prompt to a language model and returns its reply.
type Classifier interface {
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	System      string  // System prompt (optional)
	Temperature float64 // 0 = deterministic
	JSON        bool    // Ask the provider for a JSON object
}

// ClassifierConfig selects and configures a provider.
type ClassifierConfig struct {
	Provider string // "ollama" | "openai" | "" (disabled)
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewClassifier builds the configured provider. An empty provider returns
// (nil, nil): classification is disabled.
func NewClassifier(cfg ClassifierConfig) (Classifier, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaClassifier(cfg.BaseURL, cfg.Model, timeout), nil
	case "openai":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires an API key (OPENAI_API_KEY) or a base URL")
		}
		return NewOpenAIClassifier(cfg.BaseURL, cfg.APIKey, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q (supported: ollama, openai)", cfg.Provider)
	}
}

// --- Ollama Provider ---

// OllamaClassifier uses a local Ollama instance.
type OllamaClassifier struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClassifier creates a classifier using Ollama's generate API.
// Default model: llama3.1.
func NewOllamaClassifier(baseURL, model string, timeout time.Duration) *OllamaClassifier {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	return &OllamaClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClassifier) Name() string { return "ollama/" + c.model }

func (c *OllamaClassifier) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	req := ollamaRequest{
		Model:   c.model,
		Prompt:  prompt,
		System:  opts.System,
		Options: map[string]any{"temperature": opts.Temperature},
	}
	if opts.JSON {
		req.Format = "json"
	}
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}
	return strings.TrimSpace(result.Response), nil
}

// --- OpenAI-compatible Provider ---

// OpenAIClassifier uses any OpenAI-compatible chat completions API.
type OpenAIClassifier struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openaiMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIClassifier creates a classifier using an OpenAI-compatible API.
func NewOpenAIClassifier(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClassifier {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClassifier) Name() string { return "openai/" + c.model }

func (c *OpenAIClassifier) Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error) {
	messages := make([]openaiMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: opts.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: prompt})

	req := openaiChatRequest{Model: c.model, Messages: messages, Temperature: opts.Temperature}
	if opts.JSON {
		req.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, string(b))
	}

	var result openaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("openai error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
