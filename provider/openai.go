// Package provider implements a concrete translation capability over any
// OpenAI-compatible chat completions endpoint (OpenAI, Ollama, vLLM,
// other gateways). The model is asked to return a JSON object of the
// shape {language: {text: translation}}, which maps directly onto a
// translation table.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/langtab/langtab/table"
)

const (
	defaultTimeout     = 2 * time.Minute
	defaultTemperature = 0.3
	defaultMaxRetries  = 3
)

const systemPrompt = `You are a professional software localization translator.
You receive a JSON task with source texts, a source language, target
languages, and the existing translation table for context and consistent
terminology. Reply with ONLY a JSON object mapping each target language
code to an object mapping each source text to its translation. Preserve
placeholders like %s, %d and {name} exactly. No commentary, no markdown.`

// OpenAI calls an OpenAI-compatible chat completions API.
type OpenAI struct {
	// BaseURL is the API base, e.g. "https://api.openai.com/v1" or
	// "http://localhost:11434/v1". "/chat/completions" is appended if
	// not already present.
	BaseURL string
	// Model is the model identifier to request.
	Model string
	// APIKey is sent as a bearer token when non-empty. Local servers
	// typically need none.
	APIKey string
	// MaxRetries bounds retry attempts on 429 and 5xx responses.
	MaxRetries int

	client *http.Client
}

// NewOpenAI returns a provider for the given endpoint and model.
func NewOpenAI(baseURL, model, apiKey string) *OpenAI {
	return &OpenAI{
		BaseURL:    baseURL,
		Model:      model,
		APIKey:     apiKey,
		MaxRetries: defaultMaxRetries,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

// Translate sends one batch of texts for translation into every target
// language and parses the model's reply into a table scoped to those
// languages.
func (p *OpenAI) Translate(ctx context.Context, texts []string, from string, to []string, seed *table.Table) (*table.Table, error) {
	body, err := buildChatRequest(p.Model, texts, from, to, seed)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	respBody, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}

	content, err := extractContent(respBody)
	if err != nil {
		return nil, err
	}
	return parseTranslations(content, to)
}

// post sends the request with exponential backoff on 429 and 5xx.
func (p *OpenAI) post(ctx context.Context, body []byte) ([]byte, error) {
	endpoint := strings.TrimRight(p.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}
	client := p.client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("translation API request failed: %w", err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, nil
		case (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < p.MaxRetries:
			wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		default:
			return nil, fmt.Errorf("translation API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}
	}
}

// ---------------------------------------------------------------------------
// Request / response handling
// ---------------------------------------------------------------------------

func buildChatRequest(model string, texts []string, from string, to []string, seed *table.Table) ([]byte, error) {
	task := struct {
		Texts    []string                     `json:"texts"`
		From     string                       `json:"from"`
		To       []string                     `json:"to"`
		Existing map[string]map[string]string `json:"existing"`
	}{
		Texts:    texts,
		From:     from,
		To:       to,
		Existing: make(map[string]map[string]string),
	}
	if seed != nil {
		for _, lang := range seed.Languages() {
			task.Existing[lang] = seed.Entries(lang)
		}
	}
	userPrompt, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userPrompt)},
		},
		Temperature: defaultTemperature,
		Stream:      false,
	}
	return json.Marshal(req)
}

// extractContent pulls choices[0].message.content out of a chat
// completions response, surfacing API-level errors.
func extractContent(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("translation API error: %s", msg)
			}
		}
		return "", fmt.Errorf("translation API error: %v", errObj)
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}
	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseTranslations decodes the model's JSON reply into a table limited
// to the requested target languages.
func parseTranslations(content string, to []string) (*table.Table, error) {
	content = stripCodeFences(content)

	var m map[string]map[string]string
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return nil, fmt.Errorf("parsing model reply: %w", err)
	}

	wanted := make(map[string]bool, len(to))
	for _, lang := range to {
		wanted[lang] = true
	}

	t := table.New()
	for lang, entries := range m {
		if !wanted[lang] {
			continue
		}
		for key, value := range entries {
			t.Set(lang, key, value)
		}
	}
	return t, nil
}

// stripCodeFences removes a surrounding ``` or ```json fence, which some
// models add despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
