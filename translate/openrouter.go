package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"talkify/domain"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel    = "gpt-3.5-turbo"

	defaultDetectTimeout    = 15 * time.Second
	defaultTranslateTimeout = 20 * time.Second
)

// ClientConfig carries the remote provider settings. Zero values fall back
// to the defaults above.
type ClientConfig struct {
	APIKey           string
	Endpoint         string
	Model            string
	Referer          string
	DetectTimeout    time.Duration
	TranslateTimeout time.Duration
}

// OpenRouterClient translates through an OpenAI-compatible chat-completions
// endpoint. Detection and translation are two independent remote calls, each
// under its own bounded timeout so a hung call cannot stall the delivery
// pipeline.
type OpenRouterClient struct {
	log        *slog.Logger
	httpClient *http.Client
	config     ClientConfig
	detector   LocalDetector
}

func NewOpenRouterClient(log *slog.Logger, config ClientConfig) *OpenRouterClient {
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.DetectTimeout <= 0 {
		config.DetectTimeout = defaultDetectTimeout
	}
	if config.TranslateTimeout <= 0 {
		config.TranslateTimeout = defaultTranslateTimeout
	}
	return &OpenRouterClient{
		log: log,
		// Per-call deadlines come from the request context.
		httpClient: &http.Client{},
		config:     config,
	}
}

// Translate resolves the source language, short-circuits same-language
// sends, and otherwise asks the model for a translation. The returned Result
// is always usable: on any failure it carries the original text verbatim with
// the best-known source guess, alongside the error describing the degradation.
func (c *OpenRouterClient) Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error) {
	resolved := sourceLang
	if sourceLang == Auto {
		resolved = c.detectLanguage(ctx, text)
	}

	// Same language: no-op translation, avoids a wasted round trip.
	if resolved == targetLang {
		return Result{TranslatedText: text, SourceLanguage: resolved, TargetLanguage: targetLang}, nil
	}

	fallback := Result{TranslatedText: text, SourceLanguage: resolved, TargetLanguage: targetLang}
	if c.config.APIKey == "" {
		return fallback, fmt.Errorf("no translation API key configured")
	}

	sourceName := LanguageName(resolved)
	targetName := LanguageName(targetLang)
	system := fmt.Sprintf(`You are an expert translator. Translate the given text from %s to %s.

Important:
- If the text is written in English letters but represents %s (transliterated), translate it to %s
- Provide only the translated text, no explanations or additional text
- Maintain the meaning and tone of the original message`,
		sourceName, targetName, sourceName, targetName)
	user := fmt.Sprintf("Translate this text to %s: %q", targetName, text)

	translated, err := c.complete(ctx, c.config.TranslateTimeout, system, user, 500)
	if err != nil {
		return fallback, fmt.Errorf("translation call failed: %w", err)
	}
	if translated == "" {
		return fallback, fmt.Errorf("no translation received from provider")
	}

	return Result{TranslatedText: translated, SourceLanguage: resolved, TargetLanguage: targetLang}, nil
}

// detectLanguage resolves a concrete source code for the text. Remote
// classification first, local trigram detection when the remote call fails,
// English as the last resort. Detection never fails the send.
func (c *OpenRouterClient) detectLanguage(ctx context.Context, text string) string {
	if c.config.APIKey == "" {
		return c.localDetect(text)
	}

	system := "You are a language detection expert. Identify the language of the given text " +
		"and respond with only the ISO 639-1 language code (e.g., 'en', 'hi', 'te', 'ta'). " +
		"If the text is in English letters but represents another language (like transliterated Telugu), " +
		"identify the actual language. Respond with only the language code, nothing else."
	user := fmt.Sprintf("What language is this text? %q", text)

	code, err := c.complete(ctx, c.config.DetectTimeout, system, user, 10)
	if err != nil {
		c.log.Warn("Remote language detection failed, falling back to local detector", "error", err)
		return c.localDetect(text)
	}

	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) < 2 || len(code) > 3 {
		return c.localDetect(text)
	}
	return code
}

func (c *OpenRouterClient) localDetect(text string) string {
	if code, ok := c.detector.Detect(text); ok {
		return code
	}
	return domain.DefaultLanguage
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete performs one bounded chat-completions call and returns the
// trimmed assistant content.
func (c *OpenRouterClient) complete(ctx context.Context, timeout time.Duration, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.config.Referer != "" {
		req.Header.Set("HTTP-Referer", c.config.Referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("malformed provider response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("provider response contains no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
