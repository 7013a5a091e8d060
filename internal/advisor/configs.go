package advisor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Provider configurations. Keys come from the environment; an unset key
// leaves the provider unavailable, which the Advisor treats as a normal
// degraded state.

func ClaudeConfig() *ProviderConfig {
	return &ProviderConfig{
		Name:       "claude",
		Endpoint:   "https://api.anthropic.com/v1/messages",
		APIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		Model:      getEnvOr("CLAUDE_MODEL", "claude-sonnet-4-5-20250929"),
		AuthHeader: "x-api-key",
		ExtraHeaders: map[string]string{
			"anthropic-version": "2023-06-01",
		},
		BuildBody:     buildClaudeBody,
		ParseResponse: parseClaudeResponse,
	}
}

func OpenAIConfig() *ProviderConfig {
	return &ProviderConfig{
		Name:          "openai",
		Endpoint:      "https://api.openai.com/v1/chat/completions",
		APIKey:        os.Getenv("OPENAI_API_KEY"),
		Model:         getEnvOr("OPENAI_MODEL", "gpt-4o-mini"),
		AuthHeader:    "Authorization",
		AuthPrefix:    "Bearer ",
		BuildBody:     buildOpenAIBody,
		ParseResponse: parseOpenAIResponse,
	}
}

func GeminiConfig() *ProviderConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	model := getEnvOr("GEMINI_MODEL", "gemini-2.5-flash")

	return &ProviderConfig{
		Name:          "gemini",
		Endpoint:      "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":generateContent",
		APIKey:        apiKey,
		Model:         model,
		AuthHeader:    "x-goog-api-key",
		BuildBody:     buildGeminiBody,
		ParseResponse: parseGeminiResponse,
	}
}

func OllamaConfig() *ProviderConfig {
	endpoint := os.Getenv("OLLAMA_HOST")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &ProviderConfig{
		Name:          "ollama",
		Endpoint:      endpoint + "/api/generate",
		Model:         getEnvOr("OLLAMA_MODEL", "llama3.2"),
		KeyOptional:   true,
		BuildBody:     buildOllamaBody,
		ParseResponse: parseOllamaResponse,
	}
}

// DefaultProviders returns the standard provider set in fallback order.
// Ollama comes last: it reports available without a key, so earlier keyed
// providers would otherwise never be reached by the fallback scan.
func DefaultProviders() []Provider {
	return []Provider{
		NewHTTPProvider(ClaudeConfig()),
		NewHTTPProvider(OpenAIConfig()),
		NewHTTPProvider(GeminiConfig()),
		NewHTTPProvider(OllamaConfig()),
	}
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Request body builders ---

func buildClaudeBody(cfg *ProviderConfig, req Request) map[string]any {
	body := map[string]any{
		"model":       cfg.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": req.UserPrompt},
		},
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	return body
}

func buildOpenAIBody(cfg *ProviderConfig, req Request) map[string]any {
	messages := []map[string]string{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	return map[string]any{
		"model":       cfg.Model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages":    messages,
	}
}

func buildGeminiBody(cfg *ProviderConfig, req Request) map[string]any {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}
	return map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": req.MaxTokens,
			"temperature":     req.Temperature,
		},
	}
}

func buildOllamaBody(cfg *ProviderConfig, req Request) map[string]any {
	prompt := req.UserPrompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}
	return map[string]any{
		"model":  cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"num_predict": req.MaxTokens,
			"temperature": req.Temperature,
		},
	}
}

// --- Response parsers ---

func parseClaudeResponse(body []byte) (string, string, error) {
	var parsed struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", err
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, parsed.Model, nil
		}
	}
	return "", "", fmt.Errorf("no text block in claude response")
}

func parseOpenAIResponse(body []byte) (string, string, error) {
	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", err
	}
	if len(parsed.Choices) == 0 {
		return "", "", fmt.Errorf("no choices in openai response")
	}
	return parsed.Choices[0].Message.Content, parsed.Model, nil
}

func parseGeminiResponse(body []byte) (string, string, error) {
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		ModelVersion string `json:"modelVersion"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", "", fmt.Errorf("no candidates in gemini response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, parsed.ModelVersion, nil
}

func parseOllamaResponse(body []byte) (string, string, error) {
	var parsed struct {
		Model    string `json:"model"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", err
	}
	if parsed.Response == "" {
		return "", "", fmt.Errorf("empty ollama response")
	}
	return parsed.Response, parsed.Model, nil
}
