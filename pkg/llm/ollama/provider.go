// Package ollama implements ports.Generator against an Ollama server's chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// DefaultBaseURL is where a local Ollama listens.
const DefaultBaseURL = "http://localhost:11434"

type Provider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ ports.Generator = (*Provider)(nil)

func NewProvider(baseURL, modelName string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// Generate sends the prompt as one non-streaming chat call. A Schema on the
// prompt switches the server into JSON mode and is appended to the system text.
func (p *Provider) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	messages := make([]chatMessage, 0, len(prompt.Messages)+1)

	system := prompt.System
	if prompt.Schema != "" {
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON object matching this schema:\n" + prompt.Schema)
	}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for _, msg := range prompt.Messages {
		messages = append(messages, chatMessage{Role: string(msg.Role()), Content: msg.Content()})
	}

	payload := chatRequest{
		Model:    p.ModelName,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: prompt.Temperature},
	}
	if prompt.Schema != "" {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Message.Content, nil
}
