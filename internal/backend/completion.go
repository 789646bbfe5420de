package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"relaybot/internal/domain"
)

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// oaiMessage carries either a plain string or a list of content parts
// (for vision requests) in Content.
type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
	Name    string `json:"name,omitempty"`
}

type oaiContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *oaiImagePart `json:"image_url,omitempty"`
}

type oaiImagePart struct {
	URL string `json:"url"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiChoice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Complete issues one chat completion for the composed context window.
func (c *Client) Complete(ctx context.Context, model, system string, turns []domain.ConversationTurn) (string, error) {
	msgs := make([]oaiMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, oaiMessage{Role: "system", Content: system})
	}
	for _, t := range turns {
		msgs = append(msgs, oaiMessage{
			Role:    string(t.Role),
			Content: t.Text,
			Name:    sanitizeName(t.SpeakerName),
		})
	}

	return c.chat(ctx, oaiRequest{Model: model, Messages: msgs})
}

// UnderstandImage asks a vision-capable model about an attached image.
// Prior turns are included as plain messages; the image and question
// travel as content parts of the final user message.
func (c *Client) UnderstandImage(ctx context.Context, model string, image domain.MediaRef, question string, turns []domain.ConversationTurn) (string, error) {
	if image.URL == "" {
		return "", fmt.Errorf("image understanding needs a fetchable image URL")
	}

	msgs := make([]oaiMessage, 0, len(turns)+2)
	for _, t := range turns {
		msgs = append(msgs, oaiMessage{
			Role:    string(t.Role),
			Content: t.Text,
			Name:    sanitizeName(t.SpeakerName),
		})
	}
	msgs = append(msgs, oaiMessage{
		Role: "user",
		Content: []oaiContentPart{
			{Type: "text", Text: question},
			{Type: "image_url", ImageURL: &oaiImagePart{URL: image.URL}},
		},
	})

	return c.chat(ctx, oaiRequest{Model: model, Messages: msgs})
}

func (c *Client) chat(ctx context.Context, body oaiRequest) (string, error) {
	if c.temperature > 0 {
		t := c.temperature
		body.Temperature = &t
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	resp, err := doWithRetry(ctx, c.client, c.maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, c.logger)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completion %d: %s", resp.StatusCode, string(respBody))
	}

	var out oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}

// sanitizeName reduces a display name to the character set the API
// accepts for message author labels. Returns empty when nothing
// survives, which omits the field.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
