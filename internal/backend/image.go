package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"relaybot/internal/domain"
)

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage renders a single image for the prompt and returns a
// reference to it. No conversation history is attached.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (domain.MediaRef, error) {
	jsonBody, err := json.Marshal(imageRequest{
		Model:  c.imageModel,
		Prompt: prompt,
		N:      1,
	})
	if err != nil {
		return domain.MediaRef{}, fmt.Errorf("marshal: %w", err)
	}

	resp, err := doWithRetry(ctx, c.client, c.maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/images/generations", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, c.logger)
	if err != nil {
		return domain.MediaRef{}, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.MediaRef{}, fmt.Errorf("image generation %d: %s", resp.StatusCode, string(respBody))
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.MediaRef{}, fmt.Errorf("decode: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return domain.MediaRef{}, fmt.Errorf("image generation returned no image")
	}

	return domain.MediaRef{URL: out.Data[0].URL}, nil
}
