// Package backend implements domain.CompletionBackend against any
// OpenAI-compatible API: chat completions, image generation, vision
// understanding, and speech synthesis. The retry policy lives here, not
// in the orchestrator.
package backend

import (
	"log/slog"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// Config configures a backend client. A second client with its own
// base URL and key serves private-deployment traffic.
type Config struct {
	APIBase     string
	APIKey      string
	ImageModel  string
	SpeechModel string
	MaxRetries  int
	Timeout     time.Duration
	Temperature float64
	Logger      *slog.Logger
}

// Client is a typed HTTP wrapper over an OpenAI-compatible API.
type Client struct {
	apiBase     string
	apiKey      string
	imageModel  string
	speechModel string
	maxRetries  int
	temperature float64
	client      *http.Client
	logger      *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "tts-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiBase:     cfg.APIBase,
		apiKey:      cfg.APIKey,
		imageModel:  cfg.ImageModel,
		speechModel: cfg.SpeechModel,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		client:      sharedHTTPClient(cfg.Timeout),
		logger:      cfg.Logger,
	}
}
