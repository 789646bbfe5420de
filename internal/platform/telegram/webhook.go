package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxWebhookBody = 1 << 20 // 1MB

// serveWebhook runs the HTTP server that receives Telegram update
// notifications. The update is acknowledged immediately; the pipeline
// runs asynchronously so slow backend calls never trigger platform
// redelivery timeouts.
func (p *Platform) serveWebhook(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(p.cfg.WebhookPath, p.handleWebhook)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", p.cfg.WebhookPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	p.logger.Info("telegram webhook server starting",
		"port", p.cfg.WebhookPort,
		"path", p.cfg.WebhookPath,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		p.logger.Info("telegram webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("telegram webhook server: %w", err)
	}
}

func (p *Platform) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// Telegram echoes the secret configured with setWebhook in this
	// header; reject anything else before reading the body.
	if p.cfg.WebhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(p.cfg.WebhookSecret)) != 1 {
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		p.logger.Error("bad webhook body", "err", err, "body_len", len(body))
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	p.handleUpdate(update)

	rw.WriteHeader(http.StatusOK)
}
