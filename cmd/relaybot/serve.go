package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"relaybot/internal/backend"
	"relaybot/internal/config"
	"relaybot/internal/dedup"
	"relaybot/internal/domain"
	"relaybot/internal/heartbeat"
	"relaybot/internal/metrics"
	"relaybot/internal/platform/discord"
	"relaybot/internal/platform/telegram"
	"relaybot/internal/relay"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	logger = buildLogger(cfg)

	persona, err := config.LoadPersona(cfg.Bot.PersonaPath)
	if err != nil {
		return err
	}
	profile := relay.NewProfile(cfg, persona)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dedupStore *dedup.Store
	if cfg.Dedup.Enabled {
		dedupStore, err = dedup.NewStore(
			cfg.Dedup.DBPath,
			time.Duration(cfg.Dedup.RetentionHours)*time.Hour,
			logger,
		)
		if err != nil {
			return err
		}
		defer dedupStore.Close()
		go dedupStore.RunPurgeLoop(ctx, time.Hour)
	}

	regular := backend.New(backend.Config{
		APIBase:     cfg.Backend.APIBase,
		APIKey:      cfg.Backend.APIKey,
		ImageModel:  cfg.Backend.ImageModel,
		SpeechModel: cfg.Backend.SpeechModel,
		MaxRetries:  cfg.Backend.MaxRetries,
		Timeout:     time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
		Temperature: cfg.Backend.Temperature,
		Logger:      logger,
	})

	// A second deployment serves private chats when configured.
	var private domain.CompletionBackend
	if cfg.Backend.PrivateAPIBase != "" {
		private = backend.New(backend.Config{
			APIBase:     cfg.Backend.PrivateAPIBase,
			APIKey:      cfg.Backend.PrivateAPIKey,
			ImageModel:  cfg.Backend.ImageModel,
			SpeechModel: cfg.Backend.SpeechModel,
			MaxRetries:  cfg.Backend.MaxRetries,
			Timeout:     time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			Temperature: cfg.Backend.Temperature,
			Logger:      logger,
		})
	}

	var wg sync.WaitGroup
	var pingers []heartbeat.Pinger

	if cfg.Platforms.Telegram.Enabled {
		tg := telegram.New(telegram.Config{
			Token:          cfg.Platforms.Telegram.Token,
			ParseMode:      cfg.Platforms.Telegram.ParseMode,
			WebhookEnabled: cfg.Platforms.Telegram.Webhook.Enabled,
			WebhookPort:    cfg.Platforms.Telegram.Webhook.Port,
			WebhookPath:    cfg.Platforms.Telegram.Webhook.Path,
			WebhookSecret:  cfg.Platforms.Telegram.Webhook.SecretToken,
			EventTimeout:   time.Duration(cfg.General.EventTimeoutS) * time.Second,
			Dedup:          telegramDedup(dedupStore),
			Logger:         logger,
		})
		pingers = append(pingers, tg)

		orch := relay.NewOrchestrator(relay.OrchestratorConfig{
			Profile:        profile,
			Reader:         tg,
			Writer:         tg,
			Backend:        regular,
			PrivateBackend: private,
			Logger:         logger.With("platform", "telegram"),
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tg.Start(ctx, func(hctx context.Context, ev *domain.ChatEvent) {
				orch.HandleEvent(hctx, ev)
			}); err != nil {
				logger.Error("telegram platform stopped", "err", err)
				stop()
			}
		}()
	}

	if cfg.Platforms.Discord.Enabled {
		dc := discord.New(discord.Config{
			Token:        cfg.Platforms.Discord.Token,
			GuildID:      cfg.Platforms.Discord.GuildID,
			EventTimeout: time.Duration(cfg.General.EventTimeoutS) * time.Second,
			Logger:       logger,
		})
		pingers = append(pingers, dc)

		orch := relay.NewOrchestrator(relay.OrchestratorConfig{
			Profile:        profile,
			Reader:         dc,
			Writer:         dc,
			Backend:        regular,
			PrivateBackend: private,
			Logger:         logger.With("platform", "discord"),
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dc.Start(ctx, func(hctx context.Context, ev *domain.ChatEvent) {
				orch.HandleEvent(hctx, ev)
			}); err != nil {
				logger.Error("discord platform stopped", "err", err)
				stop()
			}
		}()
	}

	hb := heartbeat.New(heartbeat.Config{
		Enabled:  cfg.Heartbeat.Enabled,
		Interval: time.Duration(cfg.Heartbeat.IntervalMinutes) * time.Minute,
		Logger:   logger,
	}, pingers...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hb.Start(ctx)
	}()

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, cfg)
	}

	logger.Info("relay running",
		"telegram", cfg.Platforms.Telegram.Enabled,
		"discord", cfg.Platforms.Discord.Enabled,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

// telegramDedup narrows the optional store to the adapter's interface
// without handing a typed nil through.
func telegramDedup(store *dedup.Store) telegram.DedupStore {
	if store == nil {
		return nil
	}
	return store
}

func serveMetrics(ctx context.Context, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Metrics.Endpoint, metrics.Collector.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server starting", "port", cfg.Metrics.Port, "endpoint", cfg.Metrics.Endpoint)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server stopped", "err", err)
	}
}
