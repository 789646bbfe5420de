package main

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/backend"
	"relaybot/internal/config"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and backend reachability",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fmt.Println("config ok:", path)

	persona, err := config.LoadPersona(cfg.Bot.PersonaPath)
	if err != nil {
		return fmt.Errorf("persona: %w", err)
	}
	fmt.Printf("persona ok: %s (%d dummy answers)\n", cfg.Bot.PersonaPath, len(persona.DummyAnswers))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := backend.New(backend.Config{
		APIBase: cfg.Backend.APIBase,
		APIKey:  cfg.Backend.APIKey,
		Logger:  logger,
	})
	if err := client.Healthy(ctx); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	fmt.Println("backend ok:", cfg.Backend.APIBase)

	if cfg.Backend.PrivateAPIBase != "" {
		private := backend.New(backend.Config{
			APIBase: cfg.Backend.PrivateAPIBase,
			APIKey:  cfg.Backend.PrivateAPIKey,
			Logger:  logger,
		})
		if err := private.Healthy(ctx); err != nil {
			return fmt.Errorf("private backend: %w", err)
		}
		fmt.Println("private backend ok:", cfg.Backend.PrivateAPIBase)
	}

	return nil
}
