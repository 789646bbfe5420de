package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:       "info",
			LogFormat:      "text",
			EventTimeoutS:  90,
			MaxEventAgeMin: 10,
		},
		Bot: BotConfig{
			PersonaPath:        "~/.relaybot/persona.yaml",
			DrawTrigger:        "нарисуй",
			VoiceTrigger:       "скажи вслух",
			SmartMarker:        "подумай",
			Models: ModelsConfig{
				Regular: "gpt-4o-mini",
				Smart:   "gpt-4o",
				Vision:  "gpt-4o",
			},
			Voice:              "alloy",
			ContextDepth:       8,
			VisionContextDepth: 2,
			SmartThreshold:     6,
			LinkReactPercent:   30,
			ProgressDelayS:     5,
		},
		Backend: BackendConfig{
			APIBase:        "https://api.openai.com/v1",
			ImageModel:     "dall-e-3",
			SpeechModel:    "tts-1",
			MaxRetries:     3,
			TimeoutSeconds: 120,
			Temperature:    0.7,
		},
		Platforms: PlatformsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "MarkdownV2",
				Webhook: WebhookConfig{
					Enabled: true,
					Port:    8443,
					Path:    "/webhook/telegram",
				},
			},
		},
		Dedup: DedupConfig{
			Enabled:        true,
			DBPath:         "~/.relaybot/dedup.db",
			RetentionHours: 48,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Port:     9091,
			Endpoint: "/metrics",
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         false,
			IntervalMinutes: 10,
		},
	}
}
