package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for the relay. Loaded once at
// startup, validated, and never mutated afterwards.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Bot       BotConfig       `json:"bot"`
	Backend   BackendConfig   `json:"backend"`
	Platforms PlatformsConfig `json:"platforms"`
	Dedup     DedupConfig     `json:"dedup"`
	Metrics   MetricsConfig   `json:"metrics"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

type GeneralConfig struct {
	LogLevel       string `json:"logLevel"`  // debug | info | warn | error
	LogFormat      string `json:"logFormat"` // text | json
	EventTimeoutS  int    `json:"eventTimeoutSeconds"`
	MaxEventAgeMin int    `json:"maxEventAgeMinutes"` // older events are ignored
}

// BotConfig drives the decision pipeline: who the bot answers, how it
// is addressed, and which models it speaks with.
type BotConfig struct {
	Aliases      FlexStringList `json:"aliases"`    // bot names, matched case-insensitively
	AllowChats   FlexInt64List  `json:"allowChats"` // chat IDs permitted to receive responses
	PersonaPath  string         `json:"personaPath"`
	DrawTrigger  string         `json:"drawTrigger"`  // leading keyword for image generation
	VoiceTrigger string         `json:"voiceTrigger"` // leading keyword for spoken replies
	SmartMarker  string         `json:"smartMarker"`  // explicit deeper-reasoning marker

	Models ModelsConfig `json:"models"`
	Voice  string       `json:"voice"` // TTS voice identifier

	ContextDepth       int `json:"contextDepth"`       // reply-chain walk bound
	VisionContextDepth int `json:"visionContextDepth"` // history bound for image understanding
	SmartThreshold     int `json:"smartThreshold"`     // thread length that flips to the smart model

	LinkReactPercent int `json:"linkReactPercent"` // chance of a filler reaction to link-only posts
	ProgressDelayS   int `json:"progressDelaySeconds"` // 0 disables "still thinking" notices
}

type ModelsConfig struct {
	Regular string `json:"regular"`
	Smart   string `json:"smart,omitempty"`
	Private string `json:"private,omitempty"` // override for one-to-one chats
	Vision  string `json:"vision,omitempty"`
}

// BackendConfig configures the generative backend client. PrivateAPIBase
// and PrivateAPIKey point private-chat traffic at a separate deployment
// when set.
type BackendConfig struct {
	APIBase        string  `json:"apiBase"`
	APIKey         string  `json:"apiKey"`
	PrivateAPIBase string  `json:"privateApiBase,omitempty"`
	PrivateAPIKey  string  `json:"privateApiKey,omitempty"`
	ImageModel     string  `json:"imageModel,omitempty"`
	SpeechModel    string  `json:"speechModel,omitempty"`
	MaxRetries     int     `json:"maxRetries"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
	Temperature    float64 `json:"temperature"`
}

type PlatformsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool          `json:"enabled"`
	Token     string        `json:"token"`
	ParseMode string        `json:"parseMode"`
	Webhook   WebhookConfig `json:"webhook"`
}

// WebhookConfig configures HTTP ingestion of platform updates. When
// disabled the Telegram adapter falls back to long polling.
type WebhookConfig struct {
	Enabled     bool   `json:"enabled"`
	Port        int    `json:"port"`
	Path        string `json:"path"`
	SecretToken string `json:"secretToken,omitempty"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"`
}

type DedupConfig struct {
	Enabled        bool   `json:"enabled"`
	DBPath         string `json:"dbPath"`
	RetentionHours int    `json:"retentionHours"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Port     int    `json:"port"`
	Endpoint string `json:"endpoint"`
}

type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays
// containing both strings and numbers, and from a single
// comma-separated string (the shape env-driven configs tend to take).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*f = out
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// FlexInt64List is a []int64 that accepts JSON numbers, numeric
// strings, and a single comma-separated string. Malformed entries are
// a load-time error, not a silent skip.
type FlexInt64List []int64

func (f *FlexInt64List) UnmarshalJSON(data []byte) error {
	var ss FlexStringList
	if err := ss.UnmarshalJSON(data); err != nil {
		return err
	}
	result := make([]int64, 0, len(ss))
	for _, s := range ss {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", s, err)
		}
		result = append(result, id)
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.relaybot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relaybot"
	}
	return filepath.Join(home, ".relaybot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Bot.PersonaPath = ExpandPath(cfg.Bot.PersonaPath)
	cfg.Dedup.DBPath = ExpandPath(cfg.Dedup.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is
// unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the config before the first event is processed.
// Anything malformed is rejected here, not per-event.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "general.logFormat must be one of: text, json")
	}
	if cfg.General.EventTimeoutS < 1 {
		errs = append(errs, "general.eventTimeoutSeconds must be >= 1")
	}

	if len(cfg.Bot.AllowChats) == 0 {
		errs = append(errs, "bot.allowChats must list at least one chat id")
	}
	if len(cfg.Bot.Aliases) == 0 {
		errs = append(errs, "bot.aliases must list at least one name")
	}
	if cfg.Bot.PersonaPath == "" {
		errs = append(errs, "bot.personaPath is required")
	}
	if cfg.Bot.Models.Regular == "" {
		errs = append(errs, "bot.models.regular is required")
	}
	if cfg.Bot.ContextDepth < 1 {
		errs = append(errs, "bot.contextDepth must be >= 1")
	}
	if cfg.Bot.VisionContextDepth < 0 || cfg.Bot.VisionContextDepth > cfg.Bot.ContextDepth {
		errs = append(errs, "bot.visionContextDepth must be between 0 and bot.contextDepth")
	}
	if cfg.Bot.LinkReactPercent < 0 || cfg.Bot.LinkReactPercent > 100 {
		errs = append(errs, "bot.linkReactPercent must be between 0 and 100")
	}

	if cfg.Backend.APIKey == "" {
		errs = append(errs, "backend.apiKey is required")
	}
	if cfg.Backend.MaxRetries < 0 || cfg.Backend.MaxRetries > 10 {
		errs = append(errs, "backend.maxRetries must be between 0 and 10")
	}
	if cfg.Backend.PrivateAPIBase != "" && cfg.Backend.PrivateAPIKey == "" {
		errs = append(errs, "backend.privateApiKey is required when privateApiBase is set")
	}

	if !cfg.Platforms.Telegram.Enabled && !cfg.Platforms.Discord.Enabled {
		errs = append(errs, "at least one platform must be enabled")
	}
	if cfg.Platforms.Telegram.Enabled && cfg.Platforms.Telegram.Token == "" {
		errs = append(errs, "platforms.telegram.token is required when telegram is enabled")
	}
	if cfg.Platforms.Discord.Enabled && cfg.Platforms.Discord.Token == "" {
		errs = append(errs, "platforms.discord.token is required when discord is enabled")
	}
	if p := cfg.Platforms.Telegram.Webhook.Port; p < 0 || p > 65535 {
		errs = append(errs, "platforms.telegram.webhook.port must be between 0 and 65535")
	}

	if cfg.Dedup.Enabled && cfg.Dedup.DBPath == "" {
		errs = append(errs, "dedup.dbPath is required when dedup is enabled")
	}
	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
