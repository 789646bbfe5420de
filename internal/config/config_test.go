package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFlexStringListShapes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`["bot","бот"]`, []string{"bot", "бот"}},
		{`"bot, бот"`, []string{"bot", "бот"}},
		{`"bot"`, []string{"bot"}},
		{`[42, "bot"]`, []string{"42", "bot"}},
		{`""`, []string{}},
	}
	for _, tc := range cases {
		var got FlexStringList
		if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("unmarshal %s = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("unmarshal %s = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}

func TestFlexInt64ListShapes(t *testing.T) {
	var got FlexInt64List
	if err := json.Unmarshal([]byte(`[42, "-100123", 7]`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []int64{42, -100123, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if err := json.Unmarshal([]byte(`"42, 7"`), &got); err != nil {
		t.Fatalf("comma string: %v", err)
	}
	if len(got) != 2 || got[0] != 42 || got[1] != 7 {
		t.Fatalf("comma string = %v", got)
	}

	if err := json.Unmarshal([]byte(`["not-a-number"]`), &got); err == nil {
		t.Fatal("malformed id must be a load-time error")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RELAY_TEST_TOKEN", "secret123")
	t.Setenv("RELAY_TEST_EMPTY", "")

	cases := []struct {
		in, want string
	}{
		{"${RELAY_TEST_TOKEN}", "secret123"},
		{"prefix-${RELAY_TEST_TOKEN}-suffix", "prefix-secret123-suffix"},
		{"${RELAY_TEST_UNSET:-fallback}", "fallback"},
		{"${RELAY_TEST_EMPTY:-fallback}", "fallback"},
		{"${RELAY_TEST_TOKEN:-fallback}", "secret123"},
		{"${RELAY_TEST_UNSET}", "${RELAY_TEST_UNSET}"},
		{"no vars here", "no vars here"},
	}
	for _, tc := range cases {
		if got := ExpandEnvVars(tc.in); got != tc.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Bot.Aliases = FlexStringList{"bot"}
	cfg.Bot.AllowChats = FlexInt64List{42}
	cfg.Backend.APIKey = "sk-test"
	cfg.Platforms.Telegram.Enabled = true
	cfg.Platforms.Telegram.Token = "123:abc"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"no allow chats", func(c *Config) { c.Bot.AllowChats = nil }, "allowChats"},
		{"no aliases", func(c *Config) { c.Bot.Aliases = nil }, "aliases"},
		{"no api key", func(c *Config) { c.Backend.APIKey = "" }, "apiKey"},
		{"no platform", func(c *Config) { c.Platforms.Telegram.Enabled = false }, "platform"},
		{"missing token", func(c *Config) { c.Platforms.Telegram.Token = "" }, "token"},
		{"private base without key", func(c *Config) { c.Backend.PrivateAPIBase = "https://x" }, "privateApiKey"},
		{"vision depth too deep", func(c *Config) { c.Bot.VisionContextDepth = 99 }, "visionContextDepth"},
		{"bad react percent", func(c *Config) { c.Bot.LinkReactPercent = 150 }, "linkReactPercent"},
		{"bad log format", func(c *Config) { c.General.LogFormat = "xml" }, "logFormat"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.frag) {
				t.Fatalf("error %q does not mention %q", err, tc.frag)
			}
		})
	}
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{
  "bot": {
    "aliases": "bot",
    "allowChats": [42],
    "personaPath": "` + filepath.Join(dir, "persona.yaml") + `"
  },
  "backend": {"apiKey": "${RELAY_TEST_KEY}"},
  "platforms": {"telegram": {"enabled": true, "token": "123:abc"}}
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.APIKey != "sk-from-env" {
		t.Fatalf("apiKey = %q", cfg.Backend.APIKey)
	}
	if cfg.Bot.DrawTrigger != "нарисуй" {
		t.Fatalf("draw trigger default not applied: %q", cfg.Bot.DrawTrigger)
	}
	if cfg.Bot.ContextDepth != 8 {
		t.Fatalf("contextDepth default = %d", cfg.Bot.ContextDepth)
	}
	if len(cfg.Bot.Aliases) != 1 || cfg.Bot.Aliases[0] != "bot" {
		t.Fatalf("aliases = %v", cfg.Bot.Aliases)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"platforms": {"telegram": {"enabled": true}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("incomplete config must not load")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := validConfig()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Backend.APIKey != "sk-test" || loaded.Bot.AllowChats[0] != 42 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}
