package main

import (
	"fmt"
	"os"
	"path/filepath"

	"relaybot/internal/config"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and persona file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func runInit(force bool) error {
	dir := config.DefaultConfigDir()
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	cfg := config.Defaults()
	cfg.Bot.PersonaPath = filepath.Join(dir, "persona.yaml")
	cfg.Bot.Aliases = config.FlexStringList{"bot"}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Println("wrote", cfgPath)

	personaPath := cfg.Bot.PersonaPath
	if _, err := os.Stat(personaPath); err == nil && !force {
		fmt.Println("kept existing", personaPath)
		return nil
	}
	if err := os.WriteFile(personaPath, []byte(samplePersona), 0o644); err != nil {
		return err
	}
	fmt.Println("wrote", personaPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Fill in backend.apiKey and a platform token in", cfgPath)
	fmt.Println("  2. Add your chat IDs to bot.allowChats")
	fmt.Println("  3. Run: relaybot check, then relaybot serve")
	return nil
}

const samplePersona = `# Persona file: everything that shapes the bot's voice lives here,
# so the character can be retuned without touching the config.

# System rules sent with every completion.
rules: |
  You are a laid-back chat companion. Answer briefly and stay in
  character. Never mention that you are a language model.

# Prepended to the system rules per message; {name} is replaced with
# the sender's display name.
preamble: "You are talking to {name}."

# Canned replies used when the backend is unavailable.
dummyAnswers:
  - "Hmm, let me think about that one."
  - "Interesting. Tell me more."
  - "I have no strong opinion on this."
  - "Sounds about right."

# Remap display names before they reach the backend.
nameMap: {}
#  "Alexander": "Sasha"

# Default question for images posted without a caption.
visionQuestion: "What is in this picture?"

# Sent when image generation fails.
imageRefusal: "I can't draw that right now, sorry."

# Progress notices for slow backend calls.
thinkingNotice: "Give me a second..."
giveUpNotice: "This is taking longer than it should."
`
