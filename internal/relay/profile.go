package relay

import (
	"strings"
	"time"

	"relaybot/internal/config"
)

// Profile is the immutable, pre-compiled view of the bot configuration
// shared by every pipeline invocation. Built once at startup; safe for
// concurrent reads without locking.
type Profile struct {
	Persona *config.Persona

	Aliases      []string // lowercased
	DrawTrigger  string   // lowercased
	VoiceTrigger string   // lowercased
	SmartMarker  string   // lowercased

	Models config.ModelsConfig
	Voice  string

	ContextDepth       int
	VisionContextDepth int
	SmartThreshold     int

	MaxEventAge      time.Duration
	LinkReactPercent int
	ProgressDelay    time.Duration

	allowed map[int64]struct{}
}

// NewProfile compiles the loosely typed config fields into the strongly
// typed sets the pipeline reads on every event.
func NewProfile(cfg *config.Config, persona *config.Persona) *Profile {
	aliases := make([]string, 0, len(cfg.Bot.Aliases))
	for _, a := range cfg.Bot.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			aliases = append(aliases, a)
		}
	}

	allowed := make(map[int64]struct{}, len(cfg.Bot.AllowChats))
	for _, id := range cfg.Bot.AllowChats {
		allowed[id] = struct{}{}
	}

	return &Profile{
		Persona:            persona,
		Aliases:            aliases,
		DrawTrigger:        strings.ToLower(cfg.Bot.DrawTrigger),
		VoiceTrigger:       strings.ToLower(cfg.Bot.VoiceTrigger),
		SmartMarker:        strings.ToLower(cfg.Bot.SmartMarker),
		Models:             cfg.Bot.Models,
		Voice:              cfg.Bot.Voice,
		ContextDepth:       cfg.Bot.ContextDepth,
		VisionContextDepth: cfg.Bot.VisionContextDepth,
		SmartThreshold:     cfg.Bot.SmartThreshold,
		MaxEventAge:        time.Duration(cfg.General.MaxEventAgeMin) * time.Minute,
		LinkReactPercent:   cfg.Bot.LinkReactPercent,
		ProgressDelay:      time.Duration(cfg.Bot.ProgressDelayS) * time.Second,
		allowed:            allowed,
	}
}

// Allowed reports whether a chat is on the allow-list.
func (p *Profile) Allowed(chatID int64) bool {
	_, ok := p.allowed[chatID]
	return ok
}
