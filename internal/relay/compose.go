package relay

import (
	"strings"

	"relaybot/internal/domain"
)

// Request is the fully composed backend request for one event: model,
// system text, context window, and the modality-specific parameters.
type Request struct {
	Kind   domain.IntentKind
	Model  string
	System string
	Turns  []domain.ConversationTurn

	Prompt   string           // image generation
	Image    *domain.MediaRef // image understanding
	Question string           // image understanding
	Voice    string           // speech synthesis
}

// Composer turns an Intent plus the assembled context into the exact
// backend request parameters.
type Composer struct {
	profile *Profile
}

func NewComposer(profile *Profile) *Composer {
	return &Composer{profile: profile}
}

// Compose builds the backend request for the classified intent. turns
// is the full sequence from the Context Builder, system turn first.
func (c *Composer) Compose(intent domain.Intent, ev *domain.ChatEvent, turns []domain.ConversationTurn) *Request {
	system, history := splitSystem(turns)

	switch intent.Kind {
	case domain.IntentImageGenerate:
		// Single shot: no conversation history for image prompts.
		return &Request{
			Kind:   intent.Kind,
			Prompt: strings.TrimSpace(intent.Prompt),
		}

	case domain.IntentImageUnderstand:
		question := intent.Question
		if question == "" {
			question = c.profile.Persona.VisionQuestion
		}
		model := c.profile.Models.Vision
		if model == "" {
			model = c.profile.Models.Regular
		}
		// The current turn travels as Image+Question; only a short
		// tail of prior dialogue is attached to keep the vision
		// prompt focused.
		prior := history
		if len(prior) > 0 {
			prior = prior[:len(prior)-1]
		}
		return &Request{
			Kind:     intent.Kind,
			Model:    model,
			System:   system,
			Turns:    boundHistory(prior, c.profile.VisionContextDepth),
			Image:    intent.Image,
			Question: question,
		}

	case domain.IntentVoiceReply:
		req := c.composeText(intent, ev, system, history)
		req.Kind = domain.IntentVoiceReply
		req.Voice = c.profile.Voice
		return req

	default:
		return c.composeText(intent, ev, system, history)
	}
}

func (c *Composer) composeText(intent domain.Intent, ev *domain.ChatEvent, system string, history []domain.ConversationTurn) *Request {
	return &Request{
		Kind:   domain.IntentTextReply,
		Model:  c.pickModel(intent, ev, history),
		System: system,
		Turns:  history,
	}
}

// pickModel selects the completion model: the smart variant when the
// thread is long or the smart marker is present, else the private
// override for one-to-one chats, else the regular model.
func (c *Composer) pickModel(intent domain.Intent, ev *domain.ChatEvent, history []domain.ConversationTurn) string {
	m := c.profile.Models

	if m.Smart != "" {
		if len(history) >= c.profile.SmartThreshold && c.profile.SmartThreshold > 0 {
			return m.Smart
		}
		if c.profile.SmartMarker != "" &&
			strings.Contains(strings.ToLower(intent.Prompt), c.profile.SmartMarker) {
			return m.Smart
		}
	}

	if m.Private != "" && ev.IsPrivate() {
		return m.Private
	}

	return m.Regular
}

// splitSystem separates the leading system turn from the dialogue.
func splitSystem(turns []domain.ConversationTurn) (string, []domain.ConversationTurn) {
	if len(turns) > 0 && turns[0].Role == domain.RoleSystem {
		return turns[0].Text, turns[1:]
	}
	return "", turns
}

// boundHistory keeps only the most recent n turns, oldest dropped first.
func boundHistory(history []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
