package relay

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"relaybot/internal/domain"
)

// Classifier decides whether an event should be answered at all and,
// if so, with which modality. Exactly one Intent per event; the first
// matching rule wins.
type Classifier struct {
	profile *Profile
}

func NewClassifier(profile *Profile) *Classifier {
	return &Classifier{profile: profile}
}

// Classify applies the decision rules in fixed order: allow-list,
// addressing, draw trigger, attached image, voice trigger, text.
func (c *Classifier) Classify(ev *domain.ChatEvent) domain.Intent {
	if !c.profile.Allowed(ev.ChatID) {
		return domain.Intent{Kind: domain.IntentIgnore}
	}

	if ev.Text == "" && ev.Image == nil {
		return domain.Intent{Kind: domain.IntentIgnore}
	}

	alias, mentioned := matchAlias(ev.Text, c.profile.Aliases)

	// In a group the bot must be addressed: by one of its names or by
	// replying to one of its messages. Private chats skip this gate.
	if !ev.IsPrivate() {
		repliedToBot := ev.ReplyTo != nil && ev.ReplyTo.FromBot
		if !mentioned && !repliedToBot {
			return domain.Intent{Kind: domain.IntentIgnore}
		}
	}

	text := ev.Text
	if mentioned {
		text = stripAlias(text, alias)
	}

	if rest, ok := trimTrigger(text, c.profile.DrawTrigger); ok {
		return domain.Intent{Kind: domain.IntentImageGenerate, Prompt: rest}
	}

	if ev.Image != nil {
		return domain.Intent{
			Kind:     domain.IntentImageUnderstand,
			Image:    ev.Image,
			Question: strings.TrimSpace(text),
		}
	}

	if rest, ok := trimTrigger(text, c.profile.VoiceTrigger); ok {
		return domain.Intent{Kind: domain.IntentVoiceReply, Prompt: rest}
	}

	return domain.Intent{Kind: domain.IntentTextReply, Prompt: strings.TrimSpace(text)}
}

// HasLink reports whether the event is a link post. Used for the
// occasional filler reaction in group chats.
func HasLink(text string) bool {
	return strings.Contains(text, "https://") || strings.Contains(text, "http://")
}

// matchAlias finds the first configured alias present in text as a
// whole word, case-insensitively. Word-boundary matching was chosen
// over plain substring so that a bot named "al" does not wake up on
// "algorithm".
func matchAlias(text string, aliases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, alias := range aliases {
		if idx := wordIndex(lower, alias); idx >= 0 {
			return alias, true
		}
	}
	return "", false
}

// wordIndex returns the byte offset of needle in haystack when it is
// bounded by non-letter, non-digit runes, or -1 otherwise. Both inputs
// must already be lowercased.
func wordIndex(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1
		}
		idx += from

		boundedLeft := idx == 0
		if !boundedLeft {
			r, _ := utf8.DecodeLastRuneInString(haystack[:idx])
			boundedLeft = !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}
		end := idx + len(needle)
		boundedRight := end == len(haystack)
		if !boundedRight {
			r, _ := utf8.DecodeRuneInString(haystack[end:])
			boundedRight = !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}
		if boundedLeft && boundedRight {
			return idx
		}
		from = idx + len(needle)
	}
}

// stripAlias removes the first word-bounded occurrence of alias from
// text along with any separator punctuation that immediately follows.
func stripAlias(text, alias string) string {
	idx := wordIndex(strings.ToLower(text), alias)
	if idx < 0 {
		return text
	}
	before := strings.TrimRight(text[:idx], " \t,.:;!?-—")
	after := strings.TrimLeft(text[idx+len(alias):], " \t,.:;!?-—")
	if before == "" {
		return after
	}
	if after == "" {
		return before
	}
	return before + " " + after
}

// trimTrigger reports whether text begins with the trigger keyword and
// returns the remainder.
func trimTrigger(text, trigger string) (string, bool) {
	if trigger == "" {
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, trigger) {
		return "", false
	}
	rest := trimmed[len(trigger):]
	if rest != "" {
		r, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return "", false
		}
	}
	return strings.TrimLeft(rest, " \t,.:;!?-—"), true
}
