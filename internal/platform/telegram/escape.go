package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// markdownV2Escapes is the set of characters Telegram requires escaped
// in MarkdownV2 text outside of entities.
var markdownV2Escapes = map[rune]struct{}{
	'_': {}, '*': {}, '[': {}, ']': {}, '(': {}, ')': {}, '~': {}, '>': {},
	'#': {}, '+': {}, '-': {}, '=': {}, '|': {}, '\\': {}, '{': {}, '}': {},
	'.': {}, '!': {},
}

// escapeText escapes outgoing text for the configured parse mode.
func escapeText(parseMode, text string) string {
	if parseMode != tgbotapi.ModeMarkdownV2 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, ok := markdownV2Escapes[r]; ok {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
