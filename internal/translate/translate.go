// Package translate rewrites prompts into English before they reach the bot.
// Parameter suffixes (everything from the first " --") are never translated.
package translate

import (
	"context"
	"strings"
)

// Translator converts prompt text to English. Implementations return the input
// unchanged when it needs no translation.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// None passes prompts through untouched.
type None struct{}

func (None) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// splitSuffix separates the prompt body from its " --" parameter tail.
func splitSuffix(text string) (body, suffix string) {
	if i := strings.Index(text, " --"); i >= 0 {
		return text[:i], text[i:]
	}
	return text, ""
}

// containsCJK reports whether text has any CJK ideograph. ASCII-only prompts
// skip the round trip to the translation backend.
func containsCJK(text string) bool {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
