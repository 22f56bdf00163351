package task

import (
	"crypto/rand"
	"strings"
)

const idLength = 16

// NewID returns a 16-digit random numeric id. The id travels embedded in the
// outgoing prompt text, so it must survive the bot echoing it back verbatim;
// plain digits do.
func NewID() string {
	buf := make([]byte, idLength)
	_, _ = rand.Read(buf)
	var b strings.Builder
	b.Grow(idLength)
	for _, c := range buf {
		b.WriteByte('0' + c%10)
	}
	return b.String()
}

// FormatFinalPrompt embeds a task id into the prompt sent to the bot, as
// "[<id>] <prompt>". The bracketed marker is the only correlation handle the
// chat protocol preserves.
func FormatFinalPrompt(id, prompt string) string {
	return "[" + id + "] " + prompt
}

// IDFromPrompt extracts the bracketed task id from a final prompt, or "" when
// no marker is present.
func IDFromPrompt(finalPrompt string) string {
	open := strings.Index(finalPrompt, "[")
	if open < 0 {
		return ""
	}
	end := strings.Index(finalPrompt[open+1:], "]")
	if end < 0 {
		return ""
	}
	return finalPrompt[open+1 : open+1+end]
}
