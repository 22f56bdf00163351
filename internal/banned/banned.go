// Package banned screens prompts against the word list the bot itself
// moderates on, so obviously doomed prompts are rejected before a task is ever
// queued.
package banned

import (
	_ "embed"
	"regexp"
	"strings"
	"sync"
)

//go:embed banned-words.txt
var rawWords string

var (
	once     sync.Once
	patterns []*regexp.Regexp
	words    []string
)

func compile() {
	for _, line := range strings.Split(rawWords, "\n") {
		w := strings.TrimSpace(line)
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
}

// Word returns the first banned word found in text, if any. Matching is
// case-insensitive on word boundaries.
func Word(text string) (string, bool) {
	once.Do(compile)
	for i, p := range patterns {
		if p.MatchString(text) {
			return words[i], true
		}
	}
	return "", false
}
