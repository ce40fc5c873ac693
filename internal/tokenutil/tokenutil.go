// Package tokenutil counts and truncates text by cl100k_base tokens. The
// encoding is loaded on first real use; a rune heuristic stands in when it
// cannot be loaded.
package tokenutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens returns the cl100k_base token count, or EstimateFast when the
// encoding is unavailable.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast returns a heuristic token estimate: max(runes/4, word_count).
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// TruncateToTokens cuts text to at most maxTokens and appends a notice with
// the original size. Text no longer than maxTokens bytes is returned as-is
// without touching the encoder, since a token never spans less than a byte.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || len(text) <= maxTokens {
		return text
	}
	if enc := loadEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens]) + notice(len(tokens), maxTokens)
	}
	runes := []rune(text)
	limit := maxTokens * 4
	if limit >= len(runes) {
		return text
	}
	return string(runes[:limit]) + notice(EstimateFast(text), maxTokens)
}

func notice(total, kept int) string {
	return fmt.Sprintf("\n...[output truncated: showing %d of ~%d tokens]", kept, total)
}
