// Package tokencount estimates token counts for prompt budgeting.
//
// It uses tiktoken-go, a Go port of OpenAI's tiktoken, so long interview
// transcripts can be trimmed before they blow the evaluation prompt budget.
package tokencount

import (
	"log/slog"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Counter provides thread-safe token counting with a cached encoding.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter { return &Counter{} }

// DefaultCounter is a process-wide counter instance.
var DefaultCounter = NewCounter()

// Count returns the token count of text, falling back to a bytes/4
// estimate when the encoding cannot be loaded (offline environments).
func (c *Counter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			slog.Warn("tiktoken encoding unavailable; using estimate", slog.Any("error", err))
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Count is a package-level convenience over DefaultCounter.
func Count(text string) int { return DefaultCounter.Count(text) }

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
