// Package chunk re-chunks a completed text into a paced word-group
// stream for incremental delivery.
package chunk

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultThreshold is the soft character length that closes a chunk.
	// The word that crosses it is still included, so chunks may overshoot.
	DefaultThreshold = 20
	// DefaultWordDelay paces word accumulation between flush decisions.
	DefaultWordDelay = 50 * time.Millisecond
)

// Emitter splits text on whitespace and groups words into chunks, closed
// when the running buffer reaches the threshold or ends with sentence
// punctuation.
type Emitter struct {
	threshold int
	delay     time.Duration
}

// NewEmitter constructs an Emitter. Non-positive threshold falls back to
// DefaultThreshold; a negative delay falls back to DefaultWordDelay.
func NewEmitter(threshold int, delay time.Duration) *Emitter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if delay < 0 {
		delay = DefaultWordDelay
	}
	return &Emitter{threshold: threshold, delay: delay}
}

// Emit returns a channel of chunks produced in text order. The channel
// is closed after the last chunk, or promptly once ctx is cancelled.
// The pacing delay runs between word accumulations, never before a flush.
func (e *Emitter) Emit(ctx context.Context, text string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		words := strings.Fields(text)
		var buf strings.Builder

		for i, word := range words {
			buf.WriteString(word)
			buf.WriteByte(' ')

			trimmed := strings.TrimRight(buf.String(), " ")
			if buf.Len() >= e.threshold || endsSentence(trimmed) {
				if !send(ctx, out, trimmed) {
					return
				}
				buf.Reset()
			}

			if i < len(words)-1 && !pause(ctx, e.delay) {
				return
			}
		}

		if rest := strings.TrimRight(buf.String(), " "); rest != "" {
			send(ctx, out, rest)
		}
	}()

	return out
}

func endsSentence(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func send(ctx context.Context, out chan<- string, chunk string) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	if d == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
