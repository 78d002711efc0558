// Package stream paces an already-complete answer into display fragments so
// the transport can emulate live generation.
package stream

import (
	"context"
	"time"
	"unicode"
)

const (
	defaultTokenDelay = 30 * time.Millisecond
	defaultSpaceDelay = 10 * time.Millisecond
)

// Tokenizer splits finished answers into fragments and emits them with a
// fixed delay. The zero value is not useful; use New or NewWithDelays.
// Tokenizer itself is stateless and may be reused across strings, but each
// channel returned by Stream is single pass.
type Tokenizer struct {
	TokenDelay time.Duration
	SpaceDelay time.Duration
}

// New returns a Tokenizer with the default pacing.
func New() Tokenizer {
	return Tokenizer{TokenDelay: defaultTokenDelay, SpaceDelay: defaultSpaceDelay}
}

// NewWithDelays returns a Tokenizer with explicit pacing. Non-positive
// delays fall back to the defaults.
func NewWithDelays(tokenDelay, spaceDelay time.Duration) Tokenizer {
	t := New()
	if tokenDelay > 0 {
		t.TokenDelay = tokenDelay
	}
	if spaceDelay > 0 {
		t.SpaceDelay = spaceDelay
	}
	return t
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Fragments splits text into display fragments: each word/number run
// (including $-prefixed amounts with a decimal point) is one fragment, each
// whitespace run is one fragment, and every other rune stands alone.
// Concatenating the fragments reproduces text exactly, for any input.
func Fragments(text string) []string {
	var fragments []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		start := i
		switch {
		case unicode.IsSpace(runes[i]):
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
		case isWordRune(runes[i]) || (runes[i] == '$' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])):
			if runes[i] == '$' {
				i++
			}
			for i < len(runes) {
				if isWordRune(runes[i]) {
					i++
					continue
				}
				// Keep a decimal point inside a number ("175.43") but not a
				// trailing period ("end.").
				if runes[i] == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) && unicode.IsDigit(runes[i-1]) {
					i++
					continue
				}
				break
			}
		default:
			i++
		}
		fragments = append(fragments, string(runes[start:i]))
	}
	return fragments
}

// Stream emits the fragments of text on the returned channel, pausing
// TokenDelay after each fragment (SpaceDelay after whitespace fragments).
// The channel is closed when the text is exhausted or ctx is cancelled.
func (t Tokenizer) Stream(ctx context.Context, text string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for _, fragment := range Fragments(text) {
			select {
			case out <- fragment:
			case <-ctx.Done():
				return
			}

			delay := t.TokenDelay
			if isWhitespace(fragment) {
				delay = t.SpaceDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
	return out
}

func isWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}
