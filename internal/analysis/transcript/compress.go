// Package transcript reduces lesson transcripts to a bounded context string.
package transcript

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTarget is the target length in characters.
	DefaultTarget = 500
	// passthroughLimit is the longest input returned untouched.
	passthroughLimit = 800
	// slack is how far past the target the sampled text may run before it
	// is cut.
	slack = 100

	sampleRatio = 0.4
	joiner      = ". "
	ellipsis    = "…"
)

// Compress samples head, middle and tail sentences of raw and bounds the
// result to roughly target characters. Lengths count runes. The output only
// ever contains sentences of raw, and identical input yields identical
// output.
func Compress(raw string, target int) string {
	if target <= 0 {
		target = DefaultTarget
	}
	if utf8.RuneCountInString(raw) <= passthroughLimit {
		return raw
	}

	sentences := SplitSentences(raw)
	if len(sentences) == 0 {
		return truncate(raw, target)
	}

	joined := strings.Join(sample(sentences), joiner)
	if utf8.RuneCountInString(joined) > target+slack {
		return truncate(joined, target)
	}
	return joined
}

// SplitSentences splits on Latin and CJK sentence terminators and drops
// empty fragments.
func SplitSentences(raw string) []string {
	fields := strings.FieldsFunc(raw, isTerminator)
	sentences := make([]string, 0, len(fields))
	for _, field := range fields {
		if s := strings.TrimSpace(field); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// sample picks ceil(40%) head and tail sentences plus the middle block
// between them. Short inputs whose head and tail would overlap are kept
// whole.
func sample(sentences []string) []string {
	total := len(sentences)
	head := ceilRatio(total)
	tail := ceilRatio(total)
	if head+tail >= total {
		return sentences
	}

	mid := total - head - tail
	out := make([]string, 0, total)
	out = append(out, sentences[:head]...)
	out = append(out, sentences[head:head+mid]...)
	out = append(out, sentences[total-tail:]...)
	return out
}

func ceilRatio(total int) int {
	// ceil(total*0.4) in integer arithmetic.
	return (total*4 + 9) / 10
}

func truncate(s string, target int) string {
	if utf8.RuneCountInString(s) <= target {
		return s
	}
	runes := []rune(s)
	return string(runes[:target]) + ellipsis
}
