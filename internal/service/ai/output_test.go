package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputWellFormed(t *testing.T) {
	out, err := ParseOutput(`{"used_vocab":["negotiate","leverage"],"reply":"Let's negotiate.","replyCn":"我们谈判吧。","correction":"say 'I went', not 'I go'"}`)
	require.NoError(t, err)
	assert.Equal(t, "Let's negotiate.", out.Reply)
	assert.Equal(t, "我们谈判吧。", out.ReplyTranslation)
	assert.Equal(t, []string{"negotiate", "leverage"}, out.UsedVocabulary)
	require.NotNil(t, out.Correction)
	assert.Equal(t, "say 'I went', not 'I go'", *out.Correction)
}

func TestParseOutputRepairsCommonDeviations(t *testing.T) {
	content := "Sure! Here you go:\n```json\n{\"used_vocab\": \"deadline, Deadline ,  , pitch\", \"reply\": \"  Hit the deadline.  \", \"replyCn\": \"赶上截止日期。\", \"correction\": \"  \"}\n```"
	out, err := ParseOutput(content)
	require.NoError(t, err)
	assert.Equal(t, "Hit the deadline.", out.Reply)
	assert.Equal(t, []string{"deadline", "pitch"}, out.UsedVocabulary)
	assert.Nil(t, out.Correction)

	out, err = ParseOutput(`{"reply":"ok","correction":"null"}`)
	require.NoError(t, err)
	assert.Nil(t, out.Correction)
	assert.NotNil(t, out.UsedVocabulary)
}

func TestParseOutputRejectsUnusableContent(t *testing.T) {
	cases := map[string]string{
		"no object":   "I'd love to chat about that!",
		"broken json": `{"reply": "unterminated}`,
		"empty reply": `{"used_vocab":[],"reply":"","replyCn":"","correction":null}`,
		"blank reply": `{"reply":"   \n"}`,
		"bad vocab":   `{"used_vocab": 42, "reply": "hi"}`,
		"reversed":    "} nope {",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOutput(content)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.NotEmpty(t, parseErr.Error())
		})
	}
}

func TestFallbackIsBilingualAndNonEmpty(t *testing.T) {
	fb := Fallback()
	assert.NotEmpty(t, fb.Reply)
	assert.NotEmpty(t, fb.ReplyTranslation)
	assert.NotNil(t, fb.UsedVocabulary)
	assert.Nil(t, fb.Correction)
}
