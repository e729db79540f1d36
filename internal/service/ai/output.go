package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GenerationOutput is the validated structured reply of the engine.
type GenerationOutput struct {
	Reply            string
	ReplyTranslation string
	UsedVocabulary   []string
	Correction       *string
}

const (
	fallbackReply       = "Sorry, my mind wandered for a second. Could you say that again?"
	fallbackTranslation = "抱歉，我刚刚走神了。你能再说一遍吗？"
)

// Fallback is the fixed reply substituted for unusable engine output.
func Fallback() GenerationOutput {
	return GenerationOutput{
		Reply:            fallbackReply,
		ReplyTranslation: fallbackTranslation,
		UsedVocabulary:   []string{},
	}
}

// ParseError explains why engine output was rejected.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid engine output: %s: %v", e.Reason, e.Err)
	}
	return "invalid engine output: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type outputPayload struct {
	UsedVocab  vocabList `json:"used_vocab"`
	Reply      string    `json:"reply"`
	ReplyCn    string    `json:"replyCn"`
	Correction *string   `json:"correction"`
}

// vocabList accepts a JSON array of strings or a single comma-separated
// string.
type vocabList []string

func (v *vocabList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("used_vocab must be a list or string: %w", err)
	}
	*v = strings.Split(joined, ",")
	return nil
}

// ParseOutput validates raw engine content. Prose or code fences around the
// JSON object are ignored.
func ParseOutput(content string) (GenerationOutput, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return GenerationOutput{}, &ParseError{Reason: "missing json object"}
	}

	var payload outputPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return GenerationOutput{}, &ParseError{Reason: "malformed json", Err: err}
	}

	reply := strings.TrimSpace(payload.Reply)
	if reply == "" {
		return GenerationOutput{}, &ParseError{Reason: "empty reply"}
	}

	out := GenerationOutput{
		Reply:            reply,
		ReplyTranslation: strings.TrimSpace(payload.ReplyCn),
		UsedVocabulary:   normalizeVocab(payload.UsedVocab),
	}
	if payload.Correction != nil {
		if c := strings.TrimSpace(*payload.Correction); c != "" && !strings.EqualFold(c, "null") {
			out.Correction = &c
		}
	}
	return out, nil
}

func normalizeVocab(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		word := strings.TrimSpace(item)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, word)
	}
	return out
}
