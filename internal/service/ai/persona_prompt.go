package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/chat"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/lesson"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/persona"
)

// RequestKind distinguishes the system-generated greeting from regular turns.
type RequestKind int

const (
	KindTurn RequestKind = iota
	KindOpening
)

func (k RequestKind) String() string {
	if k == KindOpening {
		return "opening"
	}
	return "turn"
}

const historyLimit = 10

// openingQuery replaces the user message of an opening-line request.
const openingQuery = "(The learner just finished the video and opened the chat. Greet them with your opening line now.)"

type lengthRule struct {
	minVocab int
	minWords int
	maxWords int
	rhythm   string
}

var lengthRules = map[RequestKind]lengthRule{
	KindOpening: {
		minVocab: 1,
		minWords: 12,
		maxWords: 35,
		rhythm:   "Keep it short and punchy: one hook tied to the video, then one easy question.",
	},
	KindTurn: {
		minVocab: 2,
		minWords: 8,
		maxWords: 80,
		rhythm:   "Vary your length between turns for a natural rhythm: sometimes a quick quip, sometimes a few sentences.",
	},
}

// PromptRequest is everything the assembler needs for one call.
type PromptRequest struct {
	Persona persona.ID
	Lesson  lesson.Lesson
	Context string
	History []chat.Turn
	Message string
	Kind    RequestKind
}

// Prompt is the self-contained instruction block sent to the engine.
type Prompt struct {
	System  string
	History []chat.Turn
	Query   string
}

// PersonaPromptAssembler builds generation instructions. It keeps no state
// between calls.
type PersonaPromptAssembler struct{}

// NewPersonaPromptAssembler creates an assembler.
func NewPersonaPromptAssembler() *PersonaPromptAssembler {
	return &PersonaPromptAssembler{}
}

// Assemble builds the prompt for req.
func (PersonaPromptAssembler) Assemble(req PromptRequest) Prompt {
	query := strings.TrimSpace(req.Message)
	if req.Kind == KindOpening || query == "" {
		query = openingQuery
	}
	return Prompt{
		System:  buildSystemPrompt(req),
		History: trimHistory(req.History),
		Query:   query,
	}
}

func buildSystemPrompt(req PromptRequest) string {
	p := persona.Lookup(req.Persona)
	rule := lengthRules[req.Kind]

	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	fmt.Fprintf(&b, "\n\nCharacter:\n- Name: %s\n- Role: %s\n- Tone: %s\n- Style: %s\n", p.Name, p.Title, p.Tone, p.PromptHint)
	fmt.Fprintf(&b, "- Sprinkle at most one micro-action per reply, such as: %s\n", strings.Join(p.MicroActions, ", "))

	b.WriteString("\nRules:\n")
	for _, r := range p.Rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}

	b.WriteString("\nLesson the learner just watched:\n")
	if req.Lesson.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", req.Lesson.Title)
	}
	if req.Lesson.TitleCn != "" {
		fmt.Fprintf(&b, "- Chinese title: %s\n", req.Lesson.TitleCn)
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		fmt.Fprintf(&b, "- Transcript excerpt: %s\n", ctx)
	}
	if len(req.Lesson.Vocabulary) > 0 {
		b.WriteString("- Target vocabulary:\n")
		for _, item := range req.Lesson.Vocabulary {
			if item.Def != "" {
				fmt.Fprintf(&b, "  - %s: %s\n", item.Word, item.Def)
			} else {
				fmt.Fprintf(&b, "  - %s\n", item.Word)
			}
		}
	}

	b.WriteString("\nHard constraints:\n")
	fmt.Fprintf(&b, "- The reply must use at least %d expression(s) at CEFR B2 level or above", rule.minVocab)
	if words := req.Lesson.Words(); len(words) > 0 {
		fmt.Fprintf(&b, ", preferring: %s.\n", strings.Join(words, ", "))
	} else {
		b.WriteString(".\n")
	}
	fmt.Fprintf(&b, "- The reply must be %d to %d English words. %s\n", rule.minWords, rule.maxWords, rule.rhythm)
	if req.Kind == KindOpening {
		b.WriteString("- This is the opening line of the conversation; the learner has not said anything yet, so correction must be null.\n")
	} else {
		b.WriteString("- If the learner's last message contains a language mistake, put a corrected version with a short explanation in correction; otherwise correction must be null.\n")
	}
	b.WriteString("- Answer with a single JSON object and nothing else, using exactly these fields:\n")
	b.WriteString(`  {"used_vocab": ["expressions you used"], "reply": "your English reply", "replyCn": "Simplified Chinese translation of reply", "correction": null}`)
	b.WriteString("\n")

	return b.String()
}

func trimHistory(turns []chat.Turn) []chat.Turn {
	start := 0
	if len(turns) > historyLimit {
		start = len(turns) - historyLimit
	}

	out := make([]chat.Turn, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		if turn.Role != chat.RoleUser && turn.Role != chat.RoleAssistant {
			continue
		}
		out = append(out, turn)
	}
	return out
}
