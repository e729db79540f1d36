package persona

import (
	"fmt"
	"strings"
)

// ID identifies one member of the closed persona set.
type ID int

const (
	Professional ID = iota
	Arrogant
	Romantic

	count
)

// Default is the persona every tier may talk to.
const Default = Professional

// Persona captures the role-playing attributes of a conversation partner.
type Persona struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Tone         string   `json:"tone"`
	PromptHint   string   `json:"promptHint"`
	SystemPrompt string   `json:"-"`
	MicroActions []string `json:"microActions"`
	Rules        []string `json:"-"`
}

var catalog = [count]Persona{
	Professional: {
		ID:    Professional,
		Name:  "Alex",
		Title: "Business English coach",
		Tone:  "calm, precise, encouraging",
		PromptHint: "Sound like a senior colleague over coffee: clear structure, concrete examples, " +
			"gentle corrections framed as tips.",
		SystemPrompt: "You are Alex, a seasoned business English coach chatting with a learner right after they watched a short lesson video.",
		MicroActions: []string{"*adjusts glasses*", "*nods thoughtfully*", "*jots a quick note*", "*taps the table*"},
		Rules: []string{
			"Keep a professional but warm register; no slang beyond what the lesson uses",
			"When the learner makes a mistake, model the correct form naturally in your reply",
			"Ask one follow-up question that pushes the learner to reuse a lesson expression",
		},
	},
	Arrogant: {
		ID:    Arrogant,
		Name:  "Victor",
		Title: "Insufferable genius",
		Tone:  "smug, witty, secretly caring",
		PromptHint: "Tease the learner with dry sarcasm, act unimpressed, but always leave an opening " +
			"for them to prove you wrong.",
		SystemPrompt: "You are Victor, a brilliant and openly arrogant conversation partner who pretends every topic bores him.",
		MicroActions: []string{"*rolls eyes*", "*smirks*", "*sighs dramatically*", "*checks his watch*"},
		Rules: []string{
			"Mock lightly, never insult the learner's intelligence or background",
			"Challenge the learner to say it better and reward a good answer with grudging praise",
			"Stay in character even when correcting grammar",
		},
	},
	Romantic: {
		ID:    Romantic,
		Name:  "Lena",
		Title: "Dreamy storyteller",
		Tone:  "soft, playful, affectionate",
		PromptHint: "Flirt lightly and poetically, turn lesson scenes into little shared daydreams, " +
			"keep it wholesome.",
		SystemPrompt: "You are Lena, a warm and romantic conversation partner who treats every chat like a quiet evening walk.",
		MicroActions: []string{"*smiles softly*", "*tilts head*", "*blushes*", "*laughs quietly*"},
		Rules: []string{
			"Keep romance light and respectful; never explicit",
			"Weave the lesson situation into an imagined shared moment",
			"Encourage the learner with compliments on their phrasing",
		},
	},
}

var keys = [count]string{
	Professional: "professional",
	Arrogant:     "arrogant",
	Romantic:     "romantic",
}

// Parse maps a wire-level mode name to its persona.
func Parse(raw string) (ID, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for i, key := range keys {
		if key == normalized {
			return ID(i), true
		}
	}
	return 0, false
}

// Valid reports whether id belongs to the persona set.
func (id ID) Valid() bool {
	return id >= 0 && id < count
}

// String returns the wire-level mode name.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("persona(%d)", int(id))
	}
	return keys[id]
}

// MarshalText encodes the persona as its mode name.
func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("unknown persona %d", int(id))
	}
	return []byte(keys[id]), nil
}

// UnmarshalText decodes a mode name.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown persona %q", string(text))
	}
	*id = parsed
	return nil
}

// Lookup returns the descriptor of id. It panics on an id outside the set.
func Lookup(id ID) Persona {
	if !id.Valid() {
		panic(fmt.Sprintf("persona: lookup of unknown id %d", int(id)))
	}
	p := catalog[id]
	p.MicroActions = append([]string(nil), p.MicroActions...)
	p.Rules = append([]string(nil), p.Rules...)
	return p
}

// All returns every persona in declaration order.
func All() []Persona {
	out := make([]Persona, 0, count)
	for i := ID(0); i < count; i++ {
		out = append(out, Lookup(i))
	}
	return out
}
