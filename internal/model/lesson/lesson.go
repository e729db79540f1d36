package lesson

// VocabularyItem is a target word of a lesson together with its definition.
type VocabularyItem struct {
	Word string `json:"word" yaml:"word"`
	Def  string `json:"def" yaml:"def"`
}

// Lesson carries the content the conversation is grounded on.
type Lesson struct {
	ID         string           `json:"lessonId" yaml:"id"`
	Title      string           `json:"title" yaml:"title"`
	TitleCn    string           `json:"titleCn" yaml:"titleCn"`
	Transcript string           `json:"transcript" yaml:"transcript"`
	Vocabulary []VocabularyItem `json:"vocabulary" yaml:"vocabulary"`
}

// Words returns the vocabulary words in lesson order.
func (l Lesson) Words() []string {
	words := make([]string, 0, len(l.Vocabulary))
	for _, item := range l.Vocabulary {
		if item.Word != "" {
			words = append(words, item.Word)
		}
	}
	return words
}

// Merge fills fields missing from l with values from stored.
func (l Lesson) Merge(stored Lesson) Lesson {
	if l.Title == "" {
		l.Title = stored.Title
	}
	if l.TitleCn == "" {
		l.TitleCn = stored.TitleCn
	}
	if l.Transcript == "" {
		l.Transcript = stored.Transcript
	}
	if len(l.Vocabulary) == 0 {
		l.Vocabulary = append([]VocabularyItem(nil), stored.Vocabulary...)
	}
	return l
}
