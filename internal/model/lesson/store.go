package lesson

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrLessonNotFound = errors.New("lesson not found")

// Store provides lesson content by identifier.
type Store interface {
	Find(ctx context.Context, lessonID string) (Lesson, error)
}

// MemoryStore implements Store with an in-memory index.
type MemoryStore struct {
	items map[string]Lesson
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied lessons.
func NewMemoryStore(items []Lesson) *MemoryStore {
	index := make(map[string]Lesson, len(items))
	for _, item := range items {
		index[item.ID] = item
	}
	return &MemoryStore{items: index}
}

// Find looks up a lesson by identifier.
func (s *MemoryStore) Find(_ context.Context, lessonID string) (Lesson, error) {
	item, ok := s.items[lessonID]
	if !ok {
		return Lesson{}, ErrLessonNotFound
	}
	return item, nil
}

// Len returns the number of lessons held by the store.
func (s *MemoryStore) Len() int {
	return len(s.items)
}

type catalogFile struct {
	Lessons []Lesson `yaml:"lessons"`
}

// LoadCatalog reads a YAML lesson catalog of the form
//
//	lessons:
//	  - id: ep-01
//	    title: ...
//	    transcript: ...
//	    vocabulary: [{word: ..., def: ...}]
func LoadCatalog(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lesson catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse lesson catalog: %w", err)
	}

	for i, item := range file.Lessons {
		if item.ID == "" {
			return nil, fmt.Errorf("lesson catalog entry %d has no id", i)
		}
	}
	return NewMemoryStore(file.Lessons), nil
}
