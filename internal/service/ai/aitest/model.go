// Package aitest provides a scripted chat model for tests.
package aitest

import (
	"context"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel replies with a fixed content or error and records its inputs.
type ChatModel struct {
	mu      sync.Mutex
	content string
	err     error
	block   bool
	delay   time.Duration
	calls   [][]*schema.Message
}

// Reply returns a model that always answers content.
func Reply(content string) *ChatModel {
	return &ChatModel{content: content}
}

// Fail returns a model that always fails with err.
func Fail(err error) *ChatModel {
	return &ChatModel{err: err}
}

// Slow returns a model that answers content after d, or fails when its
// context ends first.
func Slow(content string, d time.Duration) *ChatModel {
	return &ChatModel{content: content, delay: d}
}

// Hang returns a model that blocks until its context is done.
func Hang() *ChatModel {
	return &ChatModel{block: true}
}

func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.content, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

// Calls returns the message lists the model received.
func (m *ChatModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}
