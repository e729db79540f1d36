package main

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFinishLogsErrorBeforeExit(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	if code := finish(zap.New(core), errors.New("listen tcp :8080: address already in use")); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if logs.Len() != 1 || logs.All()[0].Message != "server error" {
		t.Fatalf("expected one server error entry, got %v", logs.All())
	}
}

func TestFinishCleanShutdown(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	if code := finish(zap.New(core), nil); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %d", logs.Len())
	}
}
