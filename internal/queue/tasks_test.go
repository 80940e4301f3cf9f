package queue

import (
	"encoding/json"
	"testing"
)

func TestNewVersionPruneTask(t *testing.T) {
	task, err := NewVersionPruneTask(15)
	if err != nil {
		t.Fatalf("NewVersionPruneTask: %v", err)
	}
	if task.Type() != TypeVersionPrune {
		t.Fatalf("type = %q, want %q", task.Type(), TypeVersionPrune)
	}

	var p VersionPrunePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Keep != 15 {
		t.Fatalf("keep = %d, want 15", p.Keep)
	}
}

func TestNewVersionPruneTaskZeroKeep(t *testing.T) {
	task, err := NewVersionPruneTask(0)
	if err != nil {
		t.Fatalf("NewVersionPruneTask: %v", err)
	}

	var p VersionPrunePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Keep != 0 {
		t.Fatalf("keep = %d, want 0 so the worker falls back to its default", p.Keep)
	}
}
