package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/comigor/stockagent-go/pkg/tools"
)

func TestProcess_LLMError(t *testing.T) {
	a := newTestAgent(&mockLLM{err: context.DeadlineExceeded})
	_, err := a.Process(context.Background(), "t1", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrModelInvocation) {
		t.Fatalf("expected ErrModelInvocation, got %v", err)
	}
}

func TestProcess_EmptyInput(t *testing.T) {
	a := newTestAgent(&mockLLM{})
	if _, err := a.Process(context.Background(), "t1", "   "); !errors.Is(err, tools.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStream_EmptyInputRejectedSynchronously(t *testing.T) {
	a := newTestAgent(&mockLLM{})
	if _, err := a.Stream(context.Background(), "t1", ""); !errors.Is(err, tools.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
