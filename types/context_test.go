package types

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	if _, ok := UserID(ctx); ok {
		t.Fatalf("expected no user id on empty context")
	}

	ctx = WithTraceID(ctx, "t1")
	if got, ok := TraceID(ctx); !ok || got != "t1" {
		t.Fatalf("TraceID mismatch: %v %v", got, ok)
	}

	ctx = WithUserID(ctx, "user")
	if got, ok := UserID(ctx); !ok || got != "user" {
		t.Fatalf("UserID mismatch: %v %v", got, ok)
	}

	ctx = WithSessionID(ctx, "chat-1")
	if got, ok := SessionID(ctx); !ok || got != "chat-1" {
		t.Fatalf("SessionID mismatch: %v %v", got, ok)
	}

	ctx = WithUseCase(ctx, "fsi_banking")
	if got, ok := UseCase(ctx); !ok || got != "fsi_banking" {
		t.Fatalf("UseCase mismatch: %v %v", got, ok)
	}

	ctx = WithRequestID(ctx, "req")
	if got, ok := RequestID(ctx); !ok || got != "req" {
		t.Fatalf("RequestID mismatch: %v %v", got, ok)
	}

	empty := WithUserID(context.Background(), "")
	if _, ok := UserID(empty); ok {
		t.Fatalf("expected empty user id to be reported as missing")
	}
}
