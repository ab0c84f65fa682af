package utils

import (
	"context"
	"testing"
)

func TestMutexReleaseScriptCompiles(t *testing.T) {
	// Compile-time smoke test: the script should be initialized.
	if mutexReleaseScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestRedisMutex_RejectsNilClientAndEmptyKey(t *testing.T) {
	m := NewRedisMutex(nil)
	if _, err := m.Acquire(context.Background(), "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := m.Release(context.Background(), "", "tok"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
