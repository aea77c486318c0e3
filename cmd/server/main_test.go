package main

import (
	"context"
	"testing"

	"github.com/JonMunkholm/jsonlines/internal/core"
)

type recorder struct {
	calls  []string
	active int
}

func (r *recorder) Shutdown(ctx context.Context) error {
	r.calls = append(r.calls, "shutdown")
	return nil
}

func (r *recorder) LimiterStatus() core.LimiterStatus {
	r.calls = append(r.calls, "status")
	return core.LimiterStatus{Active: r.active, Imports: r.active}
}

func (r *recorder) WaitForTransfers(ctx context.Context) error {
	r.calls = append(r.calls, "wait")
	return nil
}

func TestGracefulShutdown_StopsAcceptingBeforeDrain(t *testing.T) {
	r := &recorder{active: 2}
	gracefulShutdown(context.Background(), r, r)

	want := []string{"shutdown", "status", "wait"}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", r.calls, want)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", r.calls, want)
		}
	}
}

func TestGracefulShutdown_NoActiveTransfers(t *testing.T) {
	r := &recorder{}
	gracefulShutdown(context.Background(), r, r)

	for _, c := range r.calls {
		if c == "wait" {
			t.Fatalf("calls = %v, should not wait with nothing active", r.calls)
		}
	}
}
