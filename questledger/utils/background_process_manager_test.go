package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackgroundProcessManager_ShutdownStopsProcesses(t *testing.T) {
	bpm := NewBackgroundProcessManager()

	var stopped atomic.Bool
	bpm.StartProcess("worker", func(ctx context.Context) {
		<-ctx.Done()
		stopped.Store(true)
	})

	if err := bpm.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !stopped.Load() {
		t.Error("process did not observe cancellation")
	}
}

func TestBackgroundProcessManager_ShutdownTimeout(t *testing.T) {
	bpm := NewBackgroundProcessManager()

	release := make(chan struct{})
	bpm.StartProcess("stubborn", func(ctx context.Context) {
		<-release
	})
	defer close(release)

	if err := bpm.Shutdown(10 * time.Millisecond); err != context.DeadlineExceeded {
		t.Fatalf("Shutdown() error = %v, want deadline exceeded", err)
	}
}

func TestBackgroundProcessManager_StopProcess(t *testing.T) {
	bpm := NewBackgroundProcessManager()

	done := make(chan struct{})
	bpm.StartProcess("worker", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	bpm.StopProcess("worker")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stopped process kept running")
	}
}

func TestBackgroundProcessManager_RecoversPanics(t *testing.T) {
	bpm := NewBackgroundProcessManager()
	bpm.StartProcess("crasher", func(ctx context.Context) {
		panic("boom")
	})
	if err := bpm.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() after panic error = %v", err)
	}
}
