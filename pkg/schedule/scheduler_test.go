package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		cron    string
		wantErr bool
	}{
		{cron: "0 3 * * *"},
		{cron: "@every 5m"},
		{cron: "@hourly"},
		{cron: "", wantErr: true},
		{cron: "* * *", wantErr: true},
		{cron: "every five minutes", wantErr: true},
	}

	for _, tt := range tests {
		cfg := &Config{Cron: tt.cron}
		if err := cfg.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.cron, err, tt.wantErr)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	runner := RunnerFunc(func(context.Context) error { return nil })

	if _, err := New(nil, runner, testLogger()); err == nil {
		t.Error("New(nil config) error = nil, want error")
	}
	if _, err := New(&Config{Cron: "bad"}, runner, testLogger()); err == nil {
		t.Error("New(bad cron) error = nil, want error")
	}
	if _, err := New(&Config{Cron: "@hourly"}, nil, testLogger()); err == nil {
		t.Error("New(nil runner) error = nil, want error")
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	runner := RunnerFunc(func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("pass failed")
	})

	s, err := New(&Config{Cron: "@hourly", RunOnStart: true}, runner, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not run on start")
	}

	if !s.IsRunning() {
		t.Error("IsRunning() = false, want true")
	}
	if next := s.NextRun(); next == nil || !next.After(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() after Stop = true, want false")
	}
	if s.Runs() != 1 || s.Failures() != 1 {
		t.Errorf("Runs() = %d, Failures() = %d, want 1 and 1", s.Runs(), s.Failures())
	}
	if s.NextRun() != nil {
		t.Error("NextRun() after Stop != nil")
	}
}

func TestScheduler_Ticks(t *testing.T) {
	var calls atomic.Int32
	runner := RunnerFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})

	s, err := New(&Config{Cron: "@every 1s"}, runner, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("no scheduled pass within 3s")
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}
