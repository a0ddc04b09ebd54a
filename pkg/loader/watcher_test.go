package loader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback calls = %d, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback calls = %d, want 0", got)
	}
}

func TestFileWatcher_ShouldProcessEvent(t *testing.T) {
	fw := &FileWatcher{config: DefaultWatchConfig()}

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{event: fsnotify.Event{Name: "/r/a_rule.yaml", Op: fsnotify.Write}, want: true},
		{event: fsnotify.Event{Name: "/r/a_rule.yaml", Op: fsnotify.Remove}, want: true},
		{event: fsnotify.Event{Name: "/r/a_rule.yaml", Op: fsnotify.Chmod}, want: false},
		{event: fsnotify.Event{Name: "/r/notes.yaml", Op: fsnotify.Write}, want: false},
		{event: fsnotify.Event{Name: "/r/a_rule.yaml.swp", Op: fsnotify.Create}, want: false},
	}

	for _, tt := range tests {
		if got := fw.shouldProcessEvent(tt.event); got != tt.want {
			t.Errorf("shouldProcessEvent(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}

func TestFileWatcher_Watch(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultWatchConfig()
	cfg.Paths = []string{dir}
	cfg.DebounceInterval = 20 * time.Millisecond

	fw, err := NewFileWatcher(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}

	changed := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func(context.Context) error {
			select {
			case changed <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "new_rule.yaml"), []byte("rule: new\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v, want nil", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after writing a rule file")
	}

	if err := fw.Stop(); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v, want nil", err)
	}
}

func TestFileWatcher_NoWatchableDirectory(t *testing.T) {
	cfg := DefaultWatchConfig()
	cfg.Paths = []string{filepath.Join(t.TempDir(), "missing")}

	fw, err := NewFileWatcher(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}
	defer fw.Stop()

	if err := fw.Watch(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Error("Watch() error = nil, want error")
	}
}

func TestFileWatcher_ChangesDoNotOverlap(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultWatchConfig()
	cfg.Paths = []string{dir}
	cfg.DebounceInterval = 10 * time.Millisecond

	fw, err := NewFileWatcher(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v, want nil", err)
	}

	var running, maxRunning, calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func(context.Context) error {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(100 * time.Millisecond)
			running.Add(-1)
			calls.Add(1)
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)

	// Each write lands after the debounce interval, while the previous
	// callback is still sleeping.
	for i := range 3 {
		name := filepath.Join(dir, "r"+string(rune('a'+i))+"_rule.yaml")
		if err := os.WriteFile(name, []byte("rule: r\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v, want nil", err)
		}
		time.Sleep(40 * time.Millisecond)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if err := fw.Stop(); err != nil {
		t.Errorf("Stop() error = %v, want nil", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v, want nil", err)
	}

	if calls.Load() < 2 {
		t.Fatalf("onChange calls = %d, want at least 2", calls.Load())
	}
	if got := maxRunning.Load(); got != 1 {
		t.Errorf("concurrent onChange calls = %d, want 1", got)
	}
}
