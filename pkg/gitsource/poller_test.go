package gitsource

import (
	"context"
	"testing"
	"time"
)

func syncedRepository(t *testing.T) (*Repository, string, func(name, content string) string) {
	t.Helper()

	source, sourceRepo := createSourceRepo(t)
	repo, err := NewRepository(testGitConfig(t, source), nil)
	if err != nil {
		t.Fatalf("NewRepository() error = %v, want nil", err)
	}
	if _, err := repo.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error = %v, want nil", err)
	}

	commit := func(name, content string) string {
		return commitFile(t, sourceRepo, source, name, content)
	}
	return repo, source, commit
}

func TestNewPoller(t *testing.T) {
	repo, _, _ := syncedRepository(t)

	tests := []struct {
		name    string
		repo    *Repository
		config  *PollerConfig
		wantErr bool
	}{
		{name: "nil repository", repo: nil, config: &PollerConfig{Interval: time.Second}, wantErr: true},
		{name: "nil config", repo: repo, config: nil, wantErr: true},
		{name: "zero interval", repo: repo, config: &PollerConfig{}, wantErr: true},
		{name: "valid", repo: repo, config: &PollerConfig{Interval: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoller(tt.repo, tt.config, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPoller() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoller_Check(t *testing.T) {
	repo, _, commit := syncedRepository(t)

	poller, err := NewPoller(repo, &PollerConfig{Interval: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewPoller() error = %v, want nil", err)
	}

	changed, err := poller.Check(context.Background())
	if err != nil || changed {
		t.Fatalf("Check() = %v, %v, want false, nil", changed, err)
	}

	readme := commit("README.md", "# rules\n")
	changed, err = poller.Check(context.Background())
	if err != nil || changed {
		t.Fatalf("Check() after README commit = %v, %v, want false, nil", changed, err)
	}
	if poller.LastCommit() != readme {
		t.Errorf("LastCommit() = %s, want %s", poller.LastCommit(), readme)
	}

	commit("rules/notes.txt", "not a rule\n")
	if changed, _ := poller.Check(context.Background()); changed {
		t.Error("Check() = true for non-rule file, want false")
	}

	commit("rules/total_rule.yaml", "rule: total\noutput: \"1\"\n")
	changed, err = poller.Check(context.Background())
	if err != nil || !changed {
		t.Errorf("Check() after rule commit = %v, %v, want true, nil", changed, err)
	}
}

func TestPoller_Watch(t *testing.T) {
	repo, _, commit := syncedRepository(t)

	poller, err := NewPoller(repo, &PollerConfig{Interval: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("NewPoller() error = %v, want nil", err)
	}

	sha := commit("rules/total_rule.yaml", "rule: total\noutput: \"1\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- poller.Watch(ctx, func(ctx context.Context) error {
			select {
			case changes <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called after a rule commit")
	}

	if poller.LastCommit() != sha {
		t.Errorf("LastCommit() = %s, want %s", poller.LastCommit(), sha)
	}

	if err := poller.Stop(); err != nil {
		t.Fatalf("Stop() error = %v, want nil", err)
	}
	if err := <-watchErr; err != nil {
		t.Errorf("Watch() error = %v, want nil", err)
	}
}

func TestPoller_WatchTwice(t *testing.T) {
	repo, _, _ := syncedRepository(t)

	poller, err := NewPoller(repo, &PollerConfig{Interval: time.Minute}, nil)
	if err != nil {
		t.Fatalf("NewPoller() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Watch(ctx, func(context.Context) error { return nil }) }()

	deadline := time.Now().Add(5 * time.Second)
	for poller.LastCommit() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := poller.Watch(ctx, func(context.Context) error { return nil }); err == nil {
		t.Error("second Watch() error = nil, want already running")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v, want nil", err)
	}
}
