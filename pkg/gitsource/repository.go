package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/gofrs/flock"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/rulekeeper/pkg/config"
)

var (
	// ErrNotCloned is returned by operations that need a local clone
	// before Clone or Sync has run.
	ErrNotCloned = errors.New("repository not cloned")

	// ErrLocked is returned when another process holds the clone lock.
	ErrLocked = errors.New("clone directory is locked by another process")
)

const lockRetryDelay = 50 * time.Millisecond

// Repository manages the local clone of a rules repository.
type Repository struct {
	config  *config.GitConfig
	auth    AuthProvider
	timeout time.Duration
	logger  *slog.Logger

	// fileLock guards the clone across processes; mu guards repo within
	// this one.
	fileLock *flock.Flock
	mu       sync.RWMutex
	repo     *gogit.Repository
}

// NewRepository creates a repository manager for cfg. Nothing is fetched
// until Clone or Sync is called.
func NewRepository(cfg *config.GitConfig, logger *slog.Logger) (*Repository, error) {
	if cfg == nil {
		return nil, errors.New("git config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, errors.New("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, errors.New("branch cannot be empty")
	}

	auth, err := NewAuthProvider(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	cfgCopy := *cfg
	if cfgCopy.LocalPath == "" {
		cfgCopy.LocalPath = filepath.Join(os.TempDir(), "rulekeeper-rules")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultGitTimeout
	}

	return &Repository{
		config:   &cfgCopy,
		auth:     auth,
		timeout:  timeout,
		logger:   logger.With("component", "gitsource", "repository", cfg.Repository),
		fileLock: flock.New(filepath.Clean(cfgCopy.LocalPath) + ".lock"),
	}, nil
}

// Clone clones the configured branch into LocalPath. An existing clone is
// opened instead unless CleanOnStart is set, in which case it is removed
// first.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.withFileLock(ctx, func() error {
		return r.cloneLocked(ctx)
	})
}

// withFileLock runs fn while holding the clone's file lock, waiting at
// most the configured timeout for it.
func (r *Repository) withFileLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.fileLock.Path()), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	locked, err := r.fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLocked
		}
		return fmt.Errorf("failed to lock clone directory: %w", err)
	}
	if !locked {
		return ErrLocked
	}

	defer func() {
		if err := r.fileLock.Unlock(); err != nil {
			r.logger.Warn("failed to release clone lock", "path", r.fileLock.Path(), "error", err)
		}
	}()

	return fn()
}

func (r *Repository) cloneLocked(ctx context.Context) error {
	localPath := r.config.LocalPath

	if r.config.CleanOnStart {
		if err := os.RemoveAll(localPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		r.logger.Debug("opened existing clone", "path", localPath)
		return nil
	}

	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, localPath, false, &gogit.CloneOptions{
		URL:           r.config.Repository,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Depth:         r.config.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	r.repo = repo
	r.logger.Info("cloned rules repository",
		"branch", r.config.Branch,
		"path", localPath,
		"auth", r.auth.Type(),
		"duration", time.Since(start),
	)
	return nil
}

// Sync makes the local clone current: it clones when needed and pulls
// otherwise. It returns the commit now checked out.
func (r *Repository) Sync(ctx context.Context) (*CommitInfo, error) {
	r.mu.RLock()
	cloned := r.repo != nil
	r.mu.RUnlock()

	if !cloned {
		if err := r.Clone(ctx); err != nil {
			return nil, err
		}
	}

	if _, err := r.Pull(ctx); err != nil {
		return nil, err
	}
	return r.CurrentCommit()
}

// Pull fetches and fast-forwards the configured branch. Only files that
// differ between the old and new HEAD are reported.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	var result *PullResult
	err := r.withFileLock(ctx, func() error {
		var err error
		result, err = r.pullLocked(ctx)
		return err
	})
	return result, err
}

func (r *Repository) pullLocked(ctx context.Context) (*PullResult, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	fromSHA := head.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	head, err = r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	toSHA := head.Hash().String()

	result := &PullResult{
		FromSHA:    fromSHA,
		ToSHA:      toSHA,
		HadChanges: fromSHA != toSHA,
	}

	if result.HadChanges {
		files, err := r.changedFiles(fromSHA, toSHA)
		if err != nil {
			return nil, fmt.Errorf("failed to get changed files: %w", err)
		}
		result.ChangedFiles = files
		r.logger.Info("pulled new commits",
			"from_sha", shortSHA(fromSHA),
			"to_sha", shortSHA(toSHA),
			"changed_files", len(files),
		)
	}

	return result, nil
}

// CurrentCommit returns metadata about HEAD.
func (r *Repository) CurrentCommit() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		SHA:        commit.Hash.String(),
		Author:     commit.Author.Name,
		Email:      commit.Author.Email,
		Timestamp:  commit.Author.When,
		Message:    commit.Message,
		Branch:     r.config.Branch,
		Repository: r.config.Repository,
	}, nil
}

// changedFiles lists repository-relative paths that differ between two
// commits. Deleted files are reported by their old name.
func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// LocalPath returns the clone directory.
func (r *Repository) LocalPath() string {
	return r.config.LocalPath
}

// RulesPath returns the rules directory inside the clone.
func (r *Repository) RulesPath() string {
	return filepath.Join(r.config.LocalPath, filepath.FromSlash(r.config.Path))
}

// IsRulePath reports whether a repository-relative path lies under the
// rules directory.
func (r *Repository) IsRulePath(name string) bool {
	dir := filepath.ToSlash(filepath.Clean(r.config.Path))
	if dir == "." || dir == "" {
		return true
	}
	name = filepath.ToSlash(name)
	return len(name) > len(dir) && name[:len(dir)] == dir && name[len(dir)] == '/'
}
