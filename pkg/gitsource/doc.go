// Package gitsource syncs rule files from a Git repository.
//
// A Repository clones the configured branch into a local directory and
// pulls new commits on demand. The rules directory inside the clone is an
// ordinary directory that the loader package reads like any other rules
// path.
//
// # Basic Usage
//
//	repo, err := gitsource.NewRepository(&cfg.Rules.Git, logger)
//	if err != nil {
//		return err
//	}
//
//	commit, err := repo.Sync(ctx)
//	if err != nil {
//		return err
//	}
//
//	cfg.Rules.Path = repo.RulesPath()
//
// # Change Detection
//
// A Poller pulls at a fixed interval and calls back only when a pulled
// commit touches a rule file under the rules directory:
//
//	poller, err := gitsource.NewPoller(repo, &gitsource.PollerConfig{
//		Interval:   30 * time.Second,
//		Extensions: []string{".yaml", ".yml"},
//	}, logger)
//	err = poller.Watch(ctx, reload)
//
// # Authentication
//
// Supported authentication methods:
//   - token: HTTPS with a personal access token
//   - ssh: private key file with optional passphrase
//   - none: public or local repositories
package gitsource
