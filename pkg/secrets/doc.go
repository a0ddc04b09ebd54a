// Package secrets resolves ${secret:name} references in configuration
// values.
//
// Secrets come from an ordered list of providers. The first provider that
// supports a name and returns a value wins:
//
//	manager := secrets.NewManager(logger,
//		secrets.NewEnvProvider("RULEKEEPER_SECRET_"),
//		fileProvider,
//	)
//	token, err := manager.Resolve(ctx, "${secret:git-token}")
//
// EnvProvider maps "git-token" to RULEKEEPER_SECRET_GIT_TOKEN. FileProvider
// reads "<dir>/git-token" and accepts only files with mode 0600 or 0400,
// the layout used by mounted Kubernetes secrets.
package secrets
