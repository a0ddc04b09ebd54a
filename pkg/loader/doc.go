// Package loader discovers rule files on a directory search path and
// compiles them into engine rules.
//
// The search path is a list of directories separated by the OS path list
// separator. Each directory is scanned non-recursively for files named
// *_rule.yaml or *_rule.yml; every file defines exactly one rule. Missing
// directories are skipped. Unreadable files, invalid definitions and two
// rules sharing a name anywhere on the path abort the whole load.
//
// # Basic Usage
//
//	source, err := loader.NewDirectorySource(&loader.Config{
//	    Path:        "rules:/etc/rulekeeper/rules",
//	    Extensions:  []string{".yaml", ".yml"},
//	    MaxFileSize: 1 << 20,
//	}, nil, logger)
//	if err != nil {
//	    return err
//	}
//
//	eng, err := engine.New(nil, source, logger)
//
// # Watch Mode
//
// FileWatcher watches the search directories with fsnotify and debounces
// bursts of rule file events into one callback, which typically builds a
// fresh engine from the same source.
package loader
