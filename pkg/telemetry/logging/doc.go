// Package logging builds the structured logger used across rulekeeper.
//
// The engine never creates its own logger; callers build one here from
// configuration and inject it:
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "debug",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	eng, err := engine.New(nil, source, logger)
//
// Three formats are supported: json, text (logfmt-style key=value) and
// console, which is text without timestamps.
package logging
