package rulefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// document is the YAML structure of one rule file.
type document struct {
	Rule         string     `yaml:"rule"`
	Description  string     `yaml:"description"`
	Priority     any        `yaml:"priority"`
	Concurrency  string     `yaml:"concurrency"`
	Requirements [][]string `yaml:"requirements"`
	Conditions   yaml.Node  `yaml:"conditions"`
	RunWhen      yaml.Node  `yaml:"run_when"`
	Run          []step     `yaml:"run"`
	Output       yaml.Node  `yaml:"output"`
}

// stepAction is the state operation of a run step.
type stepAction string

const (
	actionSet    stepAction = "set"
	actionAdd    stepAction = "add"
	actionDelete stepAction = "delete"
	actionLog    stepAction = "log"
	actionFail   stepAction = "fail"
)

// step is one entry of the run list.
type step struct {
	Action stepAction

	// Key is the item key for set, add and delete.
	Key string

	// Expr is the value expression for set and add, or the message
	// expression for log and fail.
	Expr *yaml.Node

	// When is an optional guard expression for this step.
	When *yaml.Node

	Line int
}

var stepKeys = map[string]bool{
	"set": true, "add": true, "delete": true, "log": true, "fail": true,
	"value": true, "when": true,
}

// UnmarshalYAML decodes a step mapping, rejecting unknown keys.
func (s *step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %w: expected a mapping", node.Line, ErrInvalidStep)
	}

	s.Line = node.Line
	var value *yaml.Node
	actions := 0

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if !stepKeys[key.Value] {
			return fmt.Errorf("line %d: %w: unknown key %q", key.Line, ErrInvalidStep, key.Value)
		}

		switch key.Value {
		case "value":
			value = val
		case "when":
			s.When = val
		case "set", "add", "delete":
			actions++
			s.Action = stepAction(key.Value)
			s.Key = val.Value
		case "log", "fail":
			actions++
			s.Action = stepAction(key.Value)
			s.Expr = val
		}
	}

	if actions != 1 {
		return fmt.Errorf("line %d: %w: expected exactly one of set, add, delete, log, fail", node.Line, ErrInvalidStep)
	}

	switch s.Action {
	case actionSet, actionAdd:
		if s.Key == "" {
			return fmt.Errorf("line %d: %w: %s needs a key", node.Line, ErrInvalidStep, s.Action)
		}
		if value == nil {
			return fmt.Errorf("line %d: %w: %s %s needs a value", node.Line, ErrInvalidStep, s.Action, s.Key)
		}
		s.Expr = value
	case actionDelete:
		if s.Key == "" {
			return fmt.Errorf("line %d: %w: delete needs a key", node.Line, ErrInvalidStep)
		}
		if value != nil {
			return fmt.Errorf("line %d: %w: delete does not take a value", node.Line, ErrInvalidStep)
		}
	default:
		if value != nil {
			return fmt.Errorf("line %d: %w: %s does not take a value", node.Line, ErrInvalidStep, s.Action)
		}
	}

	return nil
}

// parseDocument decodes exactly one rule document from data.
func parseDocument(data []byte) (*document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingName
		}
		return nil, err
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, ErrMultipleDocuments
	}

	doc.Rule = strings.TrimSpace(doc.Rule)
	if doc.Rule == "" {
		return nil, ErrMissingName
	}

	return &doc, nil
}

// present reports whether an optional node was set in the document.
func present(node *yaml.Node) bool {
	return node != nil && node.Kind != 0
}
