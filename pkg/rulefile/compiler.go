package rulefile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"mercator-hq/rulekeeper/pkg/engine"
)

// Names bound in every expression environment. Conditions cannot use them.
const (
	envState = "state"
	envArgs  = "args"
	envHas   = "has"
)

// Compiler turns rule documents into engine rules.
type Compiler struct {
	types *engine.TypeRegistry
}

// NewCompiler creates a compiler resolving requirement type names through
// types. A nil registry uses engine.DefaultTypes().
func NewCompiler(types *engine.TypeRegistry) *Compiler {
	if types == nil {
		types = engine.DefaultTypes()
	}
	return &Compiler{types: types}
}

// Types returns the type registry used by the compiler.
func (c *Compiler) Types() *engine.TypeRegistry {
	return c.types
}

// Compile builds one rule from the YAML document in data. file is recorded
// as the rule's source location. Malformed documents are reported as
// *engine.LoadError; invalid rule definitions as *engine.DefinitionError.
func (c *Compiler) Compile(data []byte, file string) (*engine.Rule, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, &engine.LoadError{
			FilePath: file,
			Message:  "invalid rule document",
			Cause:    err,
		}
	}

	p := &program{file: file}
	return engine.Define(doc.Rule, func(r *engine.Rule) error {
		return c.build(r, doc, p)
	})
}

// build applies doc to r through the rule builder.
func (c *Compiler) build(r *engine.Rule, doc *document, p *program) error {
	r.SetFile(p.file)

	if doc.Priority != nil {
		if err := r.SetPriority(doc.Priority); err != nil {
			return err
		}
	}

	if doc.Concurrency != "" {
		mode, err := engine.ParseConcurrency(doc.Concurrency)
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "concurrency", Cause: err}
		}
		if err := r.SetConcurrency(mode); err != nil {
			return err
		}
	}

	for _, entry := range doc.Requirements {
		args, err := c.requirementArgs(entry)
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "requirement", Cause: err}
		}
		if err := r.Requirement(args...); err != nil {
			return err
		}
	}

	conditions, err := conditionNodes(&doc.Conditions)
	if err != nil {
		return &engine.DefinitionError{Rule: doc.Rule, Field: "conditions", Cause: err}
	}
	for _, cond := range conditions {
		if !IsReservedName(cond.name) {
			p.conditions = append(p.conditions, cond.name)
		}
	}

	calls := make(map[string][]string, len(conditions))
	for _, cond := range conditions {
		if IsReservedName(cond.name) {
			return &engine.DefinitionError{
				Rule:  doc.Rule,
				Field: "condition",
				Cause: fmt.Errorf("%w: %s", engine.ErrReservedCondition, cond.name),
			}
		}

		compiled, err := p.compile(cond.node, "condition "+cond.name)
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "condition", Cause: err}
		}
		if err := r.Condition(cond.name, p.condition(compiled)); err != nil {
			return err
		}

		called, err := conditionCalls(cond.node.Value, p.conditions)
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "condition", Cause: err}
		}
		calls[cond.name] = called
	}

	if cycle := conditionCycle(p.conditions, calls); cycle != nil {
		return &engine.DefinitionError{
			Rule:  doc.Rule,
			Field: "conditions",
			Cause: &CompileError{
				File:  p.file,
				Line:  conditionLine(conditions, cycle[0]),
				Field: "condition " + cycle[0],
				Cause: fmt.Errorf("%w: %s", ErrConditionCycle, formatCycle(cycle)),
			},
		}
	}

	if present(&doc.RunWhen) {
		compiled, err := p.compile(&doc.RunWhen, "run_when")
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "run_when", Cause: err}
		}
		if err := r.RunWhen(p.guard(compiled)); err != nil {
			return err
		}
	}

	for i, s := range doc.Run {
		cs, err := p.compileStep(i, s)
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "run", Cause: err}
		}
		p.steps = append(p.steps, cs)
	}

	if present(&doc.Output) {
		compiled, err := p.compile(&doc.Output, "output")
		if err != nil {
			return &engine.DefinitionError{Rule: doc.Rule, Field: "output", Cause: err}
		}
		p.output = compiled
	}

	if len(p.steps) > 0 || p.output != nil {
		return r.Run(p.logic)
	}
	return nil
}

// requirementArgs converts a requirement entry into builder arguments,
// resolving the trailing type name. Entries of the wrong length are passed
// through so the builder reports the arity error.
func (c *Compiler) requirementArgs(entry []string) ([]any, error) {
	args := make([]any, len(entry))
	for i, s := range entry {
		args[i] = strings.TrimSpace(s)
	}

	if len(entry) == 0 || len(entry) > 2 {
		return args, nil
	}

	last := len(args) - 1
	t, err := c.types.Lookup(args[last].(string))
	if err != nil {
		return nil, err
	}
	args[last] = t
	return args, nil
}

// IsReservedName reports whether name is bound by the expression
// environment and therefore cannot name a condition.
func IsReservedName(name string) bool {
	switch name {
	case envState, envArgs, envHas:
		return true
	}
	return engine.IsBuiltinCondition(name)
}

type namedNode struct {
	name string
	node *yaml.Node
}

// conditionNodes returns the condition expressions in document order.
func conditionNodes(node *yaml.Node) ([]namedNode, error) {
	if !present(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: conditions must be a mapping of name to expression", node.Line)
	}

	out := make([]namedNode, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(node.Content[i].Value)
		if name == "" {
			return nil, fmt.Errorf("line %d: condition name is empty", node.Content[i].Line)
		}
		out = append(out, namedNode{name: name, node: node.Content[i+1]})
	}
	return out, nil
}

func conditionLine(conditions []namedNode, name string) int {
	for _, cond := range conditions {
		if cond.name == name {
			return cond.node.Line
		}
	}
	return 0
}

// program holds the compiled expressions of one rule file.
type program struct {
	file       string
	conditions []string
	steps      []compiledStep
	output     *compiledExpr
}

type compiledExpr struct {
	field string
	line  int
	prog  *vm.Program
}

type compiledStep struct {
	action stepAction
	key    string
	value  *compiledExpr
	when   *compiledExpr
	line   int
}

// compile compiles the expression held by node against the environment of
// this rule, so unknown names and condition typos fail at load time.
func (p *program) compile(node *yaml.Node, field string) (*compiledExpr, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, &CompileError{
			File:  p.file,
			Line:  node.Line,
			Field: field,
			Cause: errors.New("expected an expression string"),
		}
	}

	source := strings.TrimSpace(node.Value)
	if source == "" {
		return nil, &CompileError{File: p.file, Line: node.Line, Field: field, Cause: ErrEmptyExpression}
	}

	prog, err := expr.Compile(source, expr.Env(newEnv(nil, p.conditions, nil)))
	if err != nil {
		return nil, &CompileError{File: p.file, Line: node.Line, Field: field, Cause: err}
	}

	return &compiledExpr{field: field, line: node.Line, prog: prog}, nil
}

func (p *program) compileStep(index int, s step) (compiledStep, error) {
	cs := compiledStep{action: s.Action, key: s.Key, line: s.Line}
	label := fmt.Sprintf("run[%d].%s", index, s.Action)

	if s.Expr != nil {
		value, err := p.compile(s.Expr, label)
		if err != nil {
			return cs, err
		}
		cs.value = value
	}

	if s.When != nil {
		when, err := p.compile(s.When, label+".when")
		if err != nil {
			return cs, err
		}
		cs.when = when
	}

	return cs, nil
}
