package rulefile

import (
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// callCollector gathers the names of known conditions called in an
// expression.
type callCollector struct {
	known map[string]bool
	calls []string
}

func (c *callCollector) Visit(node *ast.Node) {
	call, ok := (*node).(*ast.CallNode)
	if !ok {
		return
	}
	if id, ok := call.Callee.(*ast.IdentifierNode); ok && c.known[id.Value] {
		c.calls = append(c.calls, id.Value)
	}
}

// conditionCalls returns the conditions called by source, in order of
// appearance.
func conditionCalls(source string, conditions []string) ([]string, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	c := &callCollector{known: make(map[string]bool, len(conditions))}
	for _, name := range conditions {
		c.known[name] = true
	}
	ast.Walk(&tree.Node, c)
	return c.calls, nil
}

// conditionCycle returns the first cycle in the condition call graph,
// visiting conditions in order. The returned path repeats its first name
// at the end. It returns nil when the graph is acyclic.
func conditionCycle(order []string, calls map[string][]string) []string {
	const (
		visiting = iota + 1
		done
	)

	mark := make(map[string]int, len(order))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch mark[name] {
		case visiting:
			for i, n := range path {
				if n == name {
					return append(append([]string(nil), path[i:]...), name)
				}
			}
		case done:
			return nil
		}

		mark[name] = visiting
		path = append(path, name)
		for _, callee := range calls[name] {
			if cycle := visit(callee); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		mark[name] = done
		return nil
	}

	for _, name := range order {
		if cycle := visit(name); cycle != nil {
			return cycle
		}
	}
	return nil
}

func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
