package observable

import (
	"slices"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// ExpressionPaths parses an expr-lang expression and returns the dotted
// member paths it reads, sorted. Paths that are a prefix of a longer path in
// the result are dropped, as are function and method names and the
// identifiers now and this (a leading "this." is stripped).
func ExpressionPaths(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, evalFailure("expr", StageParse, expression, "", err)
	}
	collector := &pathCollector{
		paths:   map[ast.Node]string{},
		callees: map[ast.Node]bool{},
	}
	ast.Walk(&tree.Node, collector)

	unique := map[string]bool{}
	for node, path := range collector.paths {
		if collector.callees[node] {
			continue
		}
		path = strings.TrimPrefix(path, "this.")
		if path == "" || path == "this" || path == "now" {
			continue
		}
		unique[path] = true
	}
	paths := make([]string, 0, len(unique))
	for path := range unique {
		shadowed := false
		for other := range unique {
			if strings.HasPrefix(other, path+".") {
				shadowed = true
				break
			}
		}
		if !shadowed {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

type pathCollector struct {
	paths   map[ast.Node]string
	callees map[ast.Node]bool
}

func (c *pathCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.CallNode:
		c.callees[n.Callee] = true
	case *ast.IdentifierNode, *ast.MemberNode:
		if path, ok := memberPath(n); ok {
			c.paths[n] = path
		}
	}
}

// memberPath renders identifier and member chains such as a.b.c; it fails for
// computed members like a[0] or a[key].
func memberPath(node ast.Node) (string, bool) {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return n.Value, n.Value != ""
	case *ast.ChainNode:
		return memberPath(n.Node)
	case *ast.MemberNode:
		property, ok := n.Property.(*ast.StringNode)
		if !ok {
			return "", false
		}
		parent, ok := memberPath(n.Node)
		if !ok {
			return "", false
		}
		return parent + "." + property.Value, true
	}
	return "", false
}
