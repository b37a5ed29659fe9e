// Package condition parses and evaluates the boolean fee-condition
// language. Conditions reference registration fields ("field.name"),
// part involvement ("part.shortname") and membership ("is_member") and
// combine them with not/and/xor/or.
package condition

import (
	"fmt"
	"sort"
	"strings"
)

// Op enumerates AST node kinds.
type Op int

const (
	OpTrue Op = iota
	OpFalse
	OpIsMember
	OpField
	OpPart
	OpNot
	OpAnd
	OpXor
	OpOr
)

// Node is a node of a parsed condition. Leaf nodes carry Name for field
// and part references; inner nodes carry Children. And/xor/or nodes are
// n-ary, flattened over chains of the same operator.
type Node struct {
	Op       Op
	Name     string
	Children []*Node
}

// EvalContext supplies the truth assignment for a single registration.
type EvalContext struct {
	// FieldTrue reports the boolean value of a registration field.
	FieldTrue func(name string) bool
	// PartInvolved reports involvement in the part with that shortname.
	PartInvolved func(shortname string) bool
	// IsMember is the persona's membership flag.
	IsMember bool
}

// Evaluate computes the condition's truth under the given context.
func (n *Node) Evaluate(ctx EvalContext) bool {
	switch n.Op {
	case OpTrue:
		return true
	case OpFalse:
		return false
	case OpIsMember:
		return ctx.IsMember
	case OpField:
		return ctx.FieldTrue != nil && ctx.FieldTrue(n.Name)
	case OpPart:
		return ctx.PartInvolved != nil && ctx.PartInvolved(n.Name)
	case OpNot:
		return !n.Children[0].Evaluate(ctx)
	case OpAnd:
		for _, c := range n.Children {
			if !c.Evaluate(ctx) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range n.Children {
			if c.Evaluate(ctx) {
				return true
			}
		}
		return false
	case OpXor:
		out := false
		for _, c := range n.Children {
			if c.Evaluate(ctx) {
				out = !out
			}
		}
		return out
	}
	return false
}

// ReferencedNames collects the field and part names a condition depends
// on, sorted for deterministic output. Used for dependency tracking and
// referential-integrity checks across renames.
func ReferencedNames(n *Node) (fields, parts []string) {
	fieldSet := map[string]struct{}{}
	partSet := map[string]struct{}{}
	var walk func(*Node)
	walk = func(node *Node) {
		switch node.Op {
		case OpField:
			fieldSet[node.Name] = struct{}{}
		case OpPart:
			partSet[node.Name] = struct{}{}
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(n)
	for name := range fieldSet {
		fields = append(fields, name)
	}
	for name := range partSet {
		parts = append(parts, name)
	}
	sort.Strings(fields)
	sort.Strings(parts)
	return fields, parts
}

// Serialize renders a canonical textual form of the condition: lowercase
// operators, single spaces, parentheses only around a subexpression whose
// operator differs from its parent's. A not node never wraps its own
// output since the prefix form is unambiguous. partSubstitutions rewrites
// part shortnames in place, which keeps stored conditions intact when a
// part is renamed.
func Serialize(n *Node, partSubstitutions map[string]string) string {
	return serialize(n, partSubstitutions, opNone)
}

const opNone Op = -1

func serialize(n *Node, subs map[string]string, parent Op) string {
	switch n.Op {
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	case OpIsMember:
		return "is_member"
	case OpField:
		return "field." + n.Name
	case OpPart:
		name := n.Name
		if repl, ok := subs[name]; ok {
			name = repl
		}
		return "part." + name
	case OpNot:
		return "not " + serialize(n.Children[0], subs, OpNot)
	case OpAnd, OpXor, OpOr:
		sep := map[Op]string{OpAnd: " and ", OpXor: " xor ", OpOr: " or "}[n.Op]
		elems := make([]string, len(n.Children))
		for i, c := range n.Children {
			elems[i] = serialize(c, subs, n.Op)
		}
		out := strings.Join(elems, sep)
		if needsParens(n.Op, parent) {
			return "(" + out + ")"
		}
		return out
	}
	return ""
}

func needsParens(op, parent Op) bool {
	if parent == opNone || parent == op {
		return false
	}
	// Atoms never reach here; a connective below a different connective
	// or below not gets wrapped.
	return true
}

// VisualDebug renders the condition with every atom annotated with its
// live truth value, for human auditing of which references drive a fee.
func VisualDebug(n *Node, ctx EvalContext) string {
	return visualDebug(n, ctx, opNone)
}

func visualDebug(n *Node, ctx EvalContext, parent Op) string {
	verdict := func(s string) string {
		return fmt.Sprintf("%s=%t", s, n.Evaluate(ctx))
	}
	switch n.Op {
	case OpTrue, OpFalse:
		return serialize(n, nil, parent)
	case OpIsMember, OpField, OpPart:
		return verdict(serialize(n, nil, parent))
	case OpNot:
		return "not " + visualDebug(n.Children[0], ctx, OpNot)
	case OpAnd, OpXor, OpOr:
		sep := map[Op]string{OpAnd: " and ", OpXor: " xor ", OpOr: " or "}[n.Op]
		elems := make([]string, len(n.Children))
		for i, c := range n.Children {
			elems[i] = visualDebug(c, ctx, n.Op)
		}
		out := strings.Join(elems, sep)
		if needsParens(n.Op, parent) {
			return "(" + out + ")"
		}
		return out
	}
	return ""
}
