package condition

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse builds the AST for a textual condition. Keywords are matched
// case-insensitively; field and part names are case-sensitive and extend
// to the next whitespace or parenthesis.
func Parse(input string) (*Node, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return node, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(runes[start:i])})
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty condition")
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.done() {
		return false
	}
	t := p.toks[p.pos]
	if t.kind == tokWord && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for p.acceptKeyword("or") {
		next, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return flatten(OpOr, children), nil
}

func (p *parser) parseXor() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for p.acceptKeyword("xor") {
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return flatten(OpXor, children), nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for p.acceptKeyword("and") {
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	return flatten(OpAnd, children), nil
}

func (p *parser) parseNot() (*Node, error) {
	if p.acceptKeyword("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Node{Op: OpNot, Children: []*Node{inner}}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Node, error) {
	if p.done() {
		return nil, fmt.Errorf("unexpected end of condition")
	}
	t := p.toks[p.pos]
	switch {
	case t.kind == tokLParen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.toks[p.pos].kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	case t.kind == tokWord:
		p.pos++
		word := t.text
		switch {
		case strings.EqualFold(word, "true"):
			return &Node{Op: OpTrue}, nil
		case strings.EqualFold(word, "false"):
			return &Node{Op: OpFalse}, nil
		case strings.EqualFold(word, "is_member"):
			return &Node{Op: OpIsMember}, nil
		case strings.HasPrefix(strings.ToLower(word), "field."):
			name := word[len("field."):]
			if name == "" {
				return nil, fmt.Errorf("empty field reference")
			}
			return &Node{Op: OpField, Name: name}, nil
		case strings.HasPrefix(strings.ToLower(word), "part."):
			name := word[len("part."):]
			if name == "" {
				return nil, fmt.Errorf("empty part reference")
			}
			return &Node{Op: OpPart, Name: name}, nil
		default:
			return nil, fmt.Errorf("unknown identifier %q", word)
		}
	default:
		return nil, fmt.Errorf("unexpected token %q", t.text)
	}
}

// flatten collapses a single-child chain and merges nested nodes of the
// same connective, so serialization is canonical regardless of how the
// input was parenthesized along one operator.
func flatten(op Op, children []*Node) *Node {
	if len(children) == 1 {
		return children[0]
	}
	merged := make([]*Node, 0, len(children))
	for _, c := range children {
		if c.Op == op {
			merged = append(merged, c.Children...)
		} else {
			merged = append(merged, c)
		}
	}
	return &Node{Op: op, Children: merged}
}
