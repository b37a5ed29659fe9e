package condition

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, s string) *Node {
	t.Helper()
	n, err := Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return n
}

func TestParseRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"and",
		"field.",
		"part.",
		"(field.solo",
		"field.solo or",
		"field.solo extra",
		"banana",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Fatalf("expected parse error for %q", c)
		}
	}
}

func TestEvaluate(t *testing.T) {
	ctx := EvalContext{
		FieldTrue:    func(name string) bool { return name == "solo" },
		PartInvolved: func(name string) bool { return name == "1H" },
		IsMember:     true,
	}
	cases := []struct {
		expr string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"is_member", true},
		{"field.solo", true},
		{"field.other", false},
		{"part.1H", true},
		{"part.2H", false},
		{"not field.solo", false},
		{"field.solo and part.1H", true},
		{"field.solo and part.2H", false},
		{"field.other or part.1H", true},
		{"field.solo xor part.1H", false},
		{"field.solo xor part.2H", true},
		{"not (field.solo and part.2H)", true},
		{"field.solo and part.1H or part.2H", true},
		{"NOT FALSE", true},
	}
	for _, c := range cases {
		got := mustParse(t, c.expr).Evaluate(ctx)
		if got != c.want {
			t.Fatalf("%q evaluated to %t, want %t", c.expr, got, c.want)
		}
	}
}

func TestReferencedNames(t *testing.T) {
	n := mustParse(t, "field.b and (part.2H or field.a) and not part.1H and is_member")
	fields, parts := ReferencedNames(n)
	if strings.Join(fields, ",") != "a,b" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if strings.Join(parts, ",") != "1H,2H" {
		t.Fatalf("unexpected parts: %v", parts)
	}
}

func TestSerializeMinimalParens(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"field.a", "field.a"},
		{"((field.a))", "field.a"},
		{"field.a AND field.b", "field.a and field.b"},
		{"(field.a and field.b) and field.c", "field.a and field.b and field.c"},
		{"field.a and (field.b or field.c)", "field.a and (field.b or field.c)"},
		{"(field.a and field.b) or field.c", "(field.a and field.b) or field.c"},
		{"field.a and field.b or field.c", "(field.a and field.b) or field.c"},
		{"not (field.a and field.b)", "not (field.a and field.b)"},
		{"not field.a", "not field.a"},
		{"not not field.a", "not not field.a"},
		{"field.a xor (field.b xor field.c)", "field.a xor field.b xor field.c"},
	}
	for _, c := range cases {
		got := Serialize(mustParse(t, c.in), nil)
		if got != c.want {
			t.Fatalf("serialize %q = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSerializePartSubstitution(t *testing.T) {
	n := mustParse(t, "part.1H and not part.2H")
	got := Serialize(n, map[string]string{"1H": "FirstHalf"})
	if got != "part.FirstHalf and not part.2H" {
		t.Fatalf("unexpected substitution result %q", got)
	}
	// The original AST is untouched.
	if again := Serialize(n, nil); again != "part.1H and not part.2H" {
		t.Fatalf("substitution mutated AST: %q", again)
	}
}

// Round-trip: parse(serialize(parse(x))) evaluates identically to
// parse(x) under every truth assignment of the referenced names.
func TestSerializeRoundTrip(t *testing.T) {
	exprs := []string{
		"field.a",
		"not field.a",
		"field.a and field.b or field.c",
		"field.a or field.b and field.c",
		"field.a xor (field.b or not field.c)",
		"not (field.a or field.b) and (field.c xor is_member)",
		"part.x and (field.a or part.y) xor not field.b",
		"((field.a and field.b) or (field.c and is_member)) xor part.x",
	}
	for _, expr := range exprs {
		orig := mustParse(t, expr)
		rt := mustParse(t, Serialize(orig, nil))
		fields, parts := ReferencedNames(orig)
		names := append(append([]string{}, fields...), parts...)
		for mask := 0; mask < 1<<(len(names)+1); mask++ {
			truth := map[string]bool{}
			for i, name := range names {
				truth[name] = mask&(1<<i) != 0
			}
			ctx := EvalContext{
				FieldTrue:    func(name string) bool { return truth[name] },
				PartInvolved: func(name string) bool { return truth[name] },
				IsMember:     mask&(1<<len(names)) != 0,
			}
			if orig.Evaluate(ctx) != rt.Evaluate(ctx) {
				t.Fatalf("round-trip changed semantics of %q under %v", expr, truth)
			}
		}
	}
}

func TestVisualDebug(t *testing.T) {
	ctx := EvalContext{
		FieldTrue:    func(name string) bool { return name == "solo" },
		PartInvolved: func(string) bool { return false },
		IsMember:     true,
	}
	n := mustParse(t, "field.solo and not part.1H")
	got := VisualDebug(n, ctx)
	if got != "field.solo=true and not part.1H=false" {
		t.Fatalf("unexpected visual debug output %q", got)
	}
}
