package frontend

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ppValue is the value of a preprocessor condition. known is false when the
// condition depends on something the builder cannot see, such as a macro
// with a non-numeric body or a function-like macro call.
type ppValue struct {
	val   int64
	known bool
}

func knownCond(v int64) ppValue { return ppValue{val: v, known: true} }

func boolCond(ok bool) ppValue {
	if ok {
		return knownCond(1)
	}
	return knownCond(0)
}

// define records a #define seen in a lowered arm
func (b *builder) define(n *sitter.Node) {
	name := b.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	var value string
	if n.Type() == "preproc_def" {
		value = strings.TrimSpace(b.text(n.ChildByFieldName("value")))
	} else {
		value = "(" // function-like, never numeric
	}
	b.macros[name] = value
}

// undef handles "#undef NAME", which the grammar parses as a generic call.
func (b *builder) undef(n *sitter.Node) {
	if strings.TrimSpace(b.text(n.ChildByFieldName("directive"))) != "#undef" {
		return
	}
	if name := strings.TrimSpace(b.text(n.ChildByFieldName("argument"))); name != "" {
		delete(b.macros, name)
	}
}

// activeArm returns the arm of a conditional group the compiler would see.
// Arms whose condition is known false are skipped. The first arm whose
// condition cannot be decided is taken, so a group never contributes more
// than one arm. nil means no arm is active.
func (b *builder) activeArm(n *sitter.Node) *sitter.Node {
	for arm := n; arm != nil; arm = arm.ChildByFieldName("alternative") {
		switch arm.Type() {
		case "preproc_else":
			return arm
		case "preproc_if", "preproc_elif":
			c := b.evalCond(arm.ChildByFieldName("condition"))
			if !c.known || c.val != 0 {
				return arm
			}
		case "preproc_ifdef", "preproc_elifdef":
			_, defined := b.macros[b.text(arm.ChildByFieldName("name"))]
			negated := arm.ChildCount() > 0 && strings.HasSuffix(arm.Child(0).Type(), "ndef")
			if defined != negated {
				return arm
			}
		default:
			return nil
		}
	}
	return nil
}

func (b *builder) evalCond(n *sitter.Node) ppValue {
	if n == nil {
		return ppValue{}
	}
	switch n.Type() {
	case "number_literal":
		return parsePPNumber(b.text(n))
	case "identifier":
		value, ok := b.macros[b.text(n)]
		if !ok {
			// undefined identifiers are 0 in #if
			return knownCond(0)
		}
		return parsePPNumber(value)
	case "preproc_defined":
		id := firstNamed(n)
		if id == nil {
			return ppValue{}
		}
		_, ok := b.macros[b.text(id)]
		return boolCond(ok)
	case "parenthesized_expression":
		return b.evalCond(firstNamed(n))
	case "unary_expression":
		x := b.evalCond(n.ChildByFieldName("argument"))
		if !x.known {
			return x
		}
		switch b.text(n.ChildByFieldName("operator")) {
		case "!":
			return boolCond(x.val == 0)
		case "-":
			return knownCond(-x.val)
		case "+":
			return x
		case "~":
			return knownCond(^x.val)
		}
	case "binary_expression":
		return b.evalBinary(n)
	}
	return ppValue{}
}

func (b *builder) evalBinary(n *sitter.Node) ppValue {
	op := b.text(n.ChildByFieldName("operator"))
	l := b.evalCond(n.ChildByFieldName("left"))
	r := b.evalCond(n.ChildByFieldName("right"))
	switch op {
	case "&&":
		if (l.known && l.val == 0) || (r.known && r.val == 0) {
			return knownCond(0)
		}
		if l.known && r.known {
			return knownCond(1)
		}
		return ppValue{}
	case "||":
		if (l.known && l.val != 0) || (r.known && r.val != 0) {
			return knownCond(1)
		}
		if l.known && r.known {
			return knownCond(0)
		}
		return ppValue{}
	}
	if !l.known || !r.known {
		return ppValue{}
	}
	switch op {
	case "==":
		return boolCond(l.val == r.val)
	case "!=":
		return boolCond(l.val != r.val)
	case "<":
		return boolCond(l.val < r.val)
	case "<=":
		return boolCond(l.val <= r.val)
	case ">":
		return boolCond(l.val > r.val)
	case ">=":
		return boolCond(l.val >= r.val)
	case "+":
		return knownCond(l.val + r.val)
	case "-":
		return knownCond(l.val - r.val)
	case "*":
		return knownCond(l.val * r.val)
	case "/":
		if r.val != 0 {
			return knownCond(l.val / r.val)
		}
	case "%":
		if r.val != 0 {
			return knownCond(l.val % r.val)
		}
	case "&":
		return knownCond(l.val & r.val)
	case "|":
		return knownCond(l.val | r.val)
	case "^":
		return knownCond(l.val ^ r.val)
	case "<<":
		if r.val >= 0 && r.val < 64 {
			return knownCond(l.val << uint(r.val))
		}
	case ">>":
		if r.val >= 0 && r.val < 64 {
			return knownCond(l.val >> uint(r.val))
		}
	}
	return ppValue{}
}

// parsePPNumber reads an integer literal as the preprocessor does: C
// suffixes are dropped, and 0x and leading-zero octal prefixes apply.
func parsePPNumber(s string) ppValue {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimRight(s, "uUlL")
	if s == "" {
		return ppValue{}
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return ppValue{}
		}
		v = int64(u)
	}
	return knownCond(v)
}
