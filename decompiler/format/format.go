// Package format renders form trees as GOAL-flavored s-expressions.
// It exists for tests and the command line tool; the real output of the
// decompiler comes from later passes.
package format

import (
	"github.com/nikandfor/errors"
	"github.com/nikandfor/hacked/hfmt"

	"github.com/VodBox/jak-project/decompiler/ir2"
)

// Form renders a form. A multi-element form prints as (begin ...).
func Form(b []byte, f *ir2.Form) ([]byte, error) {
	if f.Size() == 1 {
		return Element(b, f.At(0))
	}

	b = append(b, "(begin"...)

	b, err := elements(b, f)
	if err != nil {
		return nil, err
	}

	return append(b, ')'), nil
}

func elements(b []byte, f *ir2.Form) (_ []byte, err error) {
	for _, e := range f.Elts() {
		b = append(b, ' ')

		b, err = Element(b, e)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func Element(b []byte, e ir2.FormElement) (_ []byte, err error) {
	switch e := e.(type) {
	case *ir2.EmptyElement:
		return append(b, "(empty)"...), nil
	case *ir2.SimpleAtomElement:
		return append(b, e.Atom.String()...), nil
	case *ir2.SimpleExpressionElement:
		return expression(b, e.Expr), nil
	case *ir2.LoadSourceElement:
		b = hfmt.Appendf(b, "(load.%s%d ", loadKindLetter(e.Kind), e.Size)

		b, err = Form(b, e.Location)
		if err != nil {
			return nil, err
		}

		return append(b, ')'), nil
	case *ir2.SetVarElement:
		b = hfmt.Appendf(b, "(set! %v ", e.Dst)

		b, err = Form(b, e.Src)
		if err != nil {
			return nil, err
		}

		return append(b, ')'), nil
	case *ir2.BranchElement:
		return branch(b, e), nil
	case *ir2.ConditionElement:
		return condition(b, e.Cond), nil
	case *ir2.WhileElement:
		return loop(b, "while", e.Condition, e.Body)
	case *ir2.UntilElement:
		return loop(b, "until", e.Condition, e.Body)
	case *ir2.CondWithElseElement:
		b = append(b, "(cond"...)

		for _, n := range e.Entries {
			b, err = condArm(b, n.Condition, n.Body)
			if err != nil {
				return nil, err
			}
		}

		b = append(b, " (else"...)

		b, err = elements(b, e.Else)
		if err != nil {
			return nil, err
		}

		return append(b, "))"...), nil
	case *ir2.CondNoElseElement:
		b = append(b, "(cond"...)

		for _, n := range e.Entries {
			b, err = condArm(b, n.Condition, n.Body)
			if err != nil {
				return nil, err
			}
		}

		return append(b, ')'), nil
	case *ir2.ShortCircuitElement:
		b = hfmt.Appendf(b, "(%v", e.Kind)

		for _, n := range e.Entries {
			b = append(b, ' ')

			b, err = Form(b, n.Condition)
			if err != nil {
				return nil, err
			}
		}

		return append(b, ')'), nil
	case *ir2.ReturnElement:
		return loop(b, "return", e.ReturnCode, e.DeadCode)
	case *ir2.BreakElement:
		return loop(b, "break", e.ReturnCode, e.DeadCode)
	case *ir2.AbsElement:
		b = append(b, "(abs "...)

		b, err = Form(b, e.Source)
		if err != nil {
			return nil, err
		}

		return append(b, ')'), nil
	case *ir2.AshElement:
		b = append(b, "(ash "...)

		b, err = Form(b, e.Value)
		if err != nil {
			return nil, err
		}

		b = append(b, ' ')

		b, err = Form(b, e.Shift)
		if err != nil {
			return nil, err
		}

		return append(b, ')'), nil
	case *ir2.TypeOfElement:
		b = append(b, "(type-of "...)

		b, err = Form(b, e.Value)
		if err != nil {
			return nil, err
		}

		return append(b, ')'), nil
	default:
		return nil, errors.New("unsupported element: %T", e)
	}
}

func loop(b []byte, name string, head, tail *ir2.Form) (_ []byte, err error) {
	b = hfmt.Appendf(b, "(%s ", name)

	b, err = Form(b, head)
	if err != nil {
		return nil, err
	}

	b, err = elements(b, tail)
	if err != nil {
		return nil, err
	}

	return append(b, ')'), nil
}

func condArm(b []byte, condition, body *ir2.Form) (_ []byte, err error) {
	b = append(b, " ("...)

	b, err = Form(b, condition)
	if err != nil {
		return nil, err
	}

	b, err = elements(b, body)
	if err != nil {
		return nil, err
	}

	return append(b, ')'), nil
}

func expression(b []byte, x ir2.SimpleExpression) []byte {
	if x.IsIdentity() {
		return append(b, x.Arg(0).String()...)
	}

	b = hfmt.Appendf(b, "(%v", x.Kind)

	for i := 0; i < ir2.ExprArgCount(x.Kind); i++ {
		b = hfmt.Appendf(b, " %v", x.Arg(i))
	}

	return append(b, ')')
}

func condition(b []byte, c ir2.Condition) []byte {
	b = hfmt.Appendf(b, "(%v", c.Kind)

	for i := 0; i < c.NumArgs(); i++ {
		b = hfmt.Appendf(b, " %v", c.Arg(i))
	}

	return append(b, ')')
}

func branch(b []byte, e *ir2.BranchElement) []byte {
	op := "b!"
	if e.Op.Likely {
		op = "bl!"
	}

	b = hfmt.Appendf(b, "(%s ", op)
	b = condition(b, e.Op.Cond)
	b = hfmt.Appendf(b, " %v)", e.Op.Delay.Kind)

	return b
}

func loadKindLetter(k ir2.LoadKind) string {
	switch k {
	case ir2.LoadUnsigned:
		return "u"
	case ir2.LoadFloat:
		return "f"
	default:
		return "s"
	}
}
