package ir2

import (
	"fmt"

	"github.com/nikandfor/tlog/tlwire"
)

type (
	// Register is an EE GPR. s7 holds the false symbol, r0 is hardwired zero.
	Register uint8

	// Variable is a register access produced by the atomic op builder.
	Variable struct {
		Reg Register
	}

	AtomKind uint8

	// SimpleAtom is a leaf operand: a variable, an integer constant,
	// a symbol pointer, a symbol value, or the empty list.
	SimpleAtom struct {
		Kind AtomKind
		Int  int64
		Sym  string
		Var  Variable
	}

	ExprKind uint8

	// SimpleExpression is a single operation over atoms.
	SimpleExpression struct {
		Kind ExprKind
		Args []SimpleAtom
	}

	CondKind uint8

	// Condition is a lifted branch predicate: a kind plus 0-2 source atoms.
	Condition struct {
		Kind CondKind
		Src  [2]SimpleAtom
	}

	DelayKind uint8

	// BranchDelay describes the instruction in a branch delay slot.
	BranchDelay struct {
		Kind DelayKind
		Vars [3]Variable
	}

	LoadKind uint8
)

const (
	RegR0 Register = iota
	RegAT
	RegV0
	RegV1
	RegA0
	RegA1
	RegA2
	RegA3
	RegT0
	RegT1
	RegT2
	RegT3
	RegT4
	RegT5
	RegT6
	RegT7
	RegS0
	RegS1
	RegS2
	RegS3
	RegS4
	RegS5
	RegS6
	RegS7
	RegT8
	RegT9
	RegK0
	RegK1
	RegGP
	RegSP
	RegFP
	RegRA

	NumRegisters
)

var regNames = [NumRegisters]string{
	"r0", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

func (r Register) String() string {
	if r < NumRegisters {
		return regNames[r]
	}

	return fmt.Sprintf("reg%d", uint8(r))
}

// RegisterByName resolves an EE register name. ok is false for unknown names.
func RegisterByName(name string) (Register, bool) {
	for i, n := range regNames {
		if n == name {
			return Register(i), true
		}
	}

	return 0, false
}

func (r Register) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, r.String())
}

func (v Variable) String() string { return v.Reg.String() }

const (
	AtomVar AtomKind = iota
	AtomInt
	AtomSymPtr
	AtomSymVal
	AtomEmptyList
)

func VarAtom(r Register) SimpleAtom     { return SimpleAtom{Kind: AtomVar, Var: Variable{Reg: r}} }
func IntAtom(x int64) SimpleAtom        { return SimpleAtom{Kind: AtomInt, Int: x} }
func SymPtrAtom(name string) SimpleAtom { return SimpleAtom{Kind: AtomSymPtr, Sym: name} }
func SymValAtom(name string) SimpleAtom { return SimpleAtom{Kind: AtomSymVal, Sym: name} }
func EmptyListAtom() SimpleAtom         { return SimpleAtom{Kind: AtomEmptyList} }

func (a SimpleAtom) IsVar() bool    { return a.Kind == AtomVar }
func (a SimpleAtom) IsInt() bool    { return a.Kind == AtomInt }
func (a SimpleAtom) IsSymPtr() bool { return a.Kind == AtomSymPtr }

func (a SimpleAtom) String() string {
	switch a.Kind {
	case AtomVar:
		return a.Var.String()
	case AtomInt:
		return fmt.Sprintf("%d", a.Int)
	case AtomSymPtr:
		return "'" + a.Sym
	case AtomSymVal:
		return a.Sym
	case AtomEmptyList:
		return "'()"
	default:
		return fmt.Sprintf("atom%d", a.Kind)
	}
}

const (
	ExprIdentity ExprKind = iota
	ExprAdd
	ExprSub
	ExprMul
	ExprDiv
	ExprAnd
	ExprOr
	ExprNot
	ExprNeg
	ExprLeftShift
	ExprRightShiftArith
	ExprRightShiftLogic
)

var exprOps = map[ExprKind]string{
	ExprIdentity:        "id",
	ExprAdd:             "+",
	ExprSub:             "-",
	ExprMul:             "*",
	ExprDiv:             "/",
	ExprAnd:             "logand",
	ExprOr:              "logior",
	ExprNot:             "lognot",
	ExprNeg:             "neg",
	ExprLeftShift:       "shl",
	ExprRightShiftArith: "sar",
	ExprRightShiftLogic: "shr",
}

func (k ExprKind) String() string {
	if s, ok := exprOps[k]; ok {
		return s
	}

	return fmt.Sprintf("expr%d", uint8(k))
}

// ExprArgCount is the operand count the op builder emits for a kind.
func ExprArgCount(k ExprKind) int {
	switch k {
	case ExprIdentity, ExprNot, ExprNeg:
		return 1
	default:
		return 2
	}
}

func Identity(a SimpleAtom) SimpleExpression {
	return SimpleExpression{Kind: ExprIdentity, Args: []SimpleAtom{a}}
}

func Expr1(k ExprKind, a SimpleAtom) SimpleExpression {
	return SimpleExpression{Kind: k, Args: []SimpleAtom{a}}
}

func Expr2(k ExprKind, a, b SimpleAtom) SimpleExpression {
	return SimpleExpression{Kind: k, Args: []SimpleAtom{a, b}}
}

func (e SimpleExpression) IsIdentity() bool { return e.Kind == ExprIdentity }

func (e SimpleExpression) Arg(i int) SimpleAtom { return e.Args[i] }

const (
	CondAlways CondKind = iota
	CondNever
	CondFalse
	CondTruthy
	CondZero
	CondNonzero
	CondLessThanZeroSigned
	CondGeqZeroSigned
	CondGreaterThanZeroSigned
	CondLeqZeroSigned
	CondEqual
	CondNotEqual
	CondLessThanSigned
	CondGeqSigned
	CondGreaterThanSigned
	CondLeqSigned
	CondLessThanUnsigned
	CondGeqUnsigned
	CondGreaterThanUnsigned
	CondLeqUnsigned

	NumCondKinds
)

var condNames = [NumCondKinds]string{
	"always", "never", "not", "truthy", "zero?", "nonzero?",
	"<0.s", ">=0.s", ">0.s", "<=0.s",
	"=", "!=", "<.s", ">=.s", ">.s", "<=.s",
	"<.u", ">=.u", ">.u", "<=.u",
}

func (k CondKind) String() string {
	if k < NumCondKinds {
		return condNames[k]
	}

	return fmt.Sprintf("cond%d", uint8(k))
}

// CondArgCount is the number of source atoms a condition kind carries.
func CondArgCount(k CondKind) int {
	switch k {
	case CondAlways, CondNever:
		return 0
	case CondEqual, CondNotEqual,
		CondLessThanSigned, CondGeqSigned, CondGreaterThanSigned, CondLeqSigned,
		CondLessThanUnsigned, CondGeqUnsigned, CondGreaterThanUnsigned, CondLeqUnsigned:
		return 2
	default:
		return 1
	}
}

var condInverse = [NumCondKinds]CondKind{
	CondAlways:                CondNever,
	CondNever:                 CondAlways,
	CondFalse:                 CondTruthy,
	CondTruthy:                CondFalse,
	CondZero:                  CondNonzero,
	CondNonzero:               CondZero,
	CondLessThanZeroSigned:    CondGeqZeroSigned,
	CondGeqZeroSigned:         CondLessThanZeroSigned,
	CondGreaterThanZeroSigned: CondLeqZeroSigned,
	CondLeqZeroSigned:         CondGreaterThanZeroSigned,
	CondEqual:                 CondNotEqual,
	CondNotEqual:              CondEqual,
	CondLessThanSigned:        CondGeqSigned,
	CondGeqSigned:             CondLessThanSigned,
	CondGreaterThanSigned:     CondLeqSigned,
	CondLeqSigned:             CondGreaterThanSigned,
	CondLessThanUnsigned:      CondGeqUnsigned,
	CondGeqUnsigned:           CondLessThanUnsigned,
	CondGreaterThanUnsigned:   CondLeqUnsigned,
	CondLeqUnsigned:           CondGreaterThanUnsigned,
}

// InvertCond negates a condition kind. It is total over the kinds branch
// ops produce; condition polarity is only ever flipped here.
func InvertCond(k CondKind) CondKind {
	if k >= NumCondKinds {
		panic(k)
	}

	return condInverse[k]
}

func Cond0(k CondKind) Condition { return Condition{Kind: k} }

func Cond1(k CondKind, a SimpleAtom) Condition {
	return Condition{Kind: k, Src: [2]SimpleAtom{a, {}}}
}

func Cond2(k CondKind, a, b SimpleAtom) Condition {
	return Condition{Kind: k, Src: [2]SimpleAtom{a, b}}
}

func (c Condition) NumArgs() int { return CondArgCount(c.Kind) }

func (c Condition) Arg(i int) SimpleAtom { return c.Src[i] }

const (
	DelayNop DelayKind = iota
	DelayNoDelay
	DelaySetRegFalse
	DelaySetRegTrue
	DelaySetRegReg
	DelaySetBinteger
	DelaySetPair
	DelayNegate
	DelayDsllv

	NumDelayKinds
)

var delayNames = [NumDelayKinds]string{
	"nop", "no-delay", "set-false", "set-true", "set-reg",
	"set-binteger", "set-pair", "negate", "dsllv",
}

func (k DelayKind) String() string {
	if k < NumDelayKinds {
		return delayNames[k]
	}

	return fmt.Sprintf("delay%d", uint8(k))
}

func Delay0(k DelayKind) BranchDelay { return BranchDelay{Kind: k} }

func Delay1(k DelayKind, a Variable) BranchDelay {
	return BranchDelay{Kind: k, Vars: [3]Variable{a, {}, {}}}
}

func Delay2(k DelayKind, a, b Variable) BranchDelay {
	return BranchDelay{Kind: k, Vars: [3]Variable{a, b, {}}}
}

func Delay3(k DelayKind, a, b, c Variable) BranchDelay {
	return BranchDelay{Kind: k, Vars: [3]Variable{a, b, c}}
}

func (d BranchDelay) Var(i int) Variable { return d.Vars[i] }

const (
	LoadSigned LoadKind = iota
	LoadUnsigned
	LoadFloat
)

func (k LoadKind) String() string {
	switch k {
	case LoadSigned:
		return "signed"
	case LoadUnsigned:
		return "unsigned"
	case LoadFloat:
		return "float"
	default:
		return fmt.Sprintf("load%d", uint8(k))
	}
}
