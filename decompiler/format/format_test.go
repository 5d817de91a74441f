package format

import (
	"testing"

	"github.com/VodBox/jak-project/decompiler/ir2"
)

func TestFormatElements(t *testing.T) {
	pool := ir2.NewFormPool()

	set := ir2.NewSetVar(
		ir2.Variable{Reg: ir2.RegV0},
		pool.SingleForm(nil, ir2.NewSimpleExpression(
			ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA0), ir2.IntAtom(4)))),
		true,
	)

	w := ir2.NewWhile(
		pool.SingleForm(nil, ir2.NewCondition(ir2.Cond1(ir2.CondTruthy, ir2.VarAtom(ir2.RegA1)))),
		pool.SingleForm(nil, set),
	)
	w.Cleaned = true

	b, err := Form(nil, pool.SingleForm(nil, w))
	if err != nil {
		t.Errorf("format: %v", err)
	}

	if got, want := string(b), "(while (truthy a1) (set! v0 (+ a0 4)))"; got != want {
		t.Errorf("got  %v\nwant %v", got, want)
	}
}

func TestFormatLoad(t *testing.T) {
	pool := ir2.NewFormPool()

	op := &ir2.LoadVarOp{
		Kind: ir2.LoadUnsigned, Size: 4,
		Dst:  ir2.Variable{Reg: ir2.RegV1},
		Addr: ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA0), ir2.IntAtom(-4)),
	}

	f := pool.SingleForm(nil, op.GetAsForm(pool))

	b, err := Form(nil, f)
	if err != nil {
		t.Errorf("format: %v", err)
	}

	if got, want := string(b), "(set! v1 (load.u4 (+ a0 -4)))"; got != want {
		t.Errorf("got  %v\nwant %v", got, want)
	}
}

func TestFormatBeginAndBranch(t *testing.T) {
	pool := ir2.NewFormPool()

	f := pool.EmptyForm()
	f.PushBack(ir2.NewEmpty())
	f.PushBack(ir2.NewBranch(&ir2.BranchOp{
		Cond:   ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)),
		Delay:  ir2.Delay1(ir2.DelaySetRegFalse, ir2.Variable{Reg: ir2.RegV0}),
		Likely: true,
	}))

	b, err := Form(nil, f)
	if err != nil {
		t.Errorf("format: %v", err)
	}

	if got, want := string(b), "(begin (empty) (bl! (zero? a0) set-false))"; got != want {
		t.Errorf("got  %v\nwant %v", got, want)
	}
}
