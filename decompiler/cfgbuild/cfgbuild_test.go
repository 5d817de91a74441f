package cfgbuild

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VodBox/jak-project/decompiler/cfg"
	"github.com/VodBox/jak-project/decompiler/format"
	"github.com/VodBox/jak-project/decompiler/ir2"
)

func buildFn(name string, top cfg.Vtx, blocks [][2]int, ops ...ir2.AtomicOp) *ir2.Function {
	a := &ir2.AtomicOps{Ops: ops}

	for _, b := range blocks {
		a.BlockFirst = append(a.BlockFirst, b[0])
		a.BlockEnd = append(a.BlockEnd, b[1])
	}

	return &ir2.Function{
		Name: name,
		Cfg:  &cfg.Cfg{Top: top, FullyResolved: true},
		IR2:  ir2.IR2{AtomicOps: a, FormPool: ir2.NewFormPool()},
	}
}

func withRegUse(f *ir2.Function, use map[int][]ir2.Register) *ir2.Function {
	f.IR2.HasRegUse = true
	f.IR2.RegUse.Op = make([]ir2.OpUsage, len(f.IR2.AtomicOps.Ops))

	for i := range f.IR2.RegUse.Op {
		f.IR2.RegUse.Op[i].WrittenAndUnused = ir2.NewRegSet()
	}

	for id, regs := range use {
		for _, r := range regs {
			f.IR2.RegUse.Op[id].WrittenAndUnused.Add(r)
		}
	}

	return f
}

func buildAndPrint(t *testing.T, f *ir2.Function) string {
	t.Helper()

	BuildInitialForms(context.Background(), f)
	require.NotNil(t, f.IR2.TopForm, "pass failed on %v", f.Name)

	checkInvariants(t, f.IR2.TopForm)

	b, err := format.Form(nil, f.IR2.TopForm)
	require.NoError(t, err)

	return string(b)
}

// checkInvariants verifies what must hold for every produced tree: no
// branch survives at the end of any child form, every short circuit is
// and or or, all cleaned flags are set, and parent pointers agree with
// the actual structure.
func checkInvariants(t *testing.T, root *ir2.Form) {
	t.Helper()

	var checkForm func(f *ir2.Form)

	checkElt := func(e ir2.FormElement) {
		switch e := e.(type) {
		case *ir2.ShortCircuitElement:
			if e.Kind != ir2.ScAnd && e.Kind != ir2.ScOr {
				t.Errorf("short circuit kind %v", e.Kind)
			}
		case *ir2.WhileElement:
			if !e.Cleaned {
				t.Errorf("uncleaned while")
			}
		case *ir2.CondWithElseElement:
			for i, n := range e.Entries {
				if !n.Cleaned {
					t.Errorf("uncleaned cond-with-else entry %v", i)
				}
			}
		case *ir2.CondNoElseElement:
			for i, n := range e.Entries {
				if !n.Cleaned {
					t.Errorf("uncleaned cond-no-else entry %v", i)
				}
			}
		}

		for _, cf := range ir2.ChildForms(e) {
			if cf.Parent() != e {
				t.Errorf("child form of %T has parent %T", e, cf.Parent())
			}

			if _, ok := cf.Back().(*ir2.BranchElement); ok {
				t.Errorf("child form of %T ends in a branch", e)
			}

			checkForm(cf)
		}
	}

	checkForm = func(f *ir2.Form) {
		for _, e := range f.Elts() {
			if e.Parent() != f {
				t.Errorf("element %T has a stale parent", e)
			}

			checkElt(e)
		}
	}

	checkForm(root)
}

func setOp(id int, dst ir2.Register, x ir2.SimpleExpression) *ir2.SetVarOp {
	return &ir2.SetVarOp{ID: id, Dst: ir2.Variable{Reg: dst}, Src: x}
}

func branchOp(id int, c ir2.Condition, d ir2.BranchDelay, likely bool) *ir2.BranchOp {
	return &ir2.BranchOp{ID: id, Cond: c, Delay: d, Likely: likely}
}

func v(r ir2.Register) ir2.Variable { return ir2.Variable{Reg: r} }

func TestInfiniteLoop(t *testing.T) {
	// (while #t (set! a0 (+ a0 1)))
	f := buildFn("test-infinite", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.InfiniteLoopBlock{Block: &cfg.BlockVtx{BlockID: 0}},
	}}, [][2]int{{0, 2}},
		setOp(0, ir2.RegA0, ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA0), ir2.IntAtom(1))),
		branchOp(1, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(while (always) (set! a0 (+ a0 1)))", out)
}

func TestInfiniteLoopEmptyBody(t *testing.T) {
	// the body is only the loop-back jump.
	f := buildFn("test-spin", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.InfiniteLoopBlock{Block: &cfg.BlockVtx{BlockID: 0}},
	}}, [][2]int{{0, 1}},
		branchOp(0, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(while (always) (empty))", out)
}

func TestWhileLoop(t *testing.T) {
	// layout is jump to condition, test at the bottom.
	f := buildFn("test-while", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.BlockVtx{BlockID: 0},
		&cfg.WhileLoop{
			Condition: &cfg.BlockVtx{BlockID: 2},
			Body:      &cfg.BlockVtx{BlockID: 1},
		},
	}}, [][2]int{{0, 1}, {1, 2}, {2, 3}},
		branchOp(0, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		setOp(1, ir2.RegA1, ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA1), ir2.IntAtom(1))),
		branchOp(2, ir2.Cond1(ir2.CondTruthy, ir2.VarAtom(ir2.RegA0)), ir2.Delay0(ir2.DelayNop), false),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(while (truthy a0) (set! a1 (+ a1 1)))", out)
}

func TestUntilLoop(t *testing.T) {
	f := buildFn("test-until", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.UntilLoop{
			Condition: &cfg.BlockVtx{BlockID: 1},
			Body:      &cfg.BlockVtx{BlockID: 0},
		},
	}}, [][2]int{{0, 1}, {1, 2}},
		setOp(0, ir2.RegA0, ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA0), ir2.IntAtom(1))),
		branchOp(1, ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)), ir2.Delay0(ir2.DelayNop), false),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(until (nonzero? a0) (set! a0 (+ a0 1)))", out)
}

func TestCondNoElseToCompare(t *testing.T) {
	// (set! v0 (< a0 0)) shows up as a one-arm cond setting #f on the
	// fall-through path. It must not become a branching form.
	f := buildFn("test-compare", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondNoElse{Entries: []cfg.CondEntry{
			{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
		}},
	}}, [][2]int{{0, 1}, {1, 2}},
		branchOp(0,
			ir2.Cond1(ir2.CondLessThanZeroSigned, ir2.VarAtom(ir2.RegA0)),
			ir2.Delay1(ir2.DelaySetRegTrue, v(ir2.RegV0)), true),
		setOp(1, ir2.RegV0, ir2.Identity(ir2.SymPtrAtom("#f"))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(set! v0 (<0.s a0))", out)
}

func TestCondNoElseToCompareWithSideEffects(t *testing.T) {
	// the condition block does work before the branch; the compare set
	// replaces the branch and the whole sequence is spliced up.
	f := buildFn("test-compare-seq", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondNoElse{Entries: []cfg.CondEntry{
			{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
		}},
	}}, [][2]int{{0, 2}, {2, 3}},
		setOp(0, ir2.RegA1, ir2.Expr2(ir2.ExprAdd, ir2.VarAtom(ir2.RegA0), ir2.IntAtom(4))),
		branchOp(1,
			ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA1)),
			ir2.Delay1(ir2.DelaySetRegTrue, v(ir2.RegV0)), true),
		setOp(2, ir2.RegV0, ir2.Identity(ir2.SymPtrAtom("#f"))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(begin (set! a1 (+ a0 4)) (set! v0 (zero? a1)))", out)
}

func TestWeirdShortCircuitFails(t *testing.T) {
	// a one-entry short circuit that is no known special form is an
	// unsupported shape; the function ends up without a top form.
	f := buildFn("test-weird-sc", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.ShortCircuit{Entries: []cfg.Vtx{&cfg.BlockVtx{BlockID: 0}}},
	}}, [][2]int{{0, 1}},
		setOp(0, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA0))),
	)

	BuildInitialForms(context.Background(), f)
	require.Nil(t, f.IR2.TopForm)
}

func TestUnresolvedCfgSkipped(t *testing.T) {
	f := buildFn("test-unresolved", &cfg.BlockVtx{BlockID: 0}, [][2]int{{0, 1}},
		setOp(0, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA0))),
	)
	f.Cfg.FullyResolved = false

	BuildInitialForms(context.Background(), f)
	require.Nil(t, f.IR2.TopForm)
}

func TestReturn(t *testing.T) {
	f := buildFn("test-return", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.GotoEnd{
			Body:             &cfg.BlockVtx{BlockID: 0},
			UnreachableBlock: &cfg.BlockVtx{BlockID: 1},
		},
	}}, [][2]int{{0, 2}, {2, 3}},
		setOp(0, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA0))),
		branchOp(1, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		setOp(2, ir2.RegV0, ir2.Identity(ir2.IntAtom(0))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(return (set! v0 a0) (set! v0 0))", out)
}

func TestBreak(t *testing.T) {
	f := buildFn("test-break", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.Break{
			Body:             &cfg.BlockVtx{BlockID: 0},
			UnreachableBlock: &cfg.BlockVtx{BlockID: 1},
		},
	}}, [][2]int{{0, 2}, {2, 3}},
		setOp(0, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA1))),
		branchOp(1, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		setOp(2, ir2.RegV0, ir2.Identity(ir2.IntAtom(0))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(break (set! v0 a1) (set! v0 0))", out)
}
