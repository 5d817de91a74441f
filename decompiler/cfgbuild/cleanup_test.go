package cfgbuild

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VodBox/jak-project/decompiler/cfg"
	"github.com/VodBox/jak-project/decompiler/ir2"
)

func TestCondWithElse(t *testing.T) {
	f := buildFn("test-cwe", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondWithElse{
			Entries: []cfg.CondEntry{
				{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
			},
			Else: &cfg.BlockVtx{BlockID: 2},
		},
	}}, [][2]int{{0, 1}, {1, 3}, {3, 4}},
		branchOp(0, ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)), ir2.Delay0(ir2.DelayNop), false),
		setOp(1, ir2.RegV1, ir2.Identity(ir2.VarAtom(ir2.RegA1))),
		branchOp(2, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		setOp(3, ir2.RegV1, ir2.Identity(ir2.VarAtom(ir2.RegA2))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(cond ((nonzero? a0) (set! v1 a1)) (else (set! v1 a2)))", out)
}

func TestCondWithElseEmptyBody(t *testing.T) {
	// the arm body is only the jump to the end: there was still GOAL
	// code testing for the case, so it becomes (empty), not nothing.
	f := buildFn("test-cwe-empty", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondWithElse{
			Entries: []cfg.CondEntry{
				{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
			},
			Else: &cfg.BlockVtx{BlockID: 2},
		},
	}}, [][2]int{{0, 1}, {1, 2}, {2, 3}},
		branchOp(0, ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)), ir2.Delay0(ir2.DelayNop), false),
		branchOp(1, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		setOp(2, ir2.RegV1, ir2.Identity(ir2.VarAtom(ir2.RegA2))),
	)

	out := buildAndPrint(t, f)
	require.Equal(t, "(cond ((nonzero? a0) (empty)) (else (set! v1 a2)))", out)
}

func TestCondNoElseFinalPass(t *testing.T) {
	// two arms writing the same result register; the delay writes of
	// non-last arms are dead and the final liveness decides value use.
	f := buildFn("test-cne", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondNoElse{Entries: []cfg.CondEntry{
			{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
			{Condition: &cfg.BlockVtx{BlockID: 2}, Body: &cfg.BlockVtx{BlockID: 3}},
		}},
	}}, [][2]int{{0, 1}, {1, 3}, {3, 4}, {4, 5}},
		branchOp(0,
			ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)),
			ir2.Delay1(ir2.DelaySetRegFalse, v(ir2.RegV0)), true),
		setOp(1, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA1))),
		branchOp(2, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		branchOp(3,
			ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA2)),
			ir2.Delay1(ir2.DelaySetRegFalse, v(ir2.RegV0)), true),
		setOp(4, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA3))),
	)
	withRegUse(f, map[int][]ir2.Register{0: {ir2.RegV0}})

	out := buildAndPrint(t, f)
	require.Equal(t, "(cond ((nonzero? a0) (set! v0 a1)) ((nonzero? a2) (set! v0 a3)))", out)

	cne := f.IR2.TopForm.TryAsSingleElement().(*ir2.CondNoElseElement)
	require.Equal(t, ir2.RegV0, cne.FinalDestination)
	require.True(t, cne.UsedAsValue)
}

func TestMergeCondElseWithSC(t *testing.T) {
	// the else arm is really a short circuit guarding one more case;
	// the fake nesting flattens back into a single cond.
	f := buildFn("test-merge", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.CondWithElse{
			Entries: []cfg.CondEntry{
				{Condition: &cfg.BlockVtx{BlockID: 0}, Body: &cfg.BlockVtx{BlockID: 1}},
			},
			Else: &cfg.SequenceVtx{Seq: []cfg.Vtx{
				&cfg.ShortCircuit{Entries: []cfg.Vtx{
					&cfg.BlockVtx{BlockID: 2},
					&cfg.BlockVtx{BlockID: 3},
				}},
				&cfg.CondNoElse{Entries: []cfg.CondEntry{
					{Condition: &cfg.BlockVtx{BlockID: 4}, Body: &cfg.BlockVtx{BlockID: 5}},
				}},
			}},
		},
	}}, [][2]int{{0, 1}, {1, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 7}},
		branchOp(0,
			ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)),
			ir2.Delay1(ir2.DelaySetRegFalse, v(ir2.RegV1)), true),
		setOp(1, ir2.RegV1, ir2.Identity(ir2.VarAtom(ir2.RegA1))),
		branchOp(2, ir2.Cond0(ir2.CondAlways), ir2.Delay0(ir2.DelayNop), false),
		branchOp(3,
			ir2.Cond1(ir2.CondFalse, ir2.VarAtom(ir2.RegA2)),
			ir2.Delay1(ir2.DelaySetRegFalse, v(ir2.RegV0)), true),
		setOp(4, ir2.RegV0, ir2.Identity(ir2.VarAtom(ir2.RegA3))),
		branchOp(5,
			ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegV0)),
			ir2.Delay1(ir2.DelaySetRegFalse, v(ir2.RegV1)), true),
		setOp(6, ir2.RegV1, ir2.Identity(ir2.VarAtom(ir2.RegA3))),
	)
	withRegUse(f, map[int][]ir2.Register{0: {ir2.RegV1}, 3: {}, 5: {}})

	out := buildAndPrint(t, f)
	require.Equal(t,
		"(cond ((nonzero? a0) (set! v1 a1))"+
			" ((begin (and (truthy a2) (set! v0 a3)) (nonzero? v0)) (set! v1 a3)))",
		out)

	cne := f.IR2.TopForm.TryAsSingleElement().(*ir2.CondNoElseElement)
	require.Len(t, cne.Entries, 2)
	require.Equal(t, ir2.RegV1, cne.FinalDestination)
	require.True(t, cne.UsedAsValue)
}

func TestWhileWithoutIntroBranchFails(t *testing.T) {
	// a while with nothing in front of it has no intro jump to remove.
	f := buildFn("test-bad-while", &cfg.SequenceVtx{Seq: []cfg.Vtx{
		&cfg.WhileLoop{
			Condition: &cfg.BlockVtx{BlockID: 1},
			Body:      &cfg.BlockVtx{BlockID: 0},
		},
	}}, [][2]int{{0, 1}, {1, 2}},
		setOp(0, ir2.RegA1, ir2.Identity(ir2.VarAtom(ir2.RegA0))),
		branchOp(1, ir2.Cond1(ir2.CondTruthy, ir2.VarAtom(ir2.RegA0)), ir2.Delay0(ir2.DelayNop), false),
	)

	BuildInitialForms(context.Background(), f)
	require.Nil(t, f.IR2.TopForm)
}

func TestCleanersIdempotent(t *testing.T) {
	// cleaned entries short circuit the cleaner, so running it again
	// changes nothing.
	pool := ir2.NewFormPool()

	branch := ir2.NewBranch(&ir2.BranchOp{
		ID:    0,
		Cond:  ir2.Cond1(ir2.CondZero, ir2.VarAtom(ir2.RegA0)),
		Delay: ir2.Delay0(ir2.DelayNop),
	})
	endJump := ir2.NewBranch(&ir2.BranchOp{
		ID:    1,
		Cond:  ir2.Cond0(ir2.CondAlways),
		Delay: ir2.Delay0(ir2.DelayNop),
	})

	body := pool.EmptyForm()
	body.PushBack(ir2.NewSetVar(v(ir2.RegV1), pool.SingleForm(nil, ir2.NewSimpleExpression(ir2.Identity(ir2.VarAtom(ir2.RegA1)))), false))
	body.PushBack(endJump)

	cwe := ir2.NewCondWithElse(
		[]ir2.CondWithElseEntry{{Condition: pool.SingleForm(nil, branch), Body: body}},
		pool.SingleForm(nil, ir2.NewEmpty()),
	)

	err := cleanUpCondWithElse(pool, cwe)
	require.NoError(t, err)
	require.True(t, cwe.Entries[0].Cleaned)

	condition := cwe.Entries[0].Condition.TryAsSingleElement().(*ir2.ConditionElement)
	require.Equal(t, ir2.CondNonzero, condition.Cond.Kind)

	// second run must not touch the extracted condition again.
	err = cleanUpCondWithElse(pool, cwe)
	require.NoError(t, err)
	require.Equal(t, ir2.CondNonzero, condition.Cond.Kind)
	require.Equal(t, 1, cwe.Entries[0].Body.Size())
}
