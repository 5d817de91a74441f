// Package cfgbuild converts a classified control flow graph into the
// initial form tree. The output is free of explicit branches and ready
// for expression propagation.
package cfgbuild

import (
	"github.com/nikandfor/errors"

	"github.com/VodBox/jak-project/decompiler/ir2"
)

// getConditionBranch finds the branch element ending a form, together
// with the slot holding it so callers can patch it in place. Trailing
// return and break elements are looked through into their dead code.
// The branch is nil when the form does not end in one.
func getConditionBranch(in *ir2.Form) (*ir2.BranchElement, ir2.Slot) {
	if in.Size() == 0 {
		return nil, ir2.Slot{}
	}

	branch, _ := in.Back().(*ir2.BranchElement)
	slot := in.BackRef()

	if branch == nil {
		if ret, ok := in.Back().(*ir2.ReturnElement); ok {
			return getConditionBranch(ret.DeadCode)
		}
	}

	if branch == nil {
		if brk, ok := in.Back().(*ir2.BreakElement); ok {
			return getConditionBranch(brk.DeadCode)
		}
	}

	return branch, slot
}

// getConditionBranchAsVector returns the trailing branch and its
// containing form iff the form has more than one element. Callers use it
// to decide whether the branch can just be popped, or the slot has to be
// rewritten to an empty element instead.
//
// With the current form setup we never have to dig deeper to find the
// branch, so the input form is the container. If this changes, fix it
// here rather than refactoring every cleaner.
func getConditionBranchAsVector(in *ir2.Form) (*ir2.BranchElement, *ir2.Form, error) {
	if in.Size() > 1 {
		branch, ok := in.Back().(*ir2.BranchElement)
		if !ok {
			return nil, nil, errors.New("multi-element form does not end in a branch: %T", in.Back())
		}

		return branch, in, nil
	}

	return nil, nil, nil
}

// delaySlotSetsFalse reports whether the delay slot assigns the branch's
// false value to a register.
// Note: a beql s7, x followed by or y, x, r0 counts. I don't know why,
// but GOAL does this on comparisons to false.
func delaySlotSetsFalse(branch *ir2.BranchElement) bool {
	if branch.Op.Delay.Kind == ir2.DelaySetRegFalse {
		return true
	}

	if branch.Op.Cond.Kind == ir2.CondFalse && branch.Op.Delay.Kind == ir2.DelaySetRegReg {
		condReg := branch.Op.Cond.Arg(0).Var.Reg
		srcReg := branch.Op.Delay.Var(1).Reg

		return condReg == srcReg
	}

	return false
}

// delaySlotSetsTruthy reports whether the delay slot assigns a truthy
// value, like in a GOAL or form: either an explicit #t, or the tested
// value itself after a not-false test.
func delaySlotSetsTruthy(branch *ir2.BranchElement) bool {
	if branch.Op.Delay.Kind == ir2.DelaySetRegTrue {
		return true
	}

	if branch.Op.Cond.Kind == ir2.CondTruthy && branch.Op.Delay.Kind == ir2.DelaySetRegReg {
		condReg := branch.Op.Cond.Arg(0).Var.Reg
		srcReg := branch.Op.Delay.Var(1).Reg

		return condReg == srcReg
	}

	return false
}

// conditionElement lifts the branch predicate out of a branch op.
func conditionElement(branch *ir2.BranchElement) *ir2.ConditionElement {
	return ir2.NewCondition(branch.Op.Cond)
}
