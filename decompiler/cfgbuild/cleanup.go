package cfgbuild

import (
	"github.com/nikandfor/errors"

	"github.com/VodBox/jak-project/decompiler/ir2"
)

// stripTrailingAlwaysBranch removes the unconditional jump ending a form.
// If the form has more in it, the branch is popped; if the jump is all
// there is, the slot becomes an empty element so there is still a body to
// point at. That case is rare, as you would expect.
func stripTrailingAlwaysBranch(form *ir2.Form, what string) error {
	jump, slot := getConditionBranch(form)
	if jump == nil {
		return errors.New("%v: no trailing branch", what)
	}

	if jump.Op.Delay.Kind != ir2.DelayNop {
		return errors.New("%v: branch delay is %v, want nop", what, jump.Op.Delay.Kind)
	}

	if jump.Op.Cond.Kind != ir2.CondAlways {
		return errors.New("%v: branch condition is %v, want always", what, jump.Op.Cond.Kind)
	}

	asEnd, seq, err := getConditionBranchAsVector(form)
	if err != nil {
		return errors.Wrap(err, "%v", what)
	}

	if asEnd != nil {
		seq.PopBack()
	} else {
		slot.Set(ir2.NewEmpty())
	}

	return nil
}

// cleanUpCondWithElse removes the internal branches of a cond-with-else
// and replaces each condition branch with the actual predicate. It does
// not rebalance the leading condition; this runs way before expression
// compaction.
func cleanUpCondWithElse(pool *ir2.FormPool, cwe *ir2.CondWithElseElement) error {
	for i := range cwe.Entries {
		e := &cwe.Entries[i]

		// don't reclean already cleaned things.
		if e.Cleaned {
			continue
		}

		jumpToNext, slot := getConditionBranch(e.Condition)
		if jumpToNext == nil {
			return errors.New("cond-with-else: condition has no trailing branch")
		}

		if jumpToNext.Op.Delay.Kind != ir2.DelayNop {
			return errors.New("cond-with-else: condition branch delay is %v", jumpToNext.Op.Delay.Kind)
		}

		// the branch skipped this arm on a false predicate, so the
		// kept condition is the inverse.
		replacement := conditionElement(jumpToNext)
		replacement.Invert()
		slot.Set(replacement)

		err := stripTrailingAlwaysBranch(e.Body, "cond-with-else body")
		if err != nil {
			return err
		}

		e.Cleaned = true
	}

	return nil
}

// cleanUpUntilLoop replaces the branch ending an until loop's condition
// with the inverted predicate: the branch jumps out of the loop on the
// negated until test.
func cleanUpUntilLoop(pool *ir2.FormPool, u *ir2.UntilElement) error {
	branch, slot := getConditionBranch(u.Condition)
	if branch == nil {
		return errors.New("until: condition has no trailing branch")
	}

	if branch.Op.Delay.Kind != ir2.DelayNop {
		return errors.New("until: condition branch delay is %v", branch.Op.Delay.Kind)
	}

	replacement := conditionElement(branch)
	replacement.Invert()
	slot.Set(replacement)

	return nil
}

// cleanUpInfiniteWhileLoop removes the loop-back jump at the end of an
// infinite while body.
func cleanUpInfiniteWhileLoop(pool *ir2.FormPool, w *ir2.WhileElement) error {
	err := stripTrailingAlwaysBranch(w.Body, "infinite while body")
	if err != nil {
		return err
	}

	w.Cleaned = true // so we don't try this later

	return nil
}

func cleanUpReturn(pool *ir2.FormPool, r *ir2.ReturnElement) error {
	return stripTrailingAlwaysBranch(r.ReturnCode, "return code")
}

func cleanUpBreak(pool *ir2.FormPool, b *ir2.BreakElement) error {
	return stripTrailingAlwaysBranch(b.ReturnCode, "break code")
}

// getAtomSrc is the single atom of a form holding one identity
// expression, or nil.
func getAtomSrc(form *ir2.Form) *ir2.SimpleAtom {
	asExpr, ok := form.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok {
		return nil
	}

	if !asExpr.Expr.IsIdentity() {
		return nil
	}

	a := asExpr.Expr.Arg(0)

	return &a
}

// convertCondNoElseToCompare rewrites a degenerate one-arm cond into a
// comparison. A GOAL comparison producing a boolean is recognized as a
// cond-no-else by the CFG analysis, but it should not be decompiled as a
// branching statement. The expected shape is a single entry whose body
// sets the destination to #f on the fall-through path.
func convertCondNoElseToCompare(pool *ir2.FormPool, f *ir2.Function, slot ir2.Slot, parentForm *ir2.Form) error {
	cne, ok := slot.Get().(*ir2.CondNoElseElement)
	if !ok {
		return errors.New("convert to compare: not a cond-no-else: %T", slot.Get())
	}

	condition, _ := getConditionBranch(cne.Entries[0].Condition)
	if condition == nil {
		return errors.New("convert to compare: condition has no trailing branch")
	}

	body, ok := cne.Entries[0].Body.TryAsSingleElement().(*ir2.SetVarElement)
	if !ok {
		return errors.New("convert to compare: body is not a single set")
	}

	dst := body.Dst

	srcAtom := getAtomSrc(body.Src)
	if srcAtom == nil || !srcAtom.IsSymPtr() || srcAtom.Sym != "#f" {
		return errors.New("convert to compare: body source is not '#f")
	}

	if len(cne.Entries) != 1 {
		return errors.New("convert to compare: %v entries", len(cne.Entries))
	}

	conditionAsSingle, _ := cne.Entries[0].Condition.TryAsSingleElement().(*ir2.BranchElement)

	crf := pool.SingleForm(nil, conditionElement(condition))
	replacement := ir2.NewSetVar(dst, crf, true)

	if conditionAsSingle != nil {
		slot.Set(replacement)

		return nil
	}

	// the condition form is side-effecting ops followed by the branch:
	// swap the branch for the set, then splice the whole sequence into
	// the parent in place of the cond.
	seq := cne.Entries[0].Condition
	seq.PopBack()
	seq.PushBack(replacement)

	parentForm.PopBack()

	for _, x := range seq.Elts() {
		parentForm.PushBack(x)
	}

	return nil
}

// cleanUpCondNoElse replaces the internal branches of a cond-no-else,
// recording which registers the delay slots set to false. If the whole
// thing is really a comparison it is converted instead. The exact
// behavior of the delay set-false writes isn't fully clear; it seems
// inconsistent, and the expression propagation step has to deal with it.
func cleanUpCondNoElse(pool *ir2.FormPool, f *ir2.Function, slot ir2.Slot, parentForm *ir2.Form) error {
	cne, ok := slot.Get().(*ir2.CondNoElseElement)
	if !ok {
		return errors.New("cond-no-else: unexpected element %T", slot.Get())
	}

	for idx := range cne.Entries {
		e := &cne.Entries[idx]
		if e.Cleaned {
			continue
		}

		jumpToNext, branchSlot := getConditionBranch(e.Condition)
		if jumpToNext == nil {
			return errors.New("cond-no-else: condition has no trailing branch")
		}

		if jumpToNext.Op.Delay.Kind == ir2.DelaySetRegTrue && len(cne.Entries) == 1 {
			return convertCondNoElseToCompare(pool, f, slot, parentForm)
		}

		if k := jumpToNext.Op.Delay.Kind; k != ir2.DelaySetRegFalse && k != ir2.DelayNop {
			return errors.New("cond-no-else: condition branch delay is %v", k)
		}

		if jumpToNext.Op.Cond.Kind == ir2.CondAlways {
			return errors.New("cond-no-else: condition is always")
		}

		if jumpToNext.Op.Delay.Kind == ir2.DelaySetRegFalse {
			if e.FalseDestination != nil {
				return errors.New("cond-no-else: false destination already set")
			}

			v := jumpToNext.Op.Delay.Var(0)
			e.FalseDestination = &v
		}

		e.OriginalConditionBranch = branchSlot.Get()

		replacement := conditionElement(jumpToNext)
		replacement.Invert()
		branchSlot.Set(replacement)

		e.Cleaned = true

		if idx != len(cne.Entries)-1 {
			err := stripTrailingAlwaysBranch(e.Body, "cond-no-else body")
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// cleanUpCondNoElseFinal runs once the whole tree is built: it promotes
// the recorded false destinations to the cond's final destination and
// uses liveness to decide whether the boolean result is consumed.
func cleanUpCondNoElseFinal(f *ir2.Function, cne *ir2.CondNoElseElement) error {
	for idx := range cne.Entries {
		fr := cne.Entries[idx].FalseDestination
		if fr == nil {
			return errors.New("cond-no-else final: entry %v has no false destination", idx)
		}

		cne.FinalDestination = fr.Reg
	}

	lastBranch, ok := cne.Entries[len(cne.Entries)-1].OriginalConditionBranch.(*ir2.BranchElement)
	if !ok {
		return errors.New("cond-no-else final: original condition branch missing")
	}

	if f.IR2.HasRegUse {
		info := f.IR2.RegUse.Op[lastBranch.Op.OpID()]
		cne.UsedAsValue = !info.WrittenAndUnused.Has(cne.FinalDestination)
	}

	// all other delay slot writes must be dead, subsumed by the cond's
	// own result.
	for i := 0; i < len(cne.Entries)-1; i++ {
		if !f.IR2.HasRegUse {
			continue
		}

		branch, ok := cne.Entries[i].OriginalConditionBranch.(*ir2.BranchElement)
		if !ok {
			return errors.New("cond-no-else final: entry %v branch missing", i)
		}

		reg := cne.Entries[i].FalseDestination

		info := f.IR2.RegUse.Op[branch.Op.OpID()]
		if !info.WrittenAndUnused.Has(reg.Reg) {
			return errors.New("cond-no-else final: %v live out of entry %v", reg.Reg, i)
		}
	}

	return nil
}

// cleanUpWhileLoops fixes each while in a sequence: CFG layout emits a
// jump to the condition block and tests at the bottom, so the jump before
// the loop goes away and the condition branch becomes its predicate.
func cleanUpWhileLoops(pool *ir2.FormPool, sequence *ir2.Form) error {
	var toRemove []int // branches to remove, by index in this sequence

	for i := 0; i < sequence.Size(); i++ {
		w, ok := sequence.At(i).(*ir2.WhileElement)
		if !ok || w.Cleaned {
			continue
		}

		if i == 0 {
			return errors.New("while: no room for an intro branch")
		}

		prev, ok := sequence.At(i - 1).(*ir2.BranchElement)
		if !ok {
			return errors.New("while: preceding element is %T, want branch", sequence.At(i-1))
		}

		// the CFG builder checked the branch destination already, but
		// the condition is on us.
		if prev.Op.Cond.Kind != ir2.CondAlways {
			return errors.New("while: intro branch condition is %v", prev.Op.Cond.Kind)
		}

		if prev.Op.Delay.Kind != ir2.DelayNop {
			return errors.New("while: intro branch delay is %v", prev.Op.Delay.Kind)
		}

		toRemove = append(toRemove, i-1)

		conditionBranch, slot := getConditionBranch(w.Condition)
		if conditionBranch == nil {
			return errors.New("while: condition has no trailing branch")
		}

		if conditionBranch.Op.Delay.Kind != ir2.DelayNop {
			return errors.New("while: condition branch delay is %v", conditionBranch.Op.Delay.Kind)
		}

		// taken means loop again, so the predicate is kept as is.
		slot.Set(conditionElement(conditionBranch))

		w.Cleaned = true
	}

	for i := len(toRemove) - 1; i >= 0; i-- {
		sequence.RemoveAt(toRemove[i])
	}

	return nil
}
