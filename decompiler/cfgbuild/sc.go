package cfgbuild

import (
	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/VodBox/jak-project/decompiler/cfg"
	"github.com/VodBox/jak-project/decompiler/ir2"
)

// scLiveOut checks the result register against the branch op's liveness
// info. Disagreement between entries is logged but not fatal; the first
// entry's verdict wins.
func scLiveOut(f *ir2.Function, branch *ir2.BranchElement, dest ir2.Register, i int, liveOut *bool) {
	if !f.IR2.HasRegUse {
		return
	}

	info := f.IR2.RegUse.Op[branch.Op.OpID()]
	this := !info.WrittenAndUnused.Has(dest)

	if i == 0 {
		*liveOut = this
	} else if *liveOut != this {
		tlog.Printw("bad live out result", "func", f.Name, "at_zero", *liveOut, "at", i, "now", this)
	}
}

// tryCleanUpSCAsAnd tries to commit a short circuit as an and: every
// non-last entry's delay slot must set the same register to false.
func tryCleanUpSCAsAnd(pool *ir2.FormPool, f *ir2.Function, sc *ir2.ShortCircuitElement) (bool, error) {
	var dest ir2.Variable

	for i := 0; i < len(sc.Entries)-1; i++ {
		branch, _ := getConditionBranch(sc.Entries[i].Condition)
		if branch == nil {
			return false, errors.New("and: entry %v has no trailing branch", i)
		}

		if !delaySlotSetsFalse(branch) {
			return false, nil
		}

		if i == 0 {
			dest = branch.Op.Delay.Var(0)
		} else if dest.Reg != branch.Op.Delay.Var(0).Reg {
			return false, nil
		}
	}

	sc.Kind = ir2.ScAnd
	sc.FinalResult = dest

	liveOut := false

	// now get rid of the branches.
	for i := 0; i < len(sc.Entries)-1; i++ {
		branch, slot := getConditionBranch(sc.Entries[i].Condition)
		if branch == nil {
			return false, errors.New("and: entry %v branch vanished", i)
		}

		scLiveOut(f, branch, dest.Reg, i, &liveOut)

		// each test branched out on failure, so the kept condition is
		// the inverse.
		replacement := conditionElement(branch)
		replacement.Invert()
		slot.Set(replacement)
	}

	sc.UsedAsValue = liveOut

	return true, nil
}

// tryCleanUpSCAsOr tries to commit a short circuit as an or. This would
// convert an and into a very strange or, so always try and first.
func tryCleanUpSCAsOr(pool *ir2.FormPool, f *ir2.Function, sc *ir2.ShortCircuitElement) (bool, error) {
	var dest ir2.Variable

	for i := 0; i < len(sc.Entries)-1; i++ {
		branch, _ := getConditionBranch(sc.Entries[i].Condition)
		if branch == nil {
			return false, errors.New("or: entry %v has no trailing branch", i)
		}

		if !delaySlotSetsTruthy(branch) {
			return false, nil
		}

		if i == 0 {
			dest = branch.Op.Delay.Var(0)
		} else if dest.Reg != branch.Op.Delay.Var(0).Reg {
			return false, nil
		}
	}

	sc.Kind = ir2.ScOr
	sc.FinalResult = dest

	liveOut := false

	for i := 0; i < len(sc.Entries)-1; i++ {
		branch, slot := getConditionBranch(sc.Entries[i].Condition)
		if branch == nil {
			return false, errors.New("or: entry %v branch vanished", i)
		}

		scLiveOut(f, branch, dest.Reg, i, &liveOut)

		slot.Set(conditionElement(branch))
	}

	sc.UsedAsValue = liveOut

	return true, nil
}

// trySplittingNestedSC handles a short circuit the CFG pass conflated.
// A form like (and x (or y z)) comes in as one vertex; when and/or both
// fail, the entries after the first polarity change are split into a
// nested short circuit and both halves are cleaned recursively, so
// (and x (or y (and a b))) works at any depth.
func trySplittingNestedSC(pool *ir2.FormPool, f *ir2.Function, sc *ir2.ShortCircuitElement) (bool, error) {
	firstBranch, _ := getConditionBranch(sc.Entries[0].Condition)
	if firstBranch == nil {
		return false, errors.New("split sc: first entry has no trailing branch")
	}

	firstIsAnd := delaySlotSetsFalse(firstBranch)
	firstIsOr := delaySlotSetsTruthy(firstBranch)

	if firstIsAnd == firstIsOr {
		return false, errors.New("split sc: first delay is neither and nor or polarity")
	}

	firstDifferent := -1

	for i := 1; i < len(sc.Entries)-1; i++ {
		branch, _ := getConditionBranch(sc.Entries[i].Condition)
		if branch == nil {
			return false, errors.New("split sc: entry %v has no trailing branch", i)
		}

		isAnd := delaySlotSetsFalse(branch)
		isOr := delaySlotSetsTruthy(branch)

		if isAnd == isOr {
			return false, errors.New("split sc: entry %v delay is neither and nor or polarity", i)
		}

		if firstIsAnd != isAnd {
			firstDifferent = i
			break
		}
	}

	if firstDifferent == -1 {
		return false, errors.New("split sc: no polarity change found")
	}

	nested := make([]ir2.ShortCircuitEntry, 0, len(sc.Entries)-firstDifferent)
	nested = append(nested, sc.Entries[firstDifferent:]...)
	sc.Entries = sc.Entries[:firstDifferent]

	nestedSC := ir2.NewShortCircuit(nested)

	err := cleanUpSC(pool, f, nestedSC)
	if err != nil {
		return false, errors.Wrap(err, "nested")
	}

	// the real trick: the nested circuit becomes a single entry of the
	// outer one.
	sc.Entries = append(sc.Entries, ir2.ShortCircuitEntry{
		Condition: pool.SingleForm(sc, nestedSC),
	})

	err = cleanUpSC(pool, f, sc)
	if err != nil {
		return false, errors.Wrap(err, "outer")
	}

	return true, nil
}

// cleanUpSC classifies a short circuit as and, or, or a nested split.
// Anything else is an unsupported shape.
func cleanUpSC(pool *ir2.FormPool, f *ir2.Function, sc *ir2.ShortCircuitElement) error {
	if len(sc.Entries) <= 1 {
		return errors.New("short circuit with %v entries", len(sc.Entries))
	}

	ok, err := tryCleanUpSCAsAnd(pool, f, sc)
	if err != nil {
		return errors.Wrap(err, "as and")
	}

	if ok {
		return nil
	}

	ok, err = tryCleanUpSCAsOr(pool, f, sc)
	if err != nil {
		return errors.Wrap(err, "as or")
	}

	if ok {
		return nil
	}

	ok, err = trySplittingNestedSC(pool, f, sc)
	if err != nil {
		return errors.Wrap(err, "split")
	}

	if !ok {
		return errors.New("short circuit is not and, or, or split")
	}

	return nil
}

// trySCAsAbs recognizes the integer abs idiom: a single likely branch on
// the sign with a negate in the delay slot.
func trySCAsAbs(pool *ir2.FormPool, f *ir2.Function, vtx *cfg.ShortCircuit) (*ir2.Form, error) {
	if len(vtx.Entries) != 1 {
		return nil, nil
	}

	b0, ok := vtx.Entries[0].(*cfg.BlockVtx)
	if !ok {
		return nil, nil
	}

	b0Form, err := cfgToIR(pool, f, b0)
	if err != nil {
		return nil, err
	}

	branch, ok := b0Form.Back().(*ir2.BranchElement)
	if !ok {
		return nil, nil
	}

	// todo - an abs of an unsigned value would be missed here.
	if !branch.Op.Likely ||
		branch.Op.Cond.Kind != ir2.CondLessThanZeroSigned ||
		branch.Op.Delay.Kind != ir2.DelayNegate {
		return nil, nil
	}

	input := branch.Op.Cond.Arg(0)
	output := branch.Op.Delay.Var(0)

	if !input.IsVar() {
		return nil, errors.New("abs: source is not a variable")
	}

	if input.Var.Reg != branch.Op.Delay.Var(1).Reg {
		return nil, errors.New("abs: negate source disagrees with the test")
	}

	b0Form.PopBack()

	srcVar := pool.SingleForm(nil, ir2.NewSimpleAtom(input))
	srcAbs := pool.SingleForm(nil, ir2.NewAbs(srcVar))
	b0Form.PushBack(ir2.NewSetVar(output, srcAbs, true))

	return b0Form, nil
}

// trySCAsAsh recognizes GOAL's arithmetic shift, which takes a signed
// shift amount to pick the direction:
//
//	bgezl s5, L109    ; s5 is the shift amount
//	dsllv a0, a0, s5  ; a0 is both input and output here
//
//	dsubu a1, r0, s5  ; a1 is a temp here
//	dsrav a0, a0, a1  ; a0 is both input and output here
func trySCAsAsh(pool *ir2.FormPool, f *ir2.Function, vtx *cfg.ShortCircuit) (*ir2.Form, error) {
	if len(vtx.Entries) != 2 {
		return nil, nil
	}

	// todo, the first entry could possibly be something more
	// complicated, depending on ordering.
	b0 := vtx.Entries[0]

	b1, ok := vtx.Entries[1].(*cfg.BlockVtx)
	if !ok {
		return nil, nil
	}

	b0Form, err := cfgToIR(pool, f, b0)
	if err != nil {
		return nil, err
	}

	b1Form, err := cfgToIR(pool, f, b1)
	if err != nil {
		return nil, err
	}

	branch, ok := b0Form.Back().(*ir2.BranchElement)
	if !ok || b1Form.Size() != 2 {
		return nil, nil
	}

	if !branch.Op.Likely ||
		branch.Op.Cond.Kind != ir2.CondGeqZeroSigned ||
		branch.Op.Delay.Kind != ir2.DelayDsllv {
		return nil, nil
	}

	saIn := branch.Op.Cond.Arg(0)
	if !saIn.IsVar() {
		return nil, errors.New("ash: shift amount is not a variable")
	}

	result := branch.Op.Delay.Var(0)
	valueIn := branch.Op.Delay.Var(1)
	saIn2 := branch.Op.Delay.Var(2)

	if saIn.Var.Reg != saIn2.Reg {
		return nil, errors.New("ash: dsllv shift amount disagrees with the test")
	}

	dsubuCandidate := b1Form.At(0)
	dsravCandidate := b1Form.At(1)

	var clobber ir2.Register
	if !isOp2(dsubuCandidate, ir2.ExprNeg, anyReg(), saIn.Var.Reg, &clobber) {
		return nil, nil
	}

	isArith := isOp3(dsravCandidate, ir2.ExprRightShiftArith, exactReg(result.Reg), valueIn.Reg, clobber, nil)
	isLogical := isOp3(dsravCandidate, ir2.ExprRightShiftLogic, exactReg(result.Reg), valueIn.Reg, clobber, nil)

	if !isArith && !isLogical {
		return nil, nil
	}

	dsubuSet, ok1 := dsubuCandidate.(*ir2.SetVarElement)
	dsravSet, ok2 := dsravCandidate.(*ir2.SetVarElement)

	if !ok1 || !ok2 {
		return nil, errors.New("ash: shift ops are not sets")
	}

	var clobberVar *ir2.Variable
	if clobber != result.Reg {
		v := dsubuSet.Dst
		clobberVar = &v
	}

	destVar := branch.Op.Delay.Var(0)
	shiftAtom := branch.Op.Cond.Arg(0)

	dsravExpr, ok := dsravSet.Src.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok {
		return nil, errors.New("ash: right shift source is not an expression")
	}

	valueAtom := dsravExpr.Expr.Arg(0)

	b0Form.PopBack()

	valueForm := pool.SingleForm(nil, ir2.NewSimpleAtom(valueAtom))
	shiftForm := pool.SingleForm(nil, ir2.NewSimpleAtom(shiftAtom))
	ashForm := pool.SingleForm(nil, ir2.NewAsh(shiftForm, valueForm, clobberVar, isArith))
	b0Form.PushBack(ir2.NewSetVar(destVar, ashForm, true))

	return b0Form, nil
}

// trySCAsTypeOf recognizes the type-of idiom, tried before the normal
// and/or expressions. The assembly looks like this:
//
//	dsll32 v1, a0, 29    ;; (set! v1 (shl a0 61))
//	beql v1, r0, L60
//	lw v1, binteger(s7)
//
//	bgtzl v1, L60
//	lw v1, pair(s7)
//
//	lwu v1, -4(a0)       ;; (set! v1 (l.wu (+.i a0 -4)))
//	L60:
//
// Some of these checks may be a little overkill, but it's a nice sanity
// check that everything upstream decoded correctly.
func trySCAsTypeOf(pool *ir2.FormPool, f *ir2.Function, vtx *cfg.ShortCircuit) (*ir2.Form, error) {
	if len(vtx.Entries) != 3 {
		return nil, nil
	}

	b0 := vtx.Entries[0]

	b1, ok1 := vtx.Entries[1].(*cfg.BlockVtx)
	b2, ok2 := vtx.Entries[2].(*cfg.BlockVtx)

	if !ok1 || !ok2 {
		return nil, nil
	}

	b0Form, err := cfgToIR(pool, f, b0)
	if err != nil {
		return nil, err
	}

	if b0Form.Size() <= 1 {
		return nil, nil
	}

	b1Form, err := cfgToIR(pool, f, b1)
	if err != nil {
		return nil, err
	}

	b2Form, err := cfgToIR(pool, f, b2)
	if err != nil {
		return nil, err
	}

	secondBranch, ok1 := b1Form.TryAsSingleElement().(*ir2.BranchElement)
	elseCase, ok2 := b2Form.TryAsSingleElement().(*ir2.SetVarElement)

	if !ok1 || !ok2 {
		return nil, nil
	}

	setShift, ok := b0Form.At(b0Form.Size() - 2).(*ir2.SetVarElement)
	if !ok {
		return nil, nil
	}

	tempReg0 := setShift.Dst

	shift, ok := setShift.Src.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok || shift.Expr.Kind != ir2.ExprLeftShift {
		return nil, nil
	}

	if !shift.Expr.Arg(0).IsVar() {
		return nil, errors.New("type-of: shift source is not a variable")
	}

	srcReg := shift.Expr.Arg(0).Var

	sa := shift.Expr.Arg(1)
	if !sa.IsInt() || sa.Int != 61 {
		return nil, nil
	}

	firstBranch, ok := b0Form.Back().(*ir2.BranchElement)
	if !ok ||
		firstBranch.Op.Delay.Kind != ir2.DelaySetBinteger ||
		firstBranch.Op.Cond.Kind != ir2.CondZero ||
		!firstBranch.Op.Likely {
		return nil, nil
	}

	tempReg := firstBranch.Op.Cond.Arg(0).Var
	if tempReg.Reg != tempReg0.Reg {
		return nil, errors.New("type-of: shifted register disagrees with the test")
	}

	dstReg := firstBranch.Op.Delay.Var(0)

	if secondBranch.Op.Delay.Kind != ir2.DelaySetPair ||
		secondBranch.Op.Cond.Kind != ir2.CondGreaterThanZeroSigned ||
		!secondBranch.Op.Likely {
		return nil, nil
	}

	if secondBranch.Op.Delay.Var(0).Reg != dstReg.Reg {
		return nil, errors.New("type-of: branches disagree on destination")
	}

	if elseCase.Dst.Reg != dstReg.Reg {
		return nil, errors.New("type-of: else case disagrees on destination")
	}

	// else case is a lwu grabbing the type of a basic.
	loadOp, ok := elseCase.Src.TryAsSingleElement().(*ir2.LoadSourceElement)
	if !ok || loadOp.Kind != ir2.LoadUnsigned || loadOp.Size != 4 {
		return nil, nil
	}

	loadLoc, ok := loadOp.Location.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok || loadLoc.Expr.Kind != ir2.ExprAdd {
		return nil, nil
	}

	srcReg3 := loadLoc.Expr.Arg(0)
	offset := loadLoc.Expr.Arg(1)

	if !srcReg3.IsVar() || !offset.IsInt() {
		return nil, nil
	}

	if srcReg3.Var.Reg != srcReg.Reg {
		return nil, errors.New("type-of: load source disagrees with the shift")
	}

	if offset.Int != -4 {
		return nil, errors.New("type-of: load offset is %v, want -4", offset.Int)
	}

	var clobber *ir2.Variable
	if tempReg.Reg != dstReg.Reg {
		v := firstBranch.Op.Cond.Arg(0).Var
		clobber = &v
	}

	// remove the branch, then the shift.
	b0Form.PopBack()
	b0Form.PopBack()

	obj := pool.SingleForm(nil, ir2.NewSimpleAtom(shift.Expr.Arg(0)))
	typeOp := pool.SingleForm(nil, ir2.NewTypeOf(obj, clobber))
	b0Form.PushBack(ir2.NewSetVar(elseCase.Dst, typeOp, true))

	return b0Form, nil
}
