package cfgbuild

import (
	"context"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/loc"
	"github.com/nikandfor/tlog"

	"github.com/VodBox/jak-project/decompiler/cfg"
	"github.com/VodBox/jak-project/decompiler/ir2"
)

// blockToElements appends the block's atomic ops, lowered to elements.
func blockToElements(pool *ir2.FormPool, f *ir2.Function, blockID int, out *[]ir2.FormElement) {
	ops := f.IR2.AtomicOps

	first := ops.BlockFirst[blockID]
	end := ops.BlockEnd[blockID]

	for i := first; i < end; i++ {
		*out = append(*out, ops.Ops[i].GetAsForm(pool))
	}
}

// insertCfgIntoList translates a vertex and splices the result into an
// element list, inlining sequences and blocks rather than nesting them.
func insertCfgIntoList(pool *ir2.FormPool, f *ir2.Function, vtx cfg.Vtx, out *[]ir2.FormElement) error {
	switch v := vtx.(type) {
	case *cfg.SequenceVtx:
		for _, x := range v.Seq {
			err := insertCfgIntoList(pool, f, x, out)
			if err != nil {
				return err
			}
		}

		return nil
	case *cfg.BlockVtx:
		blockToElements(pool, f, v.BlockID, out)

		return nil
	default:
		ir, err := cfgToIR(pool, f, vtx)
		if err != nil {
			return err
		}

		*out = append(*out, ir.Elts()...)

		return nil
	}
}

// mergeCondElseWithSC recognizes a cond-with-else whose else arm is
// actually a leading short circuit followed by more cases. The CFG pass
// may recognize things out of order, which fakes nesting; that would turn
// a plain cond into a cond-with-else, which emits different instructions.
// This compacts it back into a single cond. It may not be sufficient to
// catch all cases, or may even recognize the wrong thing in some; maybe
// the delay slot should be checked instead.
func mergeCondElseWithSC(pool *ir2.FormPool, f *ir2.Function, cvtx *cfg.CondWithElse, elseForm *ir2.Form) (*ir2.Form, error) {
	if elseForm.Size() != 2 {
		return nil, nil
	}

	_, ok1 := elseForm.At(0).(*ir2.ShortCircuitElement)
	second, ok2 := elseForm.At(1).(*ir2.CondNoElseElement)

	if !ok1 || !ok2 {
		return nil, nil
	}

	entries := make([]ir2.CondNoElseEntry, 0, len(cvtx.Entries)+len(second.Entries))

	for _, x := range cvtx.Entries {
		condition, err := cfgToIR(pool, f, x.Condition)
		if err != nil {
			return nil, err
		}

		body, err := cfgToIR(pool, f, x.Body)
		if err != nil {
			return nil, err
		}

		entries = append(entries, ir2.CondNoElseEntry{Condition: condition, Body: body})
	}

	// the nested cond's first condition gains the leading short circuit,
	// keeping the side effect order.
	firstCondition := pool.EmptyForm()
	firstCondition.PushBack(elseForm.At(0))

	for _, x := range second.Entries[0].Condition.Elts() {
		firstCondition.PushBack(x)
	}

	second.Entries[0].Condition = firstCondition
	firstCondition.SetParent(second)

	entries = append(entries, second.Entries...)

	result := pool.SingleForm(nil, ir2.NewCondNoElse(entries))

	err := cleanUpCondNoElse(pool, f, result.BackRef(), result)
	if err != nil {
		return nil, errors.Wrap(err, "clean merged cond")
	}

	return result, nil
}

// cfgToIR dispatches on the vertex class and produces a form subtree,
// cleaning each compound form as it is built.
func cfgToIR(pool *ir2.FormPool, f *ir2.Function, vtx cfg.Vtx) (*ir2.Form, error) {
	switch v := vtx.(type) {
	case *cfg.BlockVtx:
		output := pool.EmptyForm()

		var elts []ir2.FormElement
		blockToElements(pool, f, v.BlockID, &elts)

		for _, e := range elts {
			output.PushBack(e)
		}

		return output, nil

	case *cfg.SequenceVtx:
		var elts []ir2.FormElement

		err := insertCfgIntoList(pool, f, v, &elts)
		if err != nil {
			return nil, err
		}

		return pool.SequenceForm(nil, elts), nil

	case *cfg.WhileLoop:
		condition, err := cfgToIR(pool, f, v.Condition)
		if err != nil {
			return nil, err
		}

		body, err := cfgToIR(pool, f, v.Body)
		if err != nil {
			return nil, err
		}

		// cleaned later, together with the intro branch in front of it.
		return pool.SingleForm(nil, ir2.NewWhile(condition, body)), nil

	case *cfg.UntilLoop:
		condition, err := cfgToIR(pool, f, v.Condition)
		if err != nil {
			return nil, err
		}

		body, err := cfgToIR(pool, f, v.Body)
		if err != nil {
			return nil, err
		}

		u := ir2.NewUntil(condition, body)
		result := pool.SingleForm(nil, u)

		err = cleanUpUntilLoop(pool, u)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.UntilLoopSingle:
		condition, err := cfgToIR(pool, f, v.Block)
		if err != nil {
			return nil, err
		}

		u := ir2.NewUntil(condition, pool.SingleForm(nil, ir2.NewEmpty()))
		result := pool.SingleForm(nil, u)

		err = cleanUpUntilLoop(pool, u)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.InfiniteLoopBlock:
		body, err := cfgToIR(pool, f, v.Block)
		if err != nil {
			return nil, err
		}

		condition := pool.SingleForm(nil, ir2.NewCondition(ir2.Cond0(ir2.CondAlways)))

		w := ir2.NewWhile(condition, body)
		result := pool.SingleForm(nil, w)

		err = cleanUpInfiniteWhileLoop(pool, w)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.CondWithElse:
		elseForm, err := cfgToIR(pool, f, v.Else)
		if err != nil {
			return nil, err
		}

		merged, err := mergeCondElseWithSC(pool, f, v, elseForm)
		if err != nil {
			return nil, err
		}

		if merged != nil {
			return merged, nil
		}

		entries := make([]ir2.CondWithElseEntry, 0, len(v.Entries))

		for _, x := range v.Entries {
			condition, err := cfgToIR(pool, f, x.Condition)
			if err != nil {
				return nil, err
			}

			body, err := cfgToIR(pool, f, x.Body)
			if err != nil {
				return nil, err
			}

			entries = append(entries, ir2.CondWithElseEntry{Condition: condition, Body: body})
		}

		cwe := ir2.NewCondWithElse(entries, elseForm)
		result := pool.SingleForm(nil, cwe)

		err = cleanUpCondWithElse(pool, cwe)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.ShortCircuit:
		asTypeOf, err := trySCAsTypeOf(pool, f, v)
		if err != nil {
			return nil, err
		}

		if asTypeOf != nil {
			return asTypeOf, nil
		}

		asAsh, err := trySCAsAsh(pool, f, v)
		if err != nil {
			return nil, err
		}

		if asAsh != nil {
			return asAsh, nil
		}

		asAbs, err := trySCAsAbs(pool, f, v)
		if err != nil {
			return nil, err
		}

		if asAbs != nil {
			return asAbs, nil
		}

		if len(v.Entries) == 1 {
			return nil, errors.New("weird short circuit form")
		}

		entries := make([]ir2.ShortCircuitEntry, 0, len(v.Entries))

		for _, x := range v.Entries {
			condition, err := cfgToIR(pool, f, x)
			if err != nil {
				return nil, err
			}

			entries = append(entries, ir2.ShortCircuitEntry{Condition: condition})
		}

		sc := ir2.NewShortCircuit(entries)
		result := pool.SingleForm(nil, sc)

		err = cleanUpSC(pool, f, sc)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.CondNoElse:
		entries := make([]ir2.CondNoElseEntry, 0, len(v.Entries))

		for _, x := range v.Entries {
			condition, err := cfgToIR(pool, f, x.Condition)
			if err != nil {
				return nil, err
			}

			body, err := cfgToIR(pool, f, x.Body)
			if err != nil {
				return nil, err
			}

			entries = append(entries, ir2.CondNoElseEntry{Condition: condition, Body: body})
		}

		result := pool.SingleForm(nil, ir2.NewCondNoElse(entries))

		err := cleanUpCondNoElse(pool, f, result.BackRef(), result)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.GotoEnd:
		body, err := cfgToIR(pool, f, v.Body)
		if err != nil {
			return nil, err
		}

		dead, err := cfgToIR(pool, f, v.UnreachableBlock)
		if err != nil {
			return nil, err
		}

		r := ir2.NewReturn(body, dead)
		result := pool.SingleForm(nil, r)

		err = cleanUpReturn(pool, r)
		if err != nil {
			return nil, err
		}

		return result, nil

	case *cfg.Break:
		body, err := cfgToIR(pool, f, v.Body)
		if err != nil {
			return nil, err
		}

		dead, err := cfgToIR(pool, f, v.UnreachableBlock)
		if err != nil {
			return nil, err
		}

		b := ir2.NewBreak(body, dead)
		result := pool.SingleForm(nil, b)

		err = cleanUpBreak(pool, b)
		if err != nil {
			return nil, err
		}

		return result, nil

	default:
		return nil, errors.New("not yet implemented IR conversion: %T", vtx)
	}
}

// BuildInitialForms converts the function's resolved CFG to its initial
// form tree and stores it on the function. On failure the function is
// left without a top form and a warning is logged; other functions are
// unaffected.
func BuildInitialForms(ctx context.Context, f *ir2.Function) {
	if !f.Cfg.IsFullyResolved() {
		return
	}

	if f.IR2.FormPool == nil {
		f.IR2.FormPool = ir2.NewFormPool()
	}

	pool := f.IR2.FormPool

	result, err := buildForms(pool, f)
	if err != nil {
		tlog.SpanFromContext(ctx).Printw("failed to build initial forms",
			"name", f.Name, "err", err, "from", loc.Callers(1, 2))

		return
	}

	f.IR2.TopForm = result
}

func buildForms(pool *ir2.FormPool, f *ir2.Function) (*ir2.Form, error) {
	top := f.Cfg.GetSingleTopLevel()

	var elts []ir2.FormElement

	err := insertCfgIntoList(pool, f, top, &elts)
	if err != nil {
		return nil, errors.Wrap(err, "translate")
	}

	result := pool.SequenceForm(nil, elts)

	err = result.ApplyForm(func(form *ir2.Form) error {
		return cleanUpWhileLoops(pool, form)
	})
	if err != nil {
		return nil, errors.Wrap(err, "clean while loops")
	}

	err = result.Apply(func(e ir2.FormElement) error {
		cne, ok := e.(*ir2.CondNoElseElement)
		if !ok {
			return nil
		}

		return cleanUpCondNoElseFinal(f, cne)
	})
	if err != nil {
		return nil, errors.Wrap(err, "finish cond-no-else")
	}

	return result, nil
}
