package ir2

type (
	// AtomicOp is a basic-block-local operation produced by the op builder.
	AtomicOp interface {
		OpID() int

		// GetAsForm lowers the op to a fresh form element.
		GetAsForm(p *FormPool) FormElement
	}

	// BranchOp is a conditional or unconditional branch with its delay
	// slot and likely flag.
	BranchOp struct {
		ID     int
		Cond   Condition
		Delay  BranchDelay
		Likely bool
	}

	// SetVarOp assigns the value of a simple expression to a register.
	SetVarOp struct {
		ID  int
		Dst Variable
		Src SimpleExpression
	}

	// LoadVarOp reads memory at an address expression into a register.
	LoadVarOp struct {
		ID   int
		Kind LoadKind
		Size int
		Dst  Variable
		Addr SimpleExpression
	}

	// AtomicOps is the per-function op table with block boundaries:
	// block i covers ops [BlockFirst[i], BlockEnd[i]).
	AtomicOps struct {
		Ops []AtomicOp

		BlockFirst []int
		BlockEnd   []int
	}
)

func (o *BranchOp) OpID() int { return o.ID }

func (o *BranchOp) GetAsForm(p *FormPool) FormElement {
	return NewBranch(o)
}

func (o *SetVarOp) OpID() int { return o.ID }

func (o *SetVarOp) GetAsForm(p *FormPool) FormElement {
	src := p.SingleForm(nil, NewSimpleExpression(o.Src))

	return NewSetVar(o.Dst, src, false)
}

func (o *LoadVarOp) OpID() int { return o.ID }

func (o *LoadVarOp) GetAsForm(p *FormPool) FormElement {
	loc := p.SingleForm(nil, NewSimpleExpression(o.Addr))
	src := p.SingleForm(nil, NewLoadSource(o.Kind, o.Size, loc))

	return NewSetVar(o.Dst, src, false)
}
