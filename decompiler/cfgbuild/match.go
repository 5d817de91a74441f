package cfgbuild

import "github.com/VodBox/jak-project/decompiler/ir2"

// regParam matches a specific register or anything at all.
type regParam struct {
	reg  ir2.Register
	wild bool
}

func anyReg() regParam { return regParam{wild: true} }

func exactReg(r ir2.Register) regParam { return regParam{reg: r} }

func (p regParam) matches(r ir2.Register) bool {
	return p.wild || p.reg == r
}

// isOp2 matches (set! dst (op src0)) and optionally captures dst.
func isOp2(e ir2.FormElement, kind ir2.ExprKind, dst regParam, src0 ir2.Register, dstOut *ir2.Register) bool {
	set, ok := e.(*ir2.SetVarElement)
	if !ok {
		return false
	}

	if !dst.matches(set.Dst.Reg) {
		return false
	}

	math, ok := set.Src.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok || math.Expr.Kind != kind {
		return false
	}

	if ir2.ExprArgCount(math.Expr.Kind) != 1 {
		return false
	}

	arg := math.Expr.Arg(0)
	if !arg.IsVar() || arg.Var.Reg != src0 {
		return false
	}

	if dstOut != nil {
		*dstOut = set.Dst.Reg
	}

	return true
}

// isOp3 matches (set! dst (op src0 src1)) and optionally captures dst.
func isOp3(e ir2.FormElement, kind ir2.ExprKind, dst regParam, src0, src1 ir2.Register, dstOut *ir2.Register) bool {
	set, ok := e.(*ir2.SetVarElement)
	if !ok {
		return false
	}

	if !dst.matches(set.Dst.Reg) {
		return false
	}

	math, ok := set.Src.TryAsSingleElement().(*ir2.SimpleExpressionElement)
	if !ok || math.Expr.Kind != kind {
		return false
	}

	if ir2.ExprArgCount(math.Expr.Kind) != 2 {
		return false
	}

	arg0 := math.Expr.Arg(0)
	arg1 := math.Expr.Arg(1)

	if !arg0.IsVar() || arg0.Var.Reg != src0 || !arg1.IsVar() || arg1.Var.Reg != src1 {
		return false
	}

	if dstOut != nil {
		*dstOut = set.Dst.Reg
	}

	return true
}
