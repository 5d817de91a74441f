package ir2

// ExprKindByName resolves the printed operator name of an expression
// kind. Used by the dump loader.
func ExprKindByName(name string) (ExprKind, bool) {
	for k, n := range exprOps {
		if n == name {
			return k, true
		}
	}

	return 0, false
}

func CondKindByName(name string) (CondKind, bool) {
	for i, n := range condNames {
		if n == name {
			return CondKind(i), true
		}
	}

	return 0, false
}

func DelayKindByName(name string) (DelayKind, bool) {
	for i, n := range delayNames {
		if n == name {
			return DelayKind(i), true
		}
	}

	return 0, false
}
