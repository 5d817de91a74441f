package ir2

import "github.com/VodBox/jak-project/decompiler/cfg"

type (
	// IR2 is the per-function analysis state this pass reads and extends.
	IR2 struct {
		AtomicOps *AtomicOps

		HasRegUse bool
		RegUse    RegUsage

		FormPool *FormPool

		// TopForm is the pass output. Nil means the pass failed or
		// was skipped.
		TopForm *Form
	}

	Function struct {
		Name string

		Cfg *cfg.Cfg

		IR2 IR2
	}
)
