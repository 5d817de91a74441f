// Package dump loads function dumps: a YAML description of the atomic
// ops, block table, classified CFG and liveness report of one function.
// Dumps feed the form builder in tests and from the command line without
// dragging the whole disassembly pipeline in.
package dump

import (
	"os"
	"strings"

	"github.com/nikandfor/errors"
	"gopkg.in/yaml.v3"

	"github.com/VodBox/jak-project/decompiler/cfg"
	"github.com/VodBox/jak-project/decompiler/ir2"
)

type (
	file struct {
		Name       string           `yaml:"name"`
		Unresolved bool             `yaml:"unresolved"`
		Blocks     [][2]int         `yaml:"blocks"`
		Ops        []op             `yaml:"ops"`
		Cfg        node             `yaml:"cfg"`
		RegUse     map[int][]string `yaml:"reg_use"`
	}

	op struct {
		Set    *setOp    `yaml:"set"`
		Branch *branchOp `yaml:"branch"`
		Load   *loadOp   `yaml:"load"`
	}

	setOp struct {
		Dst  string `yaml:"dst"`
		Expr expr   `yaml:",inline"`
	}

	branchOp struct {
		Cond   condition `yaml:"cond"`
		Delay  delay     `yaml:"delay"`
		Likely bool      `yaml:"likely"`
	}

	loadOp struct {
		Dst  string `yaml:"dst"`
		Kind string `yaml:"kind"`
		Size int    `yaml:"size"`
		Addr expr   `yaml:"addr"`
	}

	expr struct {
		Kind string      `yaml:"kind"`
		Args []yaml.Node `yaml:"args"`
	}

	condition struct {
		Kind string      `yaml:"kind"`
		Args []yaml.Node `yaml:"args"`
	}

	delay struct {
		Kind string   `yaml:"kind"`
		Vars []string `yaml:"vars"`
	}

	node struct {
		Block        *int      `yaml:"block"`
		Seq          []node    `yaml:"seq"`
		While        *loopNode `yaml:"while"`
		Until        *loopNode `yaml:"until"`
		UntilSingle  *node     `yaml:"until-single"`
		InfiniteLoop *node     `yaml:"infinite-loop"`
		Cond         *condNode `yaml:"cond"`
		CondNoElse   *condNode `yaml:"cond-no-else"`
		Sc           []node    `yaml:"sc"`
		Return       *endNode  `yaml:"return"`
		Break        *endNode  `yaml:"break"`
	}

	loopNode struct {
		Cond node `yaml:"cond"`
		Body node `yaml:"body"`
	}

	condNode struct {
		Entries []condEntry `yaml:"entries"`
		Else    *node       `yaml:"else"`
	}

	condEntry struct {
		Cond node `yaml:"cond"`
		Body node `yaml:"body"`
	}

	endNode struct {
		Body node `yaml:"body"`
		Dead node `yaml:"dead"`
	}
)

// LoadFile reads a function dump from disk.
func LoadFile(name string) (*ir2.Function, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read dump")
	}

	return Load(data)
}

// Load builds a function from dump bytes.
func Load(data []byte) (*ir2.Function, error) {
	var d file

	err := yaml.Unmarshal(data, &d)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}

	ops := &ir2.AtomicOps{}

	for _, b := range d.Blocks {
		ops.BlockFirst = append(ops.BlockFirst, b[0])
		ops.BlockEnd = append(ops.BlockEnd, b[1])
	}

	for i, o := range d.Ops {
		a, err := buildOp(i, o)
		if err != nil {
			return nil, errors.Wrap(err, "op %v", i)
		}

		ops.Ops = append(ops.Ops, a)
	}

	top, err := buildVtx(&d.Cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cfg")
	}

	f := &ir2.Function{
		Name: d.Name,
		Cfg:  &cfg.Cfg{Top: top, FullyResolved: !d.Unresolved},
		IR2: ir2.IR2{
			AtomicOps: ops,
			FormPool:  ir2.NewFormPool(),
		},
	}

	if d.RegUse != nil {
		f.IR2.HasRegUse = true
		f.IR2.RegUse.Op = make([]ir2.OpUsage, len(d.Ops))

		for i := range f.IR2.RegUse.Op {
			f.IR2.RegUse.Op[i].WrittenAndUnused = ir2.NewRegSet()
		}

		for id, regs := range d.RegUse {
			if id < 0 || id >= len(d.Ops) {
				return nil, errors.New("reg_use: op %v out of range", id)
			}

			for _, r := range regs {
				reg, ok := ir2.RegisterByName(r)
				if !ok {
					return nil, errors.New("reg_use: unknown register %v", r)
				}

				f.IR2.RegUse.Op[id].WrittenAndUnused.Add(reg)
			}
		}
	}

	return f, nil
}

func buildOp(id int, o op) (ir2.AtomicOp, error) {
	switch {
	case o.Set != nil:
		dst, err := parseVar(o.Set.Dst)
		if err != nil {
			return nil, err
		}

		x, err := buildExpr(o.Set.Expr)
		if err != nil {
			return nil, err
		}

		return &ir2.SetVarOp{ID: id, Dst: dst, Src: x}, nil

	case o.Branch != nil:
		c, err := buildCondition(o.Branch.Cond)
		if err != nil {
			return nil, err
		}

		dl, err := buildDelay(o.Branch.Delay)
		if err != nil {
			return nil, err
		}

		return &ir2.BranchOp{ID: id, Cond: c, Delay: dl, Likely: o.Branch.Likely}, nil

	case o.Load != nil:
		dst, err := parseVar(o.Load.Dst)
		if err != nil {
			return nil, err
		}

		kind, err := parseLoadKind(o.Load.Kind)
		if err != nil {
			return nil, err
		}

		addr, err := buildExpr(o.Load.Addr)
		if err != nil {
			return nil, err
		}

		return &ir2.LoadVarOp{ID: id, Kind: kind, Size: o.Load.Size, Dst: dst, Addr: addr}, nil

	default:
		return nil, errors.New("op is neither set, branch nor load")
	}
}

func buildExpr(x expr) (ir2.SimpleExpression, error) {
	kind, ok := ir2.ExprKindByName(x.Kind)
	if !ok {
		return ir2.SimpleExpression{}, errors.New("unknown expression kind %v", x.Kind)
	}

	if len(x.Args) != ir2.ExprArgCount(kind) {
		return ir2.SimpleExpression{}, errors.New("%v: want %v args, got %v", x.Kind, ir2.ExprArgCount(kind), len(x.Args))
	}

	args := make([]ir2.SimpleAtom, 0, len(x.Args))

	for i := range x.Args {
		a, err := parseAtom(&x.Args[i])
		if err != nil {
			return ir2.SimpleExpression{}, errors.Wrap(err, "arg %v", i)
		}

		args = append(args, a)
	}

	return ir2.SimpleExpression{Kind: kind, Args: args}, nil
}

func buildCondition(c condition) (ir2.Condition, error) {
	kind, ok := ir2.CondKindByName(c.Kind)
	if !ok {
		return ir2.Condition{}, errors.New("unknown condition kind %v", c.Kind)
	}

	if len(c.Args) != ir2.CondArgCount(kind) {
		return ir2.Condition{}, errors.New("%v: want %v args, got %v", c.Kind, ir2.CondArgCount(kind), len(c.Args))
	}

	out := ir2.Condition{Kind: kind}

	for i := range c.Args {
		a, err := parseAtom(&c.Args[i])
		if err != nil {
			return ir2.Condition{}, errors.Wrap(err, "arg %v", i)
		}

		out.Src[i] = a
	}

	return out, nil
}

func buildDelay(d delay) (ir2.BranchDelay, error) {
	kind, ok := ir2.DelayKindByName(d.Kind)
	if !ok {
		return ir2.BranchDelay{}, errors.New("unknown delay kind %v", d.Kind)
	}

	if len(d.Vars) > 3 {
		return ir2.BranchDelay{}, errors.New("%v: too many vars", d.Kind)
	}

	out := ir2.BranchDelay{Kind: kind}

	for i, v := range d.Vars {
		r, err := parseVar(v)
		if err != nil {
			return ir2.BranchDelay{}, err
		}

		out.Vars[i] = r
	}

	return out, nil
}

func buildVtx(n *node) (cfg.Vtx, error) {
	switch {
	case n.Block != nil:
		return &cfg.BlockVtx{BlockID: *n.Block}, nil

	case n.Seq != nil:
		out := &cfg.SequenceVtx{}

		for i := range n.Seq {
			v, err := buildVtx(&n.Seq[i])
			if err != nil {
				return nil, errors.Wrap(err, "seq %v", i)
			}

			out.Seq = append(out.Seq, v)
		}

		return out, nil

	case n.While != nil:
		c, b, err := buildLoop(n.While)
		if err != nil {
			return nil, err
		}

		return &cfg.WhileLoop{Condition: c, Body: b}, nil

	case n.Until != nil:
		c, b, err := buildLoop(n.Until)
		if err != nil {
			return nil, err
		}

		return &cfg.UntilLoop{Condition: c, Body: b}, nil

	case n.UntilSingle != nil:
		b, err := buildVtx(n.UntilSingle)
		if err != nil {
			return nil, err
		}

		return &cfg.UntilLoopSingle{Block: b}, nil

	case n.InfiniteLoop != nil:
		b, err := buildVtx(n.InfiniteLoop)
		if err != nil {
			return nil, err
		}

		return &cfg.InfiniteLoopBlock{Block: b}, nil

	case n.Cond != nil:
		if n.Cond.Else == nil {
			return nil, errors.New("cond without else arm")
		}

		entries, err := buildCondEntries(n.Cond.Entries)
		if err != nil {
			return nil, err
		}

		els, err := buildVtx(n.Cond.Else)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return &cfg.CondWithElse{Entries: entries, Else: els}, nil

	case n.CondNoElse != nil:
		entries, err := buildCondEntries(n.CondNoElse.Entries)
		if err != nil {
			return nil, err
		}

		return &cfg.CondNoElse{Entries: entries}, nil

	case n.Sc != nil:
		out := &cfg.ShortCircuit{}

		for i := range n.Sc {
			v, err := buildVtx(&n.Sc[i])
			if err != nil {
				return nil, errors.Wrap(err, "sc %v", i)
			}

			out.Entries = append(out.Entries, v)
		}

		return out, nil

	case n.Return != nil:
		b, d, err := buildEnd(n.Return)
		if err != nil {
			return nil, err
		}

		return &cfg.GotoEnd{Body: b, UnreachableBlock: d}, nil

	case n.Break != nil:
		b, d, err := buildEnd(n.Break)
		if err != nil {
			return nil, err
		}

		return &cfg.Break{Body: b, UnreachableBlock: d}, nil

	default:
		return nil, errors.New("empty cfg node")
	}
}

func buildLoop(l *loopNode) (c, b cfg.Vtx, err error) {
	c, err = buildVtx(&l.Cond)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cond")
	}

	b, err = buildVtx(&l.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "body")
	}

	return c, b, nil
}

func buildCondEntries(in []condEntry) ([]cfg.CondEntry, error) {
	out := make([]cfg.CondEntry, 0, len(in))

	for i := range in {
		c, err := buildVtx(&in[i].Cond)
		if err != nil {
			return nil, errors.Wrap(err, "entry %v cond", i)
		}

		b, err := buildVtx(&in[i].Body)
		if err != nil {
			return nil, errors.Wrap(err, "entry %v body", i)
		}

		out = append(out, cfg.CondEntry{Condition: c, Body: b})
	}

	return out, nil
}

func buildEnd(e *endNode) (b, d cfg.Vtx, err error) {
	b, err = buildVtx(&e.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "body")
	}

	d, err = buildVtx(&e.Dead)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dead")
	}

	return b, d, nil
}

func parseVar(name string) (ir2.Variable, error) {
	r, ok := ir2.RegisterByName(name)
	if !ok {
		return ir2.Variable{}, errors.New("unknown register %v", name)
	}

	return ir2.Variable{Reg: r}, nil
}

// parseAtom reads an operand: an integer, a register name, 'symbol for a
// symbol pointer, or () for the empty list.
func parseAtom(n *yaml.Node) (ir2.SimpleAtom, error) {
	var i int64

	err := n.Decode(&i)
	if err == nil {
		return ir2.IntAtom(i), nil
	}

	var s string

	err = n.Decode(&s)
	if err != nil {
		return ir2.SimpleAtom{}, errors.Wrap(err, "atom")
	}

	switch {
	case s == "()":
		return ir2.EmptyListAtom(), nil
	case strings.HasPrefix(s, "'"):
		return ir2.SymPtrAtom(s[1:]), nil
	}

	if r, ok := ir2.RegisterByName(s); ok {
		return ir2.VarAtom(r), nil
	}

	return ir2.SymValAtom(s), nil
}

func parseLoadKind(s string) (ir2.LoadKind, error) {
	switch s {
	case "signed":
		return ir2.LoadSigned, nil
	case "unsigned":
		return ir2.LoadUnsigned, nil
	case "float":
		return ir2.LoadFloat, nil
	default:
		return 0, errors.New("unknown load kind %v", s)
	}
}
