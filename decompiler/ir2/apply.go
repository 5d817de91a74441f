package ir2

// ChildForms lists the direct child forms of an element, in source order.
func ChildForms(e FormElement) []*Form {
	switch e := e.(type) {
	case *SetVarElement:
		return []*Form{e.Src}
	case *LoadSourceElement:
		return []*Form{e.Location}
	case *WhileElement:
		return []*Form{e.Condition, e.Body}
	case *UntilElement:
		return []*Form{e.Condition, e.Body}
	case *CondWithElseElement:
		var out []*Form
		for _, n := range e.Entries {
			out = append(out, n.Condition, n.Body)
		}

		return append(out, e.Else)
	case *CondNoElseElement:
		var out []*Form
		for _, n := range e.Entries {
			out = append(out, n.Condition, n.Body)
		}

		return out
	case *ShortCircuitElement:
		var out []*Form
		for _, n := range e.Entries {
			out = append(out, n.Condition)
		}

		return out
	case *ReturnElement:
		return []*Form{e.ReturnCode, e.DeadCode}
	case *BreakElement:
		return []*Form{e.ReturnCode, e.DeadCode}
	case *AbsElement:
		return []*Form{e.Source}
	case *AshElement:
		return []*Form{e.Shift, e.Value}
	case *TypeOfElement:
		return []*Form{e.Value}
	default:
		return nil
	}
}

// Apply visits every element of the tree rooted at f, parents before
// children. The callback may rewrite the element's own children; edits to
// forms above the element must wait for the walk to finish.
func (f *Form) Apply(fn func(FormElement) error) (err error) {
	for _, e := range f.elts {
		err = fn(e)
		if err != nil {
			return err
		}

		for _, c := range ChildForms(e) {
			err = c.Apply(fn)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// ApplyForm visits every form of the tree rooted at f, outermost first.
// The callback runs before the form's children are walked, so elements it
// removes are not visited.
func (f *Form) ApplyForm(fn func(*Form) error) (err error) {
	err = fn(f)
	if err != nil {
		return err
	}

	for _, e := range f.elts {
		for _, c := range ChildForms(e) {
			err = c.ApplyForm(fn)
			if err != nil {
				return err
			}
		}
	}

	return nil
}
