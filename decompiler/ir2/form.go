package ir2

type (
	// Form is an ordered sequence of elements. Every element knows the Form
	// it lives in, and a Form knows the element that owns it (nil at the
	// top level).
	Form struct {
		parent FormElement

		elts []FormElement
	}

	// Slot is a writable reference to one position of a Form. It stays
	// valid until the next structural edit of that Form.
	Slot struct {
		form *Form
		idx  int
	}

	// FormPool owns every Form built for one function. Nothing outlives
	// it; dropping the function's analysis context frees the lot.
	FormPool struct {
		forms []*Form
	}
)

func (f *Form) Size() int { return len(f.elts) }

func (f *Form) At(i int) FormElement { return f.elts[i] }

func (f *Form) Back() FormElement {
	if len(f.elts) == 0 {
		return nil
	}

	return f.elts[len(f.elts)-1]
}

// BackRef is the slot of the last element, for in-place rewriting.
func (f *Form) BackRef() Slot {
	return Slot{form: f, idx: len(f.elts) - 1}
}

func (f *Form) Elts() []FormElement { return f.elts }

func (f *Form) PushBack(e FormElement) {
	e.SetParent(f)
	f.elts = append(f.elts, e)
}

func (f *Form) PopBack() {
	f.elts = f.elts[:len(f.elts)-1]
}

func (f *Form) RemoveAt(i int) {
	f.elts = append(f.elts[:i], f.elts[i+1:]...)
}

func (f *Form) ReplaceAt(i int, e FormElement) {
	e.SetParent(f)
	f.elts[i] = e
}

// TryAsSingleElement is the element iff the form holds exactly one.
func (f *Form) TryAsSingleElement() FormElement {
	if len(f.elts) == 1 {
		return f.elts[0]
	}

	return nil
}

func (f *Form) Parent() FormElement { return f.parent }

func (f *Form) SetParent(e FormElement) { f.parent = e }

func (s Slot) Get() FormElement { return s.form.elts[s.idx] }

func (s Slot) Set(e FormElement) { s.form.ReplaceAt(s.idx, e) }

func (s Slot) Form() *Form { return s.form }

func NewFormPool() *FormPool { return &FormPool{} }

func (p *FormPool) NumForms() int { return len(p.forms) }

func (p *FormPool) EmptyForm() *Form {
	f := &Form{}
	p.forms = append(p.forms, f)

	return f
}

// SingleForm builds a one-element form, wiring both parent pointers.
func (p *FormPool) SingleForm(parent FormElement, e FormElement) *Form {
	f := p.EmptyForm()
	f.parent = parent
	f.PushBack(e)

	return f
}

func (p *FormPool) SequenceForm(parent FormElement, elts []FormElement) *Form {
	f := p.EmptyForm()
	f.parent = parent

	for _, e := range elts {
		f.PushBack(e)
	}

	return f
}
