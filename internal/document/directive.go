package document

// DefaultDirective is the mapping key that requests an include.
const DefaultDirective = "$include"

// Directive is one include instruction found in a mapping.
type Directive struct {
	// Refs are the fragment paths, relative to the directory of the file
	// that declares the directive, in the order they were written.
	Refs []string

	// Line is the 1-based source line of the directive key, when known.
	Line int

	// Ignored counts values that could not be used as a path (nulls,
	// empty strings, numbers, nested collections).
	Ignored int
}

// newDirective builds a directive from the value written after the
// directive key. A string is a single reference. A sequence contributes
// each of its string items in order, and a mapping each of its string
// values in key order.
func newDirective(value Node, line int) Directive {
	d := Directive{Line: line}
	switch v := value.(type) {
	case *Scalar:
		d.addRef(v)
	case *Sequence:
		for _, item := range v.Items {
			d.addItem(item)
		}
	case *Mapping:
		for _, e := range v.Entries() {
			d.addItem(e.Value)
		}
		d.Ignored += len(v.Directives)
	default:
		d.Ignored++
	}
	return d
}

func (d *Directive) addItem(n Node) {
	s, ok := n.(*Scalar)
	if !ok {
		d.Ignored++
		return
	}
	d.addRef(s)
}

func (d *Directive) addRef(s *Scalar) {
	if s.Tag != StrTag || s.Value == "" {
		d.Ignored++
		return
	}
	d.Refs = append(d.Refs, s.Value)
}

// addEntry stores key/value into m, diverting directive keys into the side
// list. It reports whether key was a directive.
func addEntry(m *Mapping, key string, value Node, line int, directive string) bool {
	if directive != "" && key == directive {
		m.Directives = append(m.Directives, newDirective(value, line))
		return true
	}
	m.Set(key, value)
	return false
}

// HasDirectives reports whether any mapping in the tree still carries
// include directives.
func HasDirectives(n Node) bool {
	switch v := n.(type) {
	case *Mapping:
		if len(v.Directives) > 0 {
			return true
		}
		for _, e := range v.Entries() {
			if HasDirectives(e.Value) {
				return true
			}
		}
	case *Sequence:
		for _, item := range v.Items {
			if HasDirectives(item) {
				return true
			}
		}
	}
	return false
}
