// Package document defines the tree that include resolution operates on
// and the loaders that turn document text into that tree and back.
//
// A tree is built from exactly three node types: *Scalar, *Sequence and
// *Mapping. Code that walks a tree switches on the concrete type; there is
// no untyped "anything" value. Mappings keep their insertion order so that
// serialized output is deterministic, and they carry the include directives
// found in them as a side list rather than as ordinary keys.
package document

import (
	"slices"
	"strconv"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	ScalarKind Kind = iota + 1
	SequenceKind
	MappingKind
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case SequenceKind:
		return "sequence"
	case MappingKind:
		return "mapping"
	default:
		return "unknown"
	}
}

// Node is a document tree node. The interface is sealed.
type Node interface {
	Kind() Kind
	node()
}

// YAML short tags used for scalars.
const (
	StrTag   = "!!str"
	IntTag   = "!!int"
	FloatTag = "!!float"
	BoolTag  = "!!bool"
	NullTag  = "!!null"
)

// Scalar is a leaf value. Tag is the YAML short tag and Value its text.
type Scalar struct {
	Tag   string
	Value string
}

// Sequence is an ordered list of nodes.
type Sequence struct {
	Items []Node
}

// Entry is a single key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value Node
}

// Mapping is an insertion-ordered map from string keys to nodes.
type Mapping struct {
	entries []Entry
	index   map[string]int

	// Directives lists the include directives declared in this mapping, in
	// source order. Every occurrence gets its own entry, so several
	// directives in one mapping never collide.
	Directives []Directive
}

func (*Scalar) Kind() Kind   { return ScalarKind }
func (*Sequence) Kind() Kind { return SequenceKind }
func (*Mapping) Kind() Kind  { return MappingKind }

func (*Scalar) node()   {}
func (*Sequence) node() {}
func (*Mapping) node()  {}

// String creates a string scalar.
func String(v string) *Scalar { return &Scalar{Tag: StrTag, Value: v} }

// Int creates an integer scalar.
func Int(v int) *Scalar { return &Scalar{Tag: IntTag, Value: strconv.Itoa(v)} }

// Bool creates a boolean scalar.
func Bool(v bool) *Scalar { return &Scalar{Tag: BoolTag, Value: strconv.FormatBool(v)} }

// Null creates a null scalar.
func Null() *Scalar { return &Scalar{Tag: NullTag, Value: "null"} }

// IsNull reports whether the scalar holds a null value.
func (s *Scalar) IsNull() bool { return s.Tag == NullTag }

// NewSequence creates a sequence holding items.
func NewSequence(items ...Node) *Sequence {
	return &Sequence{Items: items}
}

// Len returns the number of items.
func (s *Sequence) Len() int { return len(s.Items) }

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

// MappingOf builds a mapping from alternating key/value arguments. It is
// meant for tests and small literals; a non-string key panics.
func MappingOf(kv ...any) *Mapping {
	m := NewMapping()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1].(Node))
	}
	return m
}

// Len returns the number of entries.
func (m *Mapping) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The slice must not be
// modified.
func (m *Mapping) Entries() []Entry { return m.entries }

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (Node, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Set stores value under key. An existing key keeps its position.
func (m *Mapping) Set(key string, value Node) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Delete removes key if present.
func (m *Mapping) Delete(key string) {
	i, ok := m.index[key]
	if !ok {
		return
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].Key] = j
	}
}

// Replace swaps the contents of m for those of other, keeping m's identity
// so that parents holding m observe the change.
func (m *Mapping) Replace(other *Mapping) {
	m.entries = other.entries
	m.index = other.index
	m.Directives = other.Directives
	if m.index == nil {
		m.index = make(map[string]int)
	}
}

// Clone returns a deep copy of n, including pending directives.
func Clone(n Node) Node {
	switch v := n.(type) {
	case *Scalar:
		c := *v
		return &c
	case *Sequence:
		items := make([]Node, len(v.Items))
		for i, item := range v.Items {
			items[i] = Clone(item)
		}
		return &Sequence{Items: items}
	case *Mapping:
		c := NewMapping()
		for _, e := range v.entries {
			c.Set(e.Key, Clone(e.Value))
		}
		for _, d := range v.Directives {
			d.Refs = slices.Clone(d.Refs)
			c.Directives = append(c.Directives, d)
		}
		return c
	default:
		return nil
	}
}

// Equal reports whether a and b have the same structure, keys, tags and
// values. Mapping key order is significant.
func Equal(a, b Node) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *Scalar:
		bv, ok := b.(*Scalar)
		return ok && av.Tag == bv.Tag && av.Value == bv.Value
	case *Sequence:
		bv, ok := b.(*Sequence)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Mapping:
		bv, ok := b.(*Mapping)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for i, e := range av.entries {
			be := bv.entries[i]
			if e.Key != be.Key || !Equal(e.Value, be.Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
