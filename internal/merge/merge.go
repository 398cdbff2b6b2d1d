// Package merge implements the deep merge used to fold included fragments
// into a document, and the sanitizer that repairs sequences the merge
// turned into index-keyed mappings.
package merge

import (
	"strconv"

	"github.com/conneroisu/yamlinc/internal/document"
)

// Merge returns a new tree combining dst and src. Neither input is
// modified.
//
//   - two sequences concatenate, dst items first;
//   - two mappings merge key by key: dst keys keep their order, src-only
//     keys are appended, and where both sides hold containers the values
//     are merged recursively, otherwise the src value wins;
//   - any other pairing yields a copy of src.
func Merge(dst, src document.Node) document.Node {
	switch s := src.(type) {
	case *document.Sequence:
		if d, ok := dst.(*document.Sequence); ok {
			items := make([]document.Node, 0, len(d.Items)+len(s.Items))
			for _, item := range d.Items {
				items = append(items, document.Clone(item))
			}
			for _, item := range s.Items {
				items = append(items, document.Clone(item))
			}
			return &document.Sequence{Items: items}
		}
	case *document.Mapping:
		if d, ok := dst.(*document.Mapping); ok {
			return mergeMappings(d, s)
		}
	}
	return document.Clone(src)
}

func mergeMappings(dst, src *document.Mapping) *document.Mapping {
	out := document.Clone(dst).(*document.Mapping)
	for _, e := range src.Entries() {
		existing, ok := out.Get(e.Key)
		if !ok || !isContainer(e.Value) {
			out.Set(e.Key, document.Clone(e.Value))
			continue
		}
		out.Set(e.Key, Merge(existing, e.Value))
	}
	return out
}

func isContainer(n document.Node) bool {
	switch n.(type) {
	case *document.Sequence, *document.Mapping:
		return true
	default:
		return false
	}
}

// Absorb folds one resolved fragment into the include accumulator for a
// mapping and returns the accumulator. Newer fragments win conflicts.
//
// A mapping fragment is deep-merged. A sequence fragment cannot merge into
// a mapping, so its items are written over the accumulator under the keys
// "0", "1", ... instead; Sanitize turns such mappings back into sequences.
// Scalars and empty fragments contribute nothing.
func Absorb(acc *document.Mapping, fragment document.Node) *document.Mapping {
	if acc == nil {
		acc = document.NewMapping()
	}

	switch f := fragment.(type) {
	case *document.Mapping:
		if f.Len() == 0 {
			return acc
		}
		return mergeMappings(acc, f)
	case *document.Sequence:
		for i, item := range f.Items {
			acc.Set(strconv.Itoa(i), document.Clone(item))
		}
		return acc
	default:
		return acc
	}
}

// Into merges acc into target in place. Values from acc take precedence
// over the target's own entries.
func Into(target, acc *document.Mapping) {
	if acc == nil || acc.Len() == 0 {
		return
	}
	merged := mergeMappings(target, acc)
	merged.Directives = target.Directives
	target.Replace(merged)
}
