package merge

import (
	"strconv"

	"github.com/conneroisu/yamlinc/internal/document"
)

// IsObjectizedArray reports whether n is a non-empty mapping whose keys are
// exactly "0" through "n-1". Keys must be canonical decimal integers, so
// "01" or a gap such as {"0", "2"} disqualify the mapping.
func IsObjectizedArray(n document.Node) bool {
	_, ok := objectizedItems(n)
	return ok
}

func objectizedItems(n document.Node) ([]document.Node, bool) {
	m, ok := n.(*document.Mapping)
	if !ok || m.Len() == 0 {
		return nil, false
	}

	items := make([]document.Node, m.Len())
	for _, e := range m.Entries() {
		i, err := strconv.Atoi(e.Key)
		if err != nil || i < 0 || i >= len(items) || strconv.Itoa(i) != e.Key {
			return nil, false
		}
		if items[i] != nil {
			return nil, false
		}
		items[i] = e.Value
	}
	return items, true
}

// Sanitize replaces every objectized array in the tree, the root included,
// with a sequence ordered by index. Mappings are rewritten in place; the
// returned node must be used in place of n since the root itself may
// change type. Sanitize is idempotent.
func Sanitize(n document.Node) document.Node {
	switch v := n.(type) {
	case *document.Mapping:
		for _, e := range v.Entries() {
			clean := Sanitize(e.Value)
			if clean != e.Value {
				v.Set(e.Key, clean)
			}
		}
		if items, ok := objectizedItems(v); ok {
			return &document.Sequence{Items: items}
		}
		return v
	case *document.Sequence:
		for i, item := range v.Items {
			v.Items[i] = Sanitize(item)
		}
		return v
	default:
		return n
	}
}
