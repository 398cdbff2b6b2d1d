package document

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

const mergeTag = "!!merge"

// ParseYAML parses YAML text into a tree. Keys equal to directive are
// collected into Mapping.Directives instead of being stored as entries,
// so a mapping may declare any number of includes. Only the first
// document of a stream is read; empty input yields a nil tree.
func ParseYAML(data []byte, directive string) (Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax, "invalid YAML document", err)
	}
	if root.Kind == 0 {
		return nil, nil
	}

	c := &yamlConverter{directive: directive, active: make(map[*yaml.Node]bool)}
	return c.convert(&root)
}

// FromYAMLNode converts an already decoded yaml.v3 node graph.
func FromYAMLNode(n *yaml.Node, directive string) (Node, error) {
	c := &yamlConverter{directive: directive, active: make(map[*yaml.Node]bool)}
	return c.convert(n)
}

type yamlConverter struct {
	directive string
	// active tracks anchors being expanded to reject self-referencing aliases.
	active map[*yaml.Node]bool
}

func (c *yamlConverter) convert(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.convert(n.Content[0])
	case yaml.ScalarNode:
		return &Scalar{Tag: n.ShortTag(), Value: n.Value}, nil
	case yaml.SequenceNode:
		seq := &Sequence{Items: make([]Node, 0, len(n.Content))}
		for _, item := range n.Content {
			v, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, v)
		}
		return seq, nil
	case yaml.MappingNode:
		return c.mapping(n)
	case yaml.AliasNode:
		if c.active[n.Alias] {
			return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax,
				fmt.Sprintf("recursive alias *%s", n.Value), nil).WithLocation("", n.Line)
		}
		c.active[n.Alias] = true
		defer delete(c.active, n.Alias)
		return c.convert(n.Alias)
	default:
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax,
			fmt.Sprintf("unexpected node kind %d", n.Kind), nil).WithLocation("", n.Line)
	}
}

func (c *yamlConverter) mapping(n *yaml.Node) (Node, error) {
	m := NewMapping()
	lines := make(map[string]int)
	var merges []*Mapping

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind == yaml.AliasNode {
			keyNode = keyNode.Alias
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, yerrors.NewSyntaxError(yerrors.ErrCodeUnsupportedKey,
				"mapping keys must be scalars", nil).WithLocation("", keyNode.Line)
		}

		value, err := c.convert(valueNode)
		if err != nil {
			return nil, err
		}

		if keyNode.ShortTag() == mergeTag {
			sources, err := mergeSources(value, keyNode.Line)
			if err != nil {
				return nil, err
			}
			merges = append(merges, sources...)
			continue
		}

		key := keyNode.Value
		if addEntry(m, key, value, keyNode.Line, c.directive) {
			continue
		}
		if prev, dup := lines[key]; dup {
			return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax,
				fmt.Sprintf("mapping key %q already defined at line %d", key, prev), nil).
				WithLocation("", keyNode.Line)
		}
		lines[key] = keyNode.Line
	}

	// Explicit keys win over merged ones; earlier merge sources win over
	// later ones.
	for _, src := range merges {
		for _, e := range src.Entries() {
			if !m.Has(e.Key) {
				m.Set(e.Key, Clone(e.Value))
			}
		}
		m.Directives = append(m.Directives, src.Directives...)
	}

	return m, nil
}

func mergeSources(value Node, line int) ([]*Mapping, error) {
	switch v := value.(type) {
	case *Mapping:
		return []*Mapping{v}, nil
	case *Sequence:
		out := make([]*Mapping, 0, len(v.Items))
		for _, item := range v.Items {
			m, ok := item.(*Mapping)
			if !ok {
				return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax,
					"merge key sequence must contain only mappings", nil).WithLocation("", line)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeYAMLSyntax,
			"merge key value must be a mapping or a sequence of mappings", nil).WithLocation("", line)
	}
}

// SerializeYAML renders a tree as YAML with two-space indentation. A nil
// tree is written as "empty: true" so the output is always a valid,
// non-empty document.
func SerializeYAML(n Node) ([]byte, error) {
	if n == nil {
		return []byte("empty: true\n"), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToYAMLNode(n)); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return buf.Bytes(), nil
}

// ToYAMLNode converts a tree into a yaml.v3 node graph. Directives are not
// represented; callers serialize resolved trees only.
func ToYAMLNode(n Node) *yaml.Node {
	switch v := n.(type) {
	case *Scalar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: v.Tag, Value: v.Value}
	case *Sequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items {
			out.Content = append(out.Content, ToYAMLNode(item))
		}
		return out
	case *Mapping:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range v.Entries() {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: StrTag, Value: e.Key},
				ToYAMLNode(e.Value))
		}
		return out
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: NullTag, Value: "null"}
	}
}
