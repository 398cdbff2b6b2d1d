package document

import (
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

// ParseTOML parses a TOML document. TOML tables are unordered once
// decoded, so keys come out sorted.
func ParseTOML(data []byte, directive string) (Node, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeTOMLSyntax, "invalid TOML document", err)
	}
	if len(doc) == 0 {
		return NewMapping(), nil
	}

	var n yaml.Node
	if err := n.Encode(doc); err != nil {
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeTOMLSyntax, "unrepresentable TOML value", err)
	}
	return FromYAMLNode(&n, directive)
}
