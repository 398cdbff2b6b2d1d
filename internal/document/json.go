package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

// ParseJSON parses JSON, allowing // and /* */ comments and trailing
// commas. Object key order is kept.
func ParseJSON(data []byte, directive string) (Node, error) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.UseNumber()

	n, err := decodeJSONValue(dec, directive)
	if err != nil {
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeJSONSyntax, "invalid JSON document", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, yerrors.NewSyntaxError(yerrors.ErrCodeJSONSyntax, "unexpected data after top-level value", err)
	}
	return n, nil
}

func decodeJSONValue(dec *json.Decoder, directive string) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewMapping()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				value, err := decodeJSONValue(dec, directive)
				if err != nil {
					return nil, err
				}
				addEntry(m, key, value, 0, directive)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			seq := &Sequence{}
			for dec.More() {
				item, err := decodeJSONValue(dec, directive)
				if err != nil {
					return nil, err
				}
				seq.Items = append(seq.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return String(t), nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			return &Scalar{Tag: FloatTag, Value: s}, nil
		}
		return &Scalar{Tag: IntTag, Value: s}, nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}
