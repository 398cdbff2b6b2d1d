package document

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	yerrors "github.com/conneroisu/yamlinc/internal/errors"
)

// ParseFunc turns document text into a tree, diverting directive keys.
type ParseFunc func(data []byte, directive string) (Node, error)

// Loader reads documents from disk, choosing a parser by file extension.
// Files with an unregistered extension are read as YAML.
type Loader struct {
	directive string
	parsers   map[string]ParseFunc
}

// NewLoader creates a loader that recognizes directive as the include key
// and understands YAML, JSON/JSONC and TOML documents.
func NewLoader(directive string) *Loader {
	l := &Loader{
		directive: directive,
		parsers:   make(map[string]ParseFunc),
	}
	l.Register(ParseYAML, ".yml", ".yaml")
	l.Register(ParseJSON, ".json", ".jsonc")
	l.Register(ParseTOML, ".toml")
	return l
}

// Register associates parse with the given extensions (with leading dot).
func (l *Loader) Register(parse ParseFunc, exts ...string) {
	for _, ext := range exts {
		l.parsers[strings.ToLower(ext)] = parse
	}
}

// Directive returns the include key this loader recognizes.
func (l *Loader) Directive() string {
	return l.directive
}

// Parse parses data as if it were read from path.
func (l *Loader) Parse(path string, data []byte) (Node, error) {
	parse, ok := l.parsers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		parse = ParseYAML
	}

	n, err := parse(data, l.directive)
	if err != nil {
		var ye *yerrors.YamlincError
		if errors.As(err, &ye) && ye.FilePath == "" {
			ye.FilePath = path
		}
		return nil, err
	}
	return n, nil
}

// Load reads and parses the file at path. A missing file yields a
// not-found error.
func (l *Loader) Load(path string) (Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, yerrors.NewNotFoundError(path, err)
		}
		return nil, yerrors.NewIOError(yerrors.ErrCodeReadFailed, "reading "+path, err)
	}
	return l.Parse(path, data)
}
