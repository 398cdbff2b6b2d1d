// Package compiler turns an input document into its generated ".inc"
// counterpart: it resolves every include, serializes the merged tree behind
// a "do not edit" header and writes the result next to the working
// directory (or the configured output directory).
package compiler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/conneroisu/yamlinc/internal/config"
	"github.com/conneroisu/yamlinc/internal/document"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/resolver"
	"github.com/conneroisu/yamlinc/internal/version"
)

// Compiler compiles input documents. It is safe for concurrent use; calls
// are serialized.
type Compiler struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	logger   logging.Logger
	mu       sync.Mutex
}

// Result describes one compilation.
type Result struct {
	Input  string
	Output string
	// Digest is the hex blake3 digest of the generated file.
	Digest string
	// Fragments lists the included files in load order.
	Fragments []string
	// Unchanged is set when the output already held the same bytes and the
	// write was skipped.
	Unchanged bool
}

// New creates a compiler for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, logger logging.Logger) *Compiler {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compiler{
		cfg:      cfg,
		resolver: resolver.New(document.NewLoader(cfg.Directive), logger),
		logger:   logger.WithComponent("compiler"),
	}
}

// Compile resolves input and writes the generated document. Nothing is
// written when any step fails.
func (c *Compiler) Compile(ctx context.Context, input string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(input); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, yerrors.NewNotFoundError(input, err)
		}
		return nil, yerrors.NewIOError(yerrors.ErrCodeReadFailed, "checking "+input, err)
	}

	perf := logging.StartOperation(c.logger, "compile")
	defer perf.End(ctx)

	c.logger.Info(ctx, "analyze", "file", input)

	res, err := c.resolver.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	data, err := Render(input, res.Tree)
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(data)
	result := &Result{
		Input:     input,
		Output:    c.OutputPath(input),
		Digest:    hex.EncodeToString(sum[:]),
		Fragments: res.Includes,
	}

	if existing, err := os.ReadFile(result.Output); err == nil && blake3.Sum256(existing) == sum {
		result.Unchanged = true
		c.logger.Info(ctx, "unchanged", "file", result.Output)
		return result, nil
	}

	if err := writeFileAtomic(result.Output, data, 0644); err != nil {
		return nil, yerrors.NewIOError(yerrors.ErrCodeWriteFailed, "writing "+result.Output, err)
	}

	c.logger.Info(ctx, "compile", "file", result.Output)
	return result, nil
}

// OutputPath returns where the generated document for input is written.
func (c *Compiler) OutputPath(input string) string {
	return filepath.Join(c.cfg.OutputDir, OutputName(input))
}

// IsInput reports whether path carries one of the configured input
// extensions.
func (c *Compiler) IsInput(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return ext != "" && slices.Contains(c.cfg.Extensions, ext)
}

// OutputName derives the generated file name from input: "app.yml" becomes
// "app.inc.yml", "app.json" becomes "app.inc.json" and a name without an
// extension gets ".inc" appended.
func OutputName(input string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + ".inc" + ext
}

// IsGenerated reports whether path names a document generated from an
// input with one of the configured extensions.
func (c *Compiler) IsGenerated(path string) bool {
	return IsGenerated(path, c.cfg.Extensions)
}

// IsGenerated reports whether path ends in ".inc.<ext>" for one of exts,
// ignoring case.
func IsGenerated(path string, exts []string) bool {
	lower := strings.ToLower(filepath.Base(path))
	for _, ext := range exts {
		suffix := ".inc." + strings.ToLower(ext)
		if len(lower) > len(suffix) && strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Header returns the banner placed at the top of every generated file.
func Header(input string) string {
	lines := []string{
		"## --------------------",
		"## DON'T EDIT THIS FILE",
		"## --------------------",
		"## Engine: " + version.Engine(),
		"## Source: " + input,
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// Render serializes tree behind the header for input.
func Render(input string, tree document.Node) ([]byte, error) {
	body, err := document.SerializeYAML(tree)
	if err != nil {
		return nil, yerrors.NewIOError(yerrors.ErrCodeWriteFailed, "serializing "+input, err)
	}

	var buf bytes.Buffer
	buf.WriteString(Header(input))
	buf.Write(body)
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
