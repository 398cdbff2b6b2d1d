// Package resolver expands include directives. Resolving a file loads it,
// recursively resolves every fragment its directives reference, and folds
// the fragments into the mapping that declared them.
//
// Precedence is fixed: among the fragments of one directive the later ones
// win, and the combined fragments win over the literal keys written next
// to the directive. Fragments that do not exist are skipped with a notice;
// reference cycles are reported as errors.
package resolver

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/conneroisu/yamlinc/internal/document"
	yerrors "github.com/conneroisu/yamlinc/internal/errors"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/merge"
)

// Resolver resolves documents. A Resolver is not safe for concurrent use.
type Resolver struct {
	loader *document.Loader
	logger logging.Logger

	// stack holds the canonical paths of the files being resolved, outermost
	// first.
	stack []string
	// included records every fragment folded in during the current call.
	included []string
}

// New creates a resolver that loads documents with loader.
func New(loader *document.Loader, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		loader: loader,
		logger: logger.WithComponent("resolver"),
	}
}

// Result is a fully resolved document.
type Result struct {
	Tree document.Node
	// Includes lists the fragments that were folded in, in the order they
	// were loaded. A fragment included twice appears twice.
	Includes []string
}

// Resolve loads path and returns its tree with every directive expanded and
// removed. The returned tree has already been sanitized.
func (r *Resolver) Resolve(ctx context.Context, path string) (*Result, error) {
	r.stack = r.stack[:0]
	r.included = nil

	tree, err := r.resolveFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Tree: tree, Includes: r.included}, nil
}

func (r *Resolver) resolveFile(ctx context.Context, path string) (document.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := canonical(path)
	if i := slices.Index(r.stack, key); i >= 0 {
		chain := append(slices.Clone(r.stack[i:]), key)
		return nil, yerrors.NewCycleError(chain)
	}
	r.stack = append(r.stack, key)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	tree, err := r.loader.Load(path)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if err := r.walk(ctx, tree, base); err != nil {
		return nil, err
	}

	return merge.Sanitize(tree), nil
}

// walk expands directives in n and below, innermost first. Mappings are
// modified in place.
func (r *Resolver) walk(ctx context.Context, n document.Node, base string) error {
	switch v := n.(type) {
	case *document.Mapping:
		// Children are expanded before the includes are merged over them.
		for _, e := range v.Entries() {
			if err := r.walk(ctx, e.Value, base); err != nil {
				return err
			}
		}
		return r.expand(ctx, v, base)
	case *document.Sequence:
		for _, item := range v.Items {
			if err := r.walk(ctx, item, base); err != nil {
				return err
			}
		}
	}
	return nil
}

// expand resolves the directives declared on m and merges their content
// into m.
func (r *Resolver) expand(ctx context.Context, m *document.Mapping, base string) error {
	if len(m.Directives) == 0 {
		return nil
	}

	directives := m.Directives
	m.Directives = nil

	var includes *document.Mapping
	for _, d := range directives {
		if d.Ignored > 0 {
			r.logger.Warn(ctx, nil, "ignoring unusable include value",
				"directive", r.loader.Directive(), "line", d.Line, "count", d.Ignored)
		}
		for _, ref := range d.Refs {
			fragment, ok, err := r.include(ctx, base, ref)
			if err != nil {
				return err
			}
			if ok {
				includes = merge.Absorb(includes, fragment)
			}
		}
	}

	merge.Into(m, includes)
	return nil
}

// include resolves one reference. A missing fragment is reported and
// skipped, returning ok == false.
func (r *Resolver) include(ctx context.Context, base, ref string) (document.Node, bool, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, ref)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Info(ctx, "fragment not found", "file", path)
			return nil, false, nil
		}
		return nil, false, yerrors.NewIOError(yerrors.ErrCodeReadFailed, "checking "+path, err)
	}

	r.logger.Info(ctx, "include", "file", path)
	r.included = append(r.included, path)

	fragment, err := r.resolveFile(ctx, path)
	if err != nil {
		return nil, false, err
	}
	return fragment, true, nil
}

// canonical returns an absolute, symlink-free form of path for cycle
// detection, falling back to the cleaned absolute path.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
