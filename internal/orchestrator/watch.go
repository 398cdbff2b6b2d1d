package orchestrator

import (
	"context"

	"github.com/conneroisu/yamlinc/internal/compiler"
	"github.com/conneroisu/yamlinc/internal/config"
	"github.com/conneroisu/yamlinc/internal/logging"
	"github.com/conneroisu/yamlinc/internal/watcher"
)

// StartWatcher watches root recursively and feeds debounced batches of
// input-file events into o. The caller stops the returned watcher.
func StartWatcher(ctx context.Context, root string, cfg *config.Config, o *Orchestrator, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, err
	}

	fw.SkipDirs(cfg.Watch.Ignore...)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoVendorFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.ExtensionFilter(cfg.Extensions...))
	fw.AddFilter(func(path string) bool { return !compiler.IsGenerated(path, cfg.Extensions) })
	fw.AddHandler(o.Notify)

	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}
