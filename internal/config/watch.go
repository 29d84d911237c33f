package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/vibeworks/agentcore/internal/logging"
)

// Watcher watches a project's config file, and any agent-profile YAML
// files it references, for changes and invokes a reload callback — the
// hot permission/agent-profile reload path.
type Watcher struct {
	directory string
	onReload  func(*Config)
	fsWatcher *fsnotify.Watcher
}

// NewWatcher creates a Watcher for the config rooted at directory.
// onReload is called with the freshly reloaded Config whenever the
// watched files change; Load errors are logged and otherwise ignored so
// a transient bad edit doesn't tear down the watch loop.
func NewWatcher(directory string, onReload func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		directory: directory,
		onReload:  onReload,
		fsWatcher: fsWatcher,
	}

	if err := w.addWatches(); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) addWatches() error {
	projectPath := ProjectConfigPath(w.directory)
	if err := w.fsWatcher.Add(filepath.Dir(projectPath)); err != nil {
		return err
	}

	cfg, err := Load(w.directory)
	if err != nil {
		return nil
	}
	for _, agent := range cfg.Agent {
		if agent.ProfilePath == "" {
			continue
		}
		_ = w.fsWatcher.Add(filepath.Dir(agent.ProfilePath))
	}
	return nil
}

// Run blocks, reloading and invoking onReload on every write/create
// event touching a watched directory, until ctx is cancelled or Close
// is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.directory)
			if err != nil {
				logging.Error().Err(err).Str("file", event.Name).Msg("config reload failed")
				continue
			}
			if w.onReload != nil {
				w.onReload(cfg)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
