package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path      string
	parser    Parser
	overrides CLIOverrides
	watcher   *fsnotify.Watcher
	last      []byte

	onChange func(*Config)
	onError  func(error)
}

// NewWatcher watches the directory containing path, so editors that replace
// the file through a rename are still noticed.
func NewWatcher(path string, parser Parser, overrides CLIOverrides, onChange func(*Config), onError func(error)) (*Watcher, error) {
	last, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	if onError == nil {
		onError = func(error) {}
	}
	return &Watcher{
		path:      path,
		parser:    parser,
		overrides: overrides,
		watcher:   fw,
		last:      last,
		onChange:  onChange,
		onError:   onError,
	}, nil
}

// Run dispatches reloads until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			switch {
			case evt.Has(fsnotify.Write), evt.Has(fsnotify.Create), evt.Has(fsnotify.Rename):
			default:
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) reload() {
	// Truncating writes show up as an empty file first.
	data, err := os.ReadFile(w.path)
	if err != nil || len(data) == 0 || bytes.Equal(data, w.last) {
		return
	}
	cfg, err := w.parser.LoadConfig(w.path, w.overrides)
	if err != nil {
		w.onError(err)
		return
	}
	w.last = data
	w.onChange(cfg)
}
