package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/hazyhaar/plotmap/mapview/internal/plot"
)

// FileSource reads rows from a local JSON file in either payload shape.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFile creates a FileSource. A nil logger uses slog.Default().
func NewFile(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{path: filepath.Clean(path), logger: logger}
}

// Path returns the watched file path.
func (f *FileSource) Path() string { return f.path }

// Fetch reads and decodes the file.
func (f *FileSource) Fetch(ctx context.Context) ([]plot.Plot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransport, f.path, err)
	}
	return Decode(data)
}

// Watch blocks until ctx is done, calling onChange whenever the file is
// written or created. The parent directory is watched
// so editors that replace the file are seen.
func (f *FileSource) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("source: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("source: watch %s: %w", filepath.Dir(f.path), err)
	}
	f.logger.Info("source: watching file", "path", f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				f.logger.Debug("source: file changed", "path", f.path, "op", ev.Op.String())
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("source: watcher error", "error", err)
		}
	}
}
