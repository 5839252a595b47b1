package source

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watch returns a channel that receives a value whenever fsnotify reports
// activity on the followed path. The directory is watched rather than the
// file so rotation shows up too. It returns nil when watching is disabled
// or unavailable; the poll interval alone still drives the loop then.
func (fs *FileSource) watch(ctx context.Context) <-chan struct{} {
	if !fs.cfg.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fs.log.Warn("file watching unavailable, polling only", zap.Error(err))
		return nil
	}
	dir := filepath.Dir(fs.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		fs.log.Warn("cannot watch directory, polling only", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	wake := make(chan struct{}, 1)
	fs.wg.Add(1)
	go func() {
		defer fs.wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, _ := filepath.Abs(event.Name)
				if abs != fs.path {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fs.log.Debug("watcher error", zap.Error(err))
			}
		}
	}()
	return wake
}
