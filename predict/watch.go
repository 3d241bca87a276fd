package predict

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDelay = 200 * time.Millisecond

// Watch reloads the model whenever path is written or replaced. It returns once the
// watcher is registered; the watch stops when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	target := filepath.Clean(path)
	// watch the directory so renames that replace the file are seen
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer watcher.Close()

		// editors and the trainer write in bursts; reload once per burst
		timer := time.NewTimer(reloadDelay)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					timer.Reset(reloadDelay)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("model watcher error", zap.Error(err))

			case <-timer.C:
				s.log.Info("model file changed, reloading", zap.String("path", target))
				if err := s.Load(); err != nil {
					s.log.Warn("keeping previous model", zap.Error(err))
				}
			}
		}
	}()
	return nil
}
