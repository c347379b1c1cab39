package worker

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 500 * time.Millisecond

// WatchConfigs calls update after json files in dir changed. Bursts of
// events, like an editor saving, cause a single update.
func WatchConfigs(ctx context.Context, dir string, update func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	logger := log.With().Str("component", "watcher").Str("dir", dir).Logger()

	go func() {
		defer watcher.Close()
		timer := time.NewTimer(watchDebounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".json" || event.Op == fsnotify.Chmod {
					continue
				}
				logger.Debug().Str("file", event.Name).Stringer("op", event.Op).Msg("config changed")
				timer.Reset(watchDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("watching configs")
			case <-timer.C:
				if err := update(); err != nil {
					logger.Warn().Err(err).Msg("reload after config change failed")
					continue
				}
				logger.Info().Msg("reloaded configs")
			}
		}
	}()
	return nil
}
