package scenario

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Scenario each time the file is written. It runs until ctx is cancelled.
//
// If a reload fails (invalid YAML or a validation error), the error is
// logged and the previous scenario remains active; Watch does not call
// onChange.
func Watch(ctx context.Context, log zerolog.Logger, path string, onChange func(*Scenario)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	log.Info().Str("path", path).Msg("watching scenario file for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often write via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			s, err := Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).
					Msg("scenario reload failed, keeping previous scenario")
				continue
			}

			log.Info().Str("path", path).Msg("scenario reloaded")
			onChange(s)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("scenario watcher error")
		}
	}
}
