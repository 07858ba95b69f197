package tokenstore

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch starts a file watcher over the store root and invokes onChange with
// the account name whenever its token file is written, created or removed.
// The callback runs on the watcher goroutine; it should be cheap. Watching
// stops when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func(account string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if account, ok := accountFromFileName(filepath.Base(event.Name)); ok {
					onChange(account)
				}
			case <-watcher.Errors:
				// Watcher errors are not fatal; status polls still work.
			}
		}
	}()

	return nil
}

func accountFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, "token_") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	account := strings.TrimSuffix(strings.TrimPrefix(name, "token_"), ".json")
	return account, account != ""
}
