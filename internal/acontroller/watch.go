package acontroller

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// QueueWatcher watches a queue file's directory and signals on wake
// whenever the file is written, letting Controller.Run's poll-sleep wake
// early instead of waiting the full pollSeconds floor. Modeled on a
// directory fsnotify watcher filtered to one filename, feeding a channel
// the owning loop selects on.
type QueueWatcher struct {
	watcher   *fsnotify.Watcher
	queueName string
	wake      chan struct{}
}

// NewQueueWatcher starts watching queuePath's containing directory. The
// returned wake channel fires (non-blocking, best-effort) on every
// create/write/rename event for queuePath; callers pass it as
// Controller.Wake. Close stops the watch.
func NewQueueWatcher(queuePath string) (*QueueWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(queuePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	qw := &QueueWatcher{
		watcher:   watcher,
		queueName: filepath.Base(queuePath),
		wake:      make(chan struct{}, 1),
	}
	return qw, nil
}

// Wake returns the channel Controller.Run should select on for early
// wake-up signals.
func (qw *QueueWatcher) Wake() <-chan struct{} {
	return qw.wake
}

// Run forwards filtered fsnotify events onto Wake until ctx is cancelled
// or the watcher closes. Callers start this in a goroutine.
func (qw *QueueWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-qw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != qw.queueName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case qw.wake <- struct{}{}:
			default:
			}
		case _, ok := <-qw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (qw *QueueWatcher) Close() error {
	return qw.watcher.Close()
}
