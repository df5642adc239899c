package preview

import (
	"context"
	"path/filepath"
	"time"

	"github.com/radovskyb/watcher"
	"github.com/sirupsen/logrus"
)

// watchInterval is the poll period for bundle changes. Polling keeps
// the behavior identical across platforms and network mounts.
const watchInterval = 250 * time.Millisecond

// watchLoop polls the bundle dir and broadcasts a reload for every
// change until ctx is canceled.
func (s *Server) watchLoop(ctx context.Context) error {
	w := watcher.New()
	w.SetMaxEvents(1) // coalesce save bursts into one reload
	if err := w.AddRecursive(s.dir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case event := <-w.Event:
				rel, err := filepath.Rel(s.dir, event.Path)
				if err != nil {
					rel = event.Path
				}
				logrus.WithField("path", rel).Debug("bundle changed, reloading")
				s.hub.Broadcast(Event{Type: "reload", Path: filepath.ToSlash(rel)})
			case err := <-w.Error:
				logrus.WithError(err).Warn("watch error")
			case <-w.Closed:
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		w.Close()
	}()

	return w.Start(watchInterval)
}
