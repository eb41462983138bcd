package discovery

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Watch follows dir for newly-created precomputed-block files after the
// initial ScanDir pass, calling onEntry for each one recognized by the
// PCB filename pattern. It runs until ctx is cancelled. Grounded on the
// teacher's shared/fileutil watcher-less polling being generalized here
// to fsnotify's inotify-backed event stream, since a long-lived indexer
// process benefits from not re-scanning the directory on a timer.
func Watch(ctx context.Context, dir string, onEntry func(Entry)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not start directory watcher")
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return errors.Wrapf(err, "could not watch %s", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			handleWatchEvent(ev, onEntry)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("directory watcher reported an error")
		}
	}
}

func handleWatchEvent(ev fsnotify.Event, onEntry func(Entry)) {
	base := baseName(ev.Name)
	network, height, stateHash, ok := ParseFilename(base)
	if !ok {
		return
	}
	parent, err := readPreviousStateHash(ev.Name)
	if err != nil {
		log.WithError(err).WithField("path", ev.Name).Warn("could not read newly-observed PCB file, skipping")
		return
	}
	onEntry(Entry{
		Path:       ev.Name,
		Network:    network,
		Height:     height,
		StateHash:  stateHash,
		ParentHash: parent,
	})
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
