package main

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchAndRelaunch mirrors the retrieval pack's own fsnotify-backed watch
// loops (orizon's internal/runtime/vfs watches a directory and translates
// raw events into its own Event type): watching the packed guest image and
// the manifest, logging a relaunch hint rather than exec'ing a rebuild
// itself, since hvrun doesn't own the guest build step.
func watchAndRelaunch(ctx context.Context, cfg runConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := []string{cfg.imagePath}
	if cfg.manifestPath != "" {
		watched = append(watched, cfg.manifestPath)
	}
	for _, path := range watched {
		if path == "" {
			continue
		}
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRelevant(event.Name, watched) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("hvrun: %s changed, re-pack with hvimg and restart hvrun to pick it up", event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("hvrun: watch error: %v", err)
		}
	}
}

func isRelevant(name string, watched []string) bool {
	for _, w := range watched {
		if w != "" && filepath.Clean(name) == filepath.Clean(w) {
			return true
		}
	}
	return false
}
