package server

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"
)

// watcher drives live reload. Filesystem events under the root are debounced
// and, when the tree fingerprint actually changed, handed to onChange.
type watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	onChange func()

	wg sync.WaitGroup

	mu         sync.Mutex
	lastDigest string
}

func newWatcher(root string, debounce time.Duration, onChange func()) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &watcher{fsw: fsw, root: root, debounce: debounce, onChange: onChange}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	w.lastDigest, _ = treeDigest(root)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// addRecursive watches dir and every subdirectory, skipping hidden ones.
func (w *watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Chmod fires for permission touches and some editors' saves
			// without content changes.
			if event.Op&fsnotify.Chmod != 0 {
				continue
			}
			// New directories need their own watch.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(event.Name); err != nil {
						slog.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}
			if timer != nil {
				timer.Reset(w.debounce)
			} else {
				timer = time.AfterFunc(w.debounce, w.fire)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}

// fire runs once the debounce window closes. Transient editor files and
// directory-only events produce batches that leave the visible tree
// unchanged; the fingerprint comparison keeps those from reloading every
// open tab.
func (w *watcher) fire() {
	digest, err := treeDigest(w.root)
	if err != nil {
		slog.Warn("Failed to fingerprint root", "error", err)
		digest = ""
	}

	w.mu.Lock()
	changed := digest == "" || digest != w.lastDigest
	w.lastDigest = digest
	w.mu.Unlock()

	if changed {
		w.onChange()
	}
}

func (w *watcher) stop() {
	if err := w.fsw.Close(); err != nil {
		slog.Warn("Failed to close file watcher", "error", err)
	}
	w.wg.Wait()
}

// treeDigest hashes the metadata of every visible file under root: relative
// path, size, and mtime. Contents are not read, so the fingerprint is cheap
// even for large trees.
func treeDigest(root string) (string, error) {
	h := blake3.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		fmt.Fprintf(h, "%s:%d:%d;", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
