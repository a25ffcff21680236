// Package stats persists per-path request counters across server runs.
package stats

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketHits       = "hits"
	bucketMeta       = "meta"
	keySchemaVersion = "schema_version"
	schemaVersion    = 1

	flushInterval = 5 * time.Second
)

// Entry is one path's accumulated record.
type Entry struct {
	Path       string `msgpack:"path"`
	Count      uint64 `msgpack:"count"`
	Bytes      uint64 `msgpack:"bytes"`
	LastStatus int    `msgpack:"last_status"`
	LastServed int64  `msgpack:"last_served"`
}

// Recorder accumulates request records in memory and merges them into a
// bolt database on a fixed interval and on Close. Record is safe to call
// from concurrent request handlers.
type Recorder struct {
	db *bolt.DB

	mu    sync.Mutex
	dirty map[string]*Entry

	done chan struct{}
	wg   sync.WaitGroup
}

// Open creates or opens the database at path and starts the background
// flusher. The short lock timeout makes a second instance on the same store
// fail fast instead of hanging.
func Open(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}

	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open stats store: %w", err)
	}

	r := &Recorder{
		db:    db,
		dirty: make(map[string]*Entry),
		done:  make(chan struct{}),
	}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize stats schema: %w", err)
	}

	r.wg.Add(1)
	go r.flushLoop()
	return r, nil
}

func (r *Recorder) initSchema() error {
	return r.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketHits)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		return meta.Put([]byte(keySchemaVersion), []byte{schemaVersion})
	})
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				slog.Warn("Failed to flush request stats", "error", err)
			}
		}
	}
}

// Record merges one served request into the pending set. Nothing touches
// the database on the request path.
func (r *Recorder) Record(path string, status int, bytes int64) {
	now := time.Now().Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.dirty[path]
	if !ok {
		e = &Entry{Path: path}
		r.dirty[path] = e
	}
	e.Count++
	if bytes > 0 {
		e.Bytes += uint64(bytes)
	}
	e.LastStatus = status
	e.LastServed = now
}

// Flush merges the pending set into the database in one transaction.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	if len(r.dirty) == 0 {
		r.mu.Unlock()
		return nil
	}
	pending := r.dirty
	r.dirty = make(map[string]*Entry)
	r.mu.Unlock()

	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketHits))
		for path, e := range pending {
			merged := *e
			if prev := b.Get([]byte(path)); prev != nil {
				var old Entry
				if err := msgpack.Unmarshal(prev, &old); err == nil {
					merged.Count += old.Count
					merged.Bytes += old.Bytes
				}
			}
			data, err := msgpack.Marshal(&merged)
			if err != nil {
				return fmt.Errorf("encode entry %s: %w", path, err)
			}
			if err := b.Put([]byte(path), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Entries returns every persisted record, most requested first.
func (r *Recorder) Entries() ([]Entry, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketHits)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Reset drops every record, pending and persisted.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	r.dirty = make(map[string]*Entry)
	r.mu.Unlock()

	return r.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketHits)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketHits))
		return err
	})
}

// Close stops the flusher, writes pending records, and closes the database.
// Close must be called exactly once.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()

	flushErr := r.Flush()
	if err := r.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// Totals sums request counts and served bytes across entries.
func Totals(entries []Entry) (requests, bytes uint64) {
	for _, e := range entries {
		requests += e.Count
		bytes += e.Bytes
	}
	return requests, bytes
}

// DefaultPath places the store under the user cache directory, keyed by the
// served root so projects do not share counters. Nothing is ever written
// inside the served tree.
func DefaultPath(root string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	key := blake3.Sum256([]byte(root))
	return filepath.Join(base, "sewa", hex.EncodeToString(key[:8])+".db")
}
