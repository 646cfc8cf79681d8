// Package filecache holds the parsed scan files every screen reads from.
package filecache

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"furnacewear/internal/metrics"
	"furnacewear/internal/models"
	"furnacewear/pkg/ingest"
)

// FileError reports a file that could not be ingested.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

func (e FileError) Unwrap() error { return e.Err }

// Report describes the outcome of a batch ingestion.
type Report struct {
	Loaded   []string
	Failures []FileError
}

// Options configures a Cache.
type Options struct {
	// Workers bounds concurrent parsing, runtime.NumCPU() when zero
	Workers int

	// Parse is the template for every file; FileName is set per file
	Parse ingest.Options

	Logger *slog.Logger
}

// Cache publishes snapshots of parsed files. Readers take the current
// snapshot without locking; writers are serialized and swap in a new one.
type Cache struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a cache holding an empty snapshot.
func New(opts Options) *Cache {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Parse.Logger == nil {
		opts.Parse.Logger = logger
	}
	c := &Cache{opts: opts, logger: logger, now: time.Now}
	c.current.Store(NewSnapshot())
	return c
}

// Snapshot returns the current snapshot.
func (c *Cache) Snapshot() *Snapshot { return c.current.Load() }

// Replace swaps in a snapshot built elsewhere.
func (c *Cache) Replace(s *Snapshot) {
	if s == nil {
		s = NewSnapshot()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(s)
}

// Parse parses one blob with the cache's options.
func (c *Cache) Parse(blob ingest.Blob, furnaceID string) (*models.ParsedFile, error) {
	opts := c.opts.Parse
	opts.FileName = blob.Name
	if furnaceID != "" {
		opts.FurnaceID = furnaceID
	}
	f, err := ingest.ParseAt(blob.Content, opts, c.now().UTC())
	if err != nil {
		metrics.ObserveFileIngested(metrics.OutcomeError, 0)
		return nil, err
	}
	metrics.ObserveFileIngested(metrics.OutcomeSuccess, f.SkippedRows)
	return f, nil
}

// Ingest parses a batch on a bounded worker pool and replaces the whole
// cache with the files that parsed. Failed files are reported and do not
// stop the others. The cache is left unchanged if ctx is cancelled.
func (c *Cache) Ingest(ctx context.Context, batch []ingest.Blob) (Report, error) {
	parsed := make([]*models.ParsedFile, len(batch))
	errs := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, blob := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i], errs[i] = c.Parse(blob, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var report Report
	files := make([]*models.ParsedFile, 0, len(batch))
	for i, blob := range batch {
		if errs[i] != nil {
			c.logger.Warn("scan file rejected", "file", blob.Name, "error", errs[i])
			report.Failures = append(report.Failures, FileError{Name: blob.Name, Err: errs[i]})
			continue
		}
		files = append(files, parsed[i])
		report.Loaded = append(report.Loaded, blob.Name)
	}

	snap := NewSnapshot(files...)
	c.Replace(snap)
	c.logger.Info("scan folder ingested",
		"files", snap.Len(), "failed", len(report.Failures), "workers", c.opts.Workers)
	return report, nil
}

// Put adds or replaces one file.
func (c *Cache) Put(f *models.ParsedFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.Store(c.current.Load().with(f))
}

// Remove drops a file, reporting whether it was present.
func (c *Cache) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.current.Load()
	if _, ok := cur.Get(name); !ok {
		return false
	}
	c.current.Store(cur.without(name))
	return true
}
