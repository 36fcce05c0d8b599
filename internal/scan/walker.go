package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkessler/evfind/internal/rules"
)

// FileInfo is a filesystem entry emitted by the walker.
type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
}

// WalkOptions bundle the per-run file filters. Until must already be the
// inclusive end-of-day instant (23:59:59 of the requested date); a zero
// Since/Until disables that bound. MaxBytes of 0 disables the size filter.
type WalkOptions struct {
	Filters  rules.FileFilters
	MaxBytes int64
	Since    time.Time
	Until    time.Time
}

// accept applies the extension, size and date filters to one candidate.
func (o WalkOptions) accept(name string, size int64, mtime time.Time) bool {
	if len(o.Filters.IncludeExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := o.Filters.IncludeExtensions[ext]; !ok {
			return false
		}
	}
	if o.MaxBytes > 0 && size > o.MaxBytes {
		return false
	}
	if !o.Since.IsZero() && mtime.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && mtime.After(o.Until) {
		return false
	}
	return true
}

// FilterPath stats a pre-resolved path (e.g. from an external index) and
// applies the same filters the walker would. Returns false for anything that
// fails to stat — transient I/O noise, not an error.
func FilterPath(path string, opts WalkOptions) (FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return FileInfo{}, false
	}
	if !opts.accept(info.Name(), info.Size(), info.ModTime()) {
		return FileInfo{}, false
	}
	return FileInfo{Path: path, Size: info.Size(), MTime: info.ModTime()}, true
}

// ParseDate parses a YYYY-MM-DD literal in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// EndOfDay returns the last second of t's calendar day, making an "until"
// bound inclusive through 23:59:59.
func EndOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Second)
}

// dirQueue is an unbounded, concurrency-safe queue of directory paths.
// It tracks a pending counter so that Walk() knows when all work is done.
//
// Termination protocol:
//   - Push increments pending BEFORE enqueuing (caller must own the increment).
//   - Done decrements pending AFTER all children of a directory have been
//     pushed. When pending reaches 0, Done closes the queue and broadcasts.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	head    int // index of the next item to pop; avoids O(n) re-slicing
	pending atomic.Int64
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a directory. Must be called after incrementing pending.
func (q *dirQueue) Push(dir string) {
	q.mu.Lock()
	q.items = append(q.items, dir)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed.
// Returns ("", false) when the queue is closed and empty.
func (q *dirQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head >= len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head >= len(q.items) {
		return "", false
	}
	item := q.items[q.head]
	q.items[q.head] = "" // release string reference so GC can collect it
	q.head++
	// Compact when we've consumed at least 1 000 items and head has passed
	// the midpoint — keeps the backing array from growing without bound.
	if q.head >= 1000 && q.head >= len(q.items)/2 {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

// Done must be called once per directory after all its child-directories have
// been pushed. Decrements pending; if pending reaches 0, closes the queue.
func (q *dirQueue) Done() {
	if q.pending.Add(-1) == 0 {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}
}

// Walk traverses roots concurrently using numWorkers goroutines and sends
// every file passing the filters to out. Walk closes out when done.
// Directories whose basename is in opts.Filters.ExcludeDirs are pruned
// before descent: excluded subtrees are never entered at all.
// report is called for filesystem errors encountered during traversal;
// progress counts visited directories and seen/accepted files.
func Walk(ctx context.Context, roots []string, opts WalkOptions, numWorkers int, out chan<- FileInfo, report ErrorReporter, progress *Progress) {
	defer close(out)

	q := newDirQueue()

	// Seed the queue with root directories.
	for _, root := range roots {
		q.pending.Add(1)
		q.Push(root)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			walkerWorker(ctx, q, opts, out, report, progress)
		}()
	}
	wg.Wait()
}

// walkerWorker pops directories from q, reads their entries, enqueues
// sub-directories (incrementing pending first), sends accepted files to out,
// then calls q.Done() to decrement pending.
func walkerWorker(ctx context.Context, q *dirQueue, opts WalkOptions, out chan<- FileInfo, report ErrorReporter, progress *Progress) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dir, ok := q.Pop()
		if !ok {
			return
		}
		progress.DirsVisited.Add(1)

		entries, err := os.ReadDir(dir)
		if err != nil {
			report(dir, "walk", err.Error())
			q.Done()
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if _, excluded := opts.Filters.ExcludeDirs[entry.Name()]; excluded {
					continue
				}
				// Increment BEFORE pushing so pending is never zero prematurely.
				q.pending.Add(1)
				q.Push(path)
				continue
			}

			if entry.Type()&fs.ModeSymlink != 0 {
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			progress.FilesSeen.Add(1)

			info, err := entry.Info()
			if err != nil {
				// Stat failure is transient I/O noise; drop the entry.
				continue
			}
			if !opts.accept(entry.Name(), info.Size(), info.ModTime()) {
				continue
			}
			progress.FilesAccepted.Add(1)

			select {
			case <-ctx.Done():
				q.Done()
				return
			case out <- FileInfo{
				Path:  path,
				Size:  info.Size(),
				MTime: info.ModTime(),
			}:
			}
		}

		q.Done()
	}
}
