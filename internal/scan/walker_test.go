package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/mkessler/evfind/internal/rules"
)

// noErrors returns an ErrorReporter that fails the test on any call.
func noErrors(tb testing.TB) ErrorReporter {
	tb.Helper()
	return func(path, stage, errMsg string) {
		tb.Errorf("unexpected scan error at %s (%s): %s", path, stage, errMsg)
	}
}

func collectWalk(tb testing.TB, roots []string, opts WalkOptions, progress *Progress) []FileInfo {
	tb.Helper()
	out := make(chan FileInfo, 1000)
	Walk(context.Background(), roots, opts, 4, out, noErrors(tb), progress)
	var got []FileInfo
	for fi := range out {
		got = append(got, fi)
	}
	return got
}

// TestDirQueueNeverLosesItems pushes 5 000 items, pops all, and verifies the
// exact set is returned (compaction must not drop entries).
func TestDirQueueNeverLosesItems(t *testing.T) {
	const n = 5000
	q := newDirQueue()

	for i := 0; i < n; i++ {
		q.pending.Add(1)
		q.Push(fmt.Sprintf("dir%04d", i))
	}

	var got []string
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, item)
		q.Done()
	}

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	sort.Strings(got)
	for i, v := range got {
		if want := fmt.Sprintf("dir%04d", i); v != want {
			t.Errorf("item %d: got %q, want %q", i, v, want)
		}
	}
}

// TestDirQueueCompactionBoundsMemory interleaves push/pop batches and verifies
// the backing slice doesn't grow to the total number of historical pushes.
func TestDirQueueCompactionBoundsMemory(t *testing.T) {
	const batchSize = 2000
	const batches = 5 // total pushes = 10 000
	q := newDirQueue()

	for b := 0; b < batches; b++ {
		for i := 0; i < batchSize; i++ {
			q.pending.Add(1)
			q.Push(fmt.Sprintf("d%d_%04d", b, i))
		}
		for i := 0; i < batchSize; i++ {
			if _, ok := q.Pop(); !ok {
				t.Fatal("queue closed unexpectedly during drain")
			}
			q.Done()
		}
	}

	q.mu.Lock()
	remaining := len(q.items) - q.head
	totalCap := cap(q.items)
	q.mu.Unlock()

	if remaining != 0 {
		t.Errorf("expected empty queue after full drain, got %d remaining items", remaining)
	}
	totalPushes := batchSize * batches
	if totalCap >= totalPushes {
		t.Errorf("backing array capacity %d >= total pushes %d, compaction not releasing memory",
			totalCap, totalPushes)
	}
}

// TestWalkFindsAllFiles creates a tree of 15 files across 3 subdirs and
// verifies Walk returns all of them with counters to match.
func TestWalkFindsAllFiles(t *testing.T) {
	root := t.TempDir()
	want := map[string]struct{}{}
	for i := 0; i < 3; i++ {
		sub := filepath.Join(root, fmt.Sprintf("sub%d", i))
		if err := os.Mkdir(sub, 0755); err != nil {
			t.Fatal(err)
		}
		for j := 0; j < 5; j++ {
			p := filepath.Join(sub, fmt.Sprintf("file%d.txt", j))
			if err := os.WriteFile(p, []byte("hello"), 0644); err != nil {
				t.Fatal(err)
			}
			want[p] = struct{}{}
		}
	}

	var progress Progress
	got := collectWalk(t, []string{root}, WalkOptions{}, &progress)

	if len(got) != len(want) {
		t.Errorf("found %d files, want %d", len(got), len(want))
	}
	for _, fi := range got {
		if _, ok := want[fi.Path]; !ok {
			t.Errorf("unexpected file %q", fi.Path)
		}
	}
	if n := progress.DirsVisited.Load(); n != 4 {
		t.Errorf("DirsVisited = %d, want 4 (root + 3 subdirs)", n)
	}
	if n := progress.FilesAccepted.Load(); n != 15 {
		t.Errorf("FilesAccepted = %d, want 15", n)
	}
}

// TestWalkPrunesExcludedDirs verifies an excluded directory is never
// descended into: none of its files appear and the directory counter shows
// the subtree was skipped entirely.
func TestWalkPrunesExcludedDirs(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "docs")
	skip := filepath.Join(root, "node_modules")
	deep := filepath.Join(skip, "pkg", "lib")
	for _, dir := range []string{keep, deep} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(keep, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(deep, "b.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := WalkOptions{Filters: rules.FileFilters{
		ExcludeDirs: map[string]struct{}{"node_modules": {}},
	}}
	var progress Progress
	got := collectWalk(t, []string{root}, opts, &progress)

	if len(got) != 1 || got[0].Path != filepath.Join(keep, "a.txt") {
		t.Errorf("got %v, want only docs/a.txt", got)
	}
	// root + docs only; node_modules and everything under it untouched.
	if n := progress.DirsVisited.Load(); n != 2 {
		t.Errorf("DirsVisited = %d, want 2", n)
	}
	if n := progress.FilesSeen.Load(); n != 1 {
		t.Errorf("FilesSeen = %d, want 1 (excluded subtree never read)", n)
	}
}

// TestWalkExtensionFilter: only configured extensions pass, matched
// case-insensitively.
func TestWalkExtensionFilter(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "c.txt", "d"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	opts := WalkOptions{Filters: rules.FileFilters{
		IncludeExtensions: map[string]struct{}{".pdf": {}},
	}}
	var progress Progress
	got := collectWalk(t, []string{root}, opts, &progress)

	if len(got) != 2 {
		t.Fatalf("got %d files, want 2 (.pdf in either case)", len(got))
	}
	if n := progress.FilesSeen.Load(); n != 4 {
		t.Errorf("FilesSeen = %d, want 4", n)
	}
}

func TestWalkSizeFilter(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "small.txt"), []byte("ok"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "big.txt"), make([]byte, 2048), 0644); err != nil {
		t.Fatal(err)
	}

	var progress Progress
	got := collectWalk(t, []string{root}, WalkOptions{MaxBytes: 1024}, &progress)

	if len(got) != 1 || filepath.Base(got[0].Path) != "small.txt" {
		t.Errorf("got %v, want only small.txt", got)
	}
}

// TestWalkDateBounds verifies the modified-since/until window, including the
// inclusive end-of-day upper bound: a file stamped 23:59:59 on the until
// date passes, one second into the next day does not.
func TestWalkDateBounds(t *testing.T) {
	root := t.TempDir()
	day, err := ParseDate("2023-06-15")
	if err != nil {
		t.Fatal(err)
	}

	stamp := func(name string, mtime time.Time) string {
		t.Helper()
		p := filepath.Join(root, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return p
	}

	before := stamp("before.txt", day.AddDate(0, 0, -10))
	lastSecond := stamp("last-second.txt", EndOfDay(day))
	after := stamp("after.txt", EndOfDay(day).Add(time.Second))

	opts := WalkOptions{
		Since: day.AddDate(0, 0, -1),
		Until: EndOfDay(day),
	}
	var progress Progress
	got := collectWalk(t, []string{root}, opts, &progress)

	paths := map[string]struct{}{}
	for _, fi := range got {
		paths[fi.Path] = struct{}{}
	}
	if _, ok := paths[lastSecond]; !ok {
		t.Error("file stamped 23:59:59 on the until date should pass")
	}
	if _, ok := paths[after]; ok {
		t.Error("file stamped one second past end of day should be rejected")
	}
	if _, ok := paths[before]; ok {
		t.Error("file older than since should be rejected")
	}
}

// TestFilterPath applies the walker filters to a pre-resolved path list.
func TestFilterPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "keep.txt")
	if err := os.WriteFile(good, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	opts := WalkOptions{Filters: rules.FileFilters{
		IncludeExtensions: map[string]struct{}{".txt": {}},
	}}

	fi, ok := FilterPath(good, opts)
	if !ok {
		t.Fatal("expected keep.txt to pass")
	}
	if fi.Size != 5 {
		t.Errorf("size = %d, want 5", fi.Size)
	}

	if _, ok := FilterPath(filepath.Join(dir, "missing.txt"), opts); ok {
		t.Error("missing path should not pass")
	}
	if _, ok := FilterPath(dir, opts); ok {
		t.Error("directory should not pass")
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2023-06-15")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := ParseDate("15/06/2023"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	got := EndOfDay(day)
	want := time.Date(2023, 6, 15, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
