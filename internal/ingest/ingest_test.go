package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-ingest/constants"
	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/entity"
	"github.com/joseph-ayodele/cv-ingest/internal/events"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
)

// fakeRunner fails documents by name and tracks peak concurrency.
type fakeRunner struct {
	mu       sync.Mutex
	seen     []string
	fail     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, doc pipeline.Document, pub events.Publisher) (*pipeline.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, doc.Name)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	pub.Publish(events.Event{Stage: constants.StageUploading})
	pub.Publish(events.Event{Stage: constants.StageWarning, Message: "truncated"})
	if err := f.fail[doc.Name]; err != nil {
		return nil, err
	}
	cv := &entity.StructuredCV{Personal: entity.Personal{FirstName: entity.Str("Jane"), LastName: entity.Str("Doe")}}
	return &pipeline.Result{CV: cv, Researcher: &entity.Researcher{ID: uuid.New()}}, nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestIngestDirectoryStats(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "a")
	writeFile(t, filepath.Join(root, "nested", "b.PDF"), "b")
	writeFile(t, filepath.Join(root, "dup.pdf"), "dup")
	writeFile(t, filepath.Join(root, "bad.pdf"), "bad")
	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "hidden")
	writeFile(t, filepath.Join(root, ".d.pdf"), "hidden file")

	runner := &fakeRunner{fail: map[string]error{
		"dup.pdf": &common.DuplicateError{Entity: "researcher", Key: "jane@uni.edu"},
		"bad.pdf": common.NewExtractionError(0, assert.AnError),
	}}
	ing := NewIngestor(runner, 2, nil)

	var mu sync.Mutex
	var got []events.Event
	ing.OnEvent = func(_ string, e events.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, DirStats{Scanned: 5, Matched: 4, Succeeded: 2, Duplicates: 1, Failed: 1}, stats)
	require.Len(t, results, 4)
	assert.Len(t, got, 8)

	byName := map[string]FileResult{}
	for _, r := range results {
		byName[filepath.Base(r.Path)] = r
	}
	assert.Equal(t, "Jane Doe", byName["a.pdf"].Name)
	assert.NotEmpty(t, byName["a.pdf"].ResearcherID)
	assert.Len(t, byName["a.pdf"].HashHex, 64)
	assert.Equal(t, 1, byName["a.pdf"].Warnings)
	assert.True(t, byName["dup.pdf"].Duplicate)
	assert.Equal(t, "duplicate", byName["dup.pdf"].Code)
	assert.Equal(t, "extraction", byName["bad.pdf"].Code)

	runner.mu.Lock()
	seen := append([]string(nil), runner.seen...)
	runner.mu.Unlock()
	sort.Strings(seen)
	assert.Equal(t, []string{"a.pdf", "b.PDF", "bad.pdf", "dup.pdf"}, seen)
}

func TestIngestDirectoryIncludesHiddenWhenAsked(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), "hidden")

	_, stats, err := NewIngestor(&fakeRunner{}, 1, nil).IngestDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Succeeded)
}

func TestIngestDirectoryBoundsConcurrency(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"1", "2", "3", "4", "5", "6"} {
		writeFile(t, filepath.Join(root, n+".pdf"), n)
	}
	runner := &fakeRunner{delay: 20 * time.Millisecond}

	_, stats, err := NewIngestor(runner, 2, nil).IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), stats.Succeeded)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestIngestDirectoryRejectsEmptyRoot(t *testing.T) {
	_, _, err := NewIngestor(&fakeRunner{}, 1, nil).IngestDirectory(context.Background(), "  ", true)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIngestDirectoryMissingRoot(t *testing.T) {
	_, _, err := NewIngestor(&fakeRunner{}, 1, nil).IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), true)
	assert.Error(t, err)
}

func TestIngestPathRejectsExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cv.docx")
	writeFile(t, p, "x")
	_, err := NewIngestor(&fakeRunner{}, 1, nil).IngestPath(context.Background(), p)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.False(t, IsHidden("."))
}

func TestWatcherEmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	paths, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 30 * time.Millisecond}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-paths:
			return filepath.Base(p)
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for watcher")
			return ""
		}
	}
	assert.Equal(t, "existing.pdf", next())

	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	target := filepath.Join(root, "new.pdf")
	writeFile(t, target, "one")
	require.NoError(t, os.WriteFile(target, []byte("two"), 0o644))
	assert.Equal(t, "new.pdf", next())

	// The write burst above is coalesced into a single path.
	select {
	case p := <-paths:
		t.Fatalf("unexpected extra path %q", p)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	for range paths {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
