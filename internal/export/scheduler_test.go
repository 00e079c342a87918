package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/journeys/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	ms := seedStore(t)
	dest := &mockDestination{}

	sched := NewScheduler(ms, 2, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Wait for at least the initial export + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	// 1 header + 1 journey + 2 steps + 1 edge
	if lines := nonEmptyLines(string(data)); len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memory.New(), 0, nil, time.Minute, nil)
	// Stop without Start should not panic.
	sched.Stop()
}

func TestRunOnce_DestinationFailureDoesNotStopOthers(t *testing.T) {
	failing := &mockDestination{err: errors.New("bucket gone")}
	ok := &mockDestination{}

	sched := NewScheduler(memory.New(), 0, []Destination{failing, ok}, time.Minute, testLogger())
	err := sched.RunOnce(context.Background())
	if err == nil || err.Error() != "bucket gone" {
		t.Fatalf("RunOnce = %v, want the destination error", err)
	}
	if ok.writes.Load() != 1 {
		t.Fatalf("second destination writes = %d, want 1", ok.writes.Load())
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.jsonl")
	dest := &FileDestination{Path: path}

	sched := NewScheduler(seedStore(t), 0, []Destination{dest}, time.Minute, testLogger())
	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 13 {
		t.Fatalf("expected 13 lines, got %d", len(lines))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestS3Options(t *testing.T) {
	if opts := s3Options(""); len(opts) != 0 {
		t.Errorf("no endpoint should add no options, got %d", len(opts))
	}
	if opts := s3Options("http://localhost:9000"); len(opts) != 1 {
		t.Errorf("custom endpoint should add one option, got %d", len(opts))
	}
}

func TestNewS3Destination_RequiresBucket(t *testing.T) {
	if _, err := NewS3Destination(context.Background(), "", "k", "us-east-1", ""); err == nil {
		t.Fatal("expected error for empty bucket")
	}
}
