package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestTraceWriterRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	jobID := "trace-job"

	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	entries := []TraceEntry{
		{Iteration: 1, Objective: 0.9, Change: 0.5, Timestamp: time.Now()},
		{Iteration: 2, Objective: 0.7, Change: 0.2, Timestamp: time.Now()},
		{Iteration: 3, Objective: 0.65, Change: 0.05, Timestamp: time.Now()},
	}
	for _, e := range entries {
		if err := tw.Write(e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := ReadTrace(tempDir, jobID)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Read %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.Iteration != entries[i].Iteration {
			t.Errorf("Entry %d: Iteration = %d, want %d", i, e.Iteration, entries[i].Iteration)
		}
		if e.Objective != entries[i].Objective {
			t.Errorf("Entry %d: Objective = %v, want %v", i, e.Objective, entries[i].Objective)
		}
	}
}

func TestTraceWriterAppendMode(t *testing.T) {
	tempDir := t.TempDir()
	jobID := "append-job"

	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Iteration: 1, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen in append mode, as the resume path does.
	tw, err = NewTraceWriter(tempDir, jobID, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := tw.Write(TraceEntry{Iteration: 2, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(tempDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Read %d entries, want 2", len(got))
	}
	if got[1].Iteration != 2 {
		t.Errorf("Second entry iteration = %d, want 2", got[1].Iteration)
	}
}

func TestTraceWriterTruncateMode(t *testing.T) {
	tempDir := t.TempDir()
	jobID := "truncate-job"

	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Write(TraceEntry{Iteration: 1, Timestamp: time.Now()})
	tw.Close()

	// Reopening without append mode starts the trace over.
	tw, err = NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	tw.Write(TraceEntry{Iteration: 99, Timestamp: time.Now()})
	tw.Close()

	got, err := ReadTrace(tempDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Read %d entries, want 1", len(got))
	}
	if got[0].Iteration != 99 {
		t.Errorf("Iteration = %d, want 99", got[0].Iteration)
	}
}

func TestReadTraceMissingFile(t *testing.T) {
	got, err := ReadTrace(t.TempDir(), "no-such-job")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty trace, got %d entries", len(got))
	}
}

func TestTraceWriterFlush(t *testing.T) {
	tempDir := t.TempDir()
	jobID := "flush-job"

	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}
	defer tw.Close()

	if err := tw.Write(TraceEntry{Iteration: 1, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Entry must be visible before Close.
	got, err := ReadTrace(tempDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("Read %d entries after flush, want 1", len(got))
	}

	info, err := os.Stat(filepath.Join(tempDir, "jobs", jobID, "trace.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("Trace file is empty after flush")
	}
}

func TestTraceWriterConcurrent(t *testing.T) {
	tempDir := t.TempDir()
	jobID := "concurrent-job"

	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				tw.Write(TraceEntry{Iteration: g*25 + i, Timestamp: time.Now()})
			}
		}(g)
	}
	wg.Wait()

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := ReadTrace(tempDir, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 100 {
		t.Errorf("Read %d entries, want 100", len(got))
	}
}
