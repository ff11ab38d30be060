package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{WorkerPrefix, CyclePrefix, PagePrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}

		parts := strings.Split(id, "_")
		if len(parts) != 2 || len(parts[1]) != 26 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	if w := NewWorkerID(); !strings.HasPrefix(w.String(), "wrk_") {
		t.Errorf("WorkerID should start with 'wrk_', got: %s", w)
	}
	if c := NewCycleID(); !strings.HasPrefix(c.String(), "cyc_") {
		t.Errorf("CycleID should start with 'cyc_', got: %s", c)
	}
	if p := NewPageID(); !strings.HasPrefix(p.String(), "page_") {
		t.Errorf("PageID should start with 'page_', got: %s", p)
	}
}

func TestCycleIDsSortInCreationOrder(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = NewCycleID().String()
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("IDs out of order at %d: %s vs %s", i, ids[i], sorted[i])
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewPageID().String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) {
		t.Errorf("Timestamp %v should be after %v", ts, before)
	}

	if _, err := Timestamp("page_not-a-ulid"); err == nil {
		t.Error("Expected error for invalid ULID")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[WorkerID]bool)
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				w := NewWorkerID()
				mu.Lock()
				seen[w] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 1000 {
		t.Errorf("Expected 1000 unique IDs, got %d", len(seen))
	}
}
