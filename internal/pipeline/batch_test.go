package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// memRecorder collects failure records in memory.
type memRecorder struct {
	records []string
}

func (r *memRecorder) RecordFailure(label, step string, batchIndex int, message string, _ map[string]any) error {
	r.records = append(r.records, fmt.Sprintf("%s/%s@%d: %s", label, step, batchIndex, message))
	return nil
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{"title": fmt.Sprintf("item-%d", i)}
	}
	return items
}

func TestBatchProcessorHappyPath(t *testing.T) {
	rec := &memRecorder{}
	p, err := NewBatchProcessor(BatchProcessorConfig{Failures: rec})
	if err != nil {
		t.Fatal(err)
	}

	var sizes []int
	call := func(_ context.Context, batch []Item) ([]Item, error) {
		sizes = append(sizes, len(batch))
		return batch, nil
	}

	items := makeItems(10)
	out, failed, err := p.ProcessAll(context.Background(), "news", "enrich", items, call)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if failed != 0 {
		t.Errorf("failed windows = %d, want 0", failed)
	}
	if len(out) != 10 {
		t.Fatalf("output length = %d, want 10", len(out))
	}
	// Starts at the largest rung and stays there on success.
	if sizes[0] != 6 || sizes[1] != 4 {
		t.Errorf("window sizes = %v, want [6 4]", sizes)
	}
	if len(rec.records) != 0 {
		t.Errorf("unexpected failure records: %v", rec.records)
	}
}

func TestBatchProcessorStepsDownOnEmptyResponse(t *testing.T) {
	rec := &memRecorder{}
	p, err := NewBatchProcessor(BatchProcessorConfig{Failures: rec, InitialSize: 6})
	if err != nil {
		t.Fatal(err)
	}

	// The backend only copes with batches of 2 or fewer.
	var sizes []int
	call := func(_ context.Context, batch []Item) ([]Item, error) {
		sizes = append(sizes, len(batch))
		if len(batch) > 2 {
			return nil, nil
		}
		return batch, nil
	}

	items := makeItems(8)
	out, failed, err := p.ProcessAll(context.Background(), "news", "enrich", items, call)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if failed != 0 {
		t.Errorf("failed windows = %d, want 0", failed)
	}
	if len(out) != 8 {
		t.Fatalf("output length = %d, want 8", len(out))
	}
	// First window shrinks 6 -> 4 -> 2 before the cursor first moves.
	if sizes[0] != 6 || sizes[1] != 4 || sizes[2] != 2 {
		t.Errorf("leading window sizes = %v, want 6, 4, 2 prefix", sizes[:3])
	}
	// Every item appears exactly once, in order.
	for i, it := range out {
		if want := fmt.Sprintf("item-%d", i); it.Title() != want {
			t.Errorf("out[%d].Title() = %q, want %q", i, it.Title(), want)
		}
	}
}

func TestBatchProcessorStepsBackUpAfterSuccess(t *testing.T) {
	rec := &memRecorder{}
	p, err := NewBatchProcessor(BatchProcessorConfig{Failures: rec, InitialSize: 6})
	if err != nil {
		t.Fatal(err)
	}

	// Fail only the very first window, then accept anything.
	var sizes []int
	call := func(_ context.Context, batch []Item) ([]Item, error) {
		sizes = append(sizes, len(batch))
		if len(sizes) == 1 {
			return nil, nil
		}
		return batch, nil
	}

	if _, _, err := p.ProcessAll(context.Background(), "news", "enrich", makeItems(12), call); err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	// 6 fails, 4 succeeds, then the rung steps back up to 6.
	if sizes[0] != 6 || sizes[1] != 4 || sizes[2] != 6 {
		t.Errorf("window sizes = %v, want [6 4 6 ...]", sizes)
	}
}

func TestBatchProcessorDegradesAtSmallestRung(t *testing.T) {
	rec := &memRecorder{}
	p, err := NewBatchProcessor(BatchProcessorConfig{
		Ladder:   []int{2, 1},
		Failures: rec,
	})
	if err != nil {
		t.Fatal(err)
	}

	call := func(_ context.Context, _ []Item) ([]Item, error) {
		return nil, errors.New("backend broken")
	}

	items := makeItems(3)
	out, failed, err := p.ProcessAll(context.Background(), "news", "enrich", items, call)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	// Originals pass through unenriched; nothing is dropped.
	if len(out) != 3 {
		t.Fatalf("output length = %d, want 3", len(out))
	}
	for i, it := range out {
		if want := fmt.Sprintf("item-%d", i); it.Title() != want {
			t.Errorf("out[%d].Title() = %q, want %q", i, it.Title(), want)
		}
	}
	if failed != 3 {
		t.Errorf("failed windows = %d, want 3", failed)
	}
	if len(rec.records) != 3 {
		t.Errorf("failure records = %d, want 3", len(rec.records))
	}
}

func TestBatchProcessorRejectsBadLadder(t *testing.T) {
	rec := &memRecorder{}
	for _, ladder := range [][]int{{4, 6}, {4, 4}, {2, 0}} {
		if _, err := NewBatchProcessor(BatchProcessorConfig{Ladder: ladder, Failures: rec}); err == nil {
			t.Errorf("NewBatchProcessor(%v) expected error", ladder)
		}
	}
	if _, err := NewBatchProcessor(BatchProcessorConfig{}); err == nil {
		t.Error("NewBatchProcessor without a failure recorder expected error")
	}
}

func TestBatchProcessorStopsOnContextCancel(t *testing.T) {
	rec := &memRecorder{}
	p, err := NewBatchProcessor(BatchProcessorConfig{Failures: rec})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	call := func(_ context.Context, batch []Item) ([]Item, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return batch, nil
	}

	_, _, err = p.ProcessAll(ctx, "news", "enrich", makeItems(20), call)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessAll() error = %v, want context.Canceled", err)
	}
}
