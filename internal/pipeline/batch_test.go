package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/breachscan/internal/model"
)

// fakeLookuper returns canned results keyed by address.
type fakeLookuper struct {
	mu      sync.Mutex
	results map[string]model.LookupResult
	calls   []string
	onCall  func(email string)
}

func (f *fakeLookuper) Lookup(_ context.Context, email string) model.LookupResult {
	f.mu.Lock()
	f.calls = append(f.calls, email)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(email)
	}
	if r, ok := f.results[email]; ok {
		return r
	}
	return model.NewCleanResult()
}

// recordingSleeper records the requested pauses without waiting.
type recordingSleeper struct {
	pauses []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeLookuper{})

		if bp.pacing != 1500*time.Millisecond {
			t.Errorf("expected default pacing 1.5s, got %v", bp.pacing)
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("ignores negative pacing", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeLookuper{}, WithPacing(-time.Second))

		if bp.pacing != 1500*time.Millisecond {
			t.Errorf("expected default pacing, got %v", bp.pacing)
		}
	})
}

// TestBatchProcessorProcessBatch tests sequential lookups with pacing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order and pauses between lookups only", func(t *testing.T) {
		t.Parallel()

		client := &fakeLookuper{results: map[string]model.LookupResult{
			"alice@example.com": model.NewBreachedResult([]model.Breach{{Name: "Adobe"}}),
		}}
		sleeper := &recordingSleeper{}
		bp := NewBatchProcessor(client,
			WithPacing(1500*time.Millisecond),
			WithPacingSleeper(sleeper.sleep),
			WithBatchLogger(discardLogger()),
		)

		emails := []string{"alice@example.com", "bob@example.com", "alice@example.com"}
		lookups, err := bp.ProcessBatch(context.Background(), emails)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(lookups) != 3 {
			t.Fatalf("expected 3 lookups, got %d", len(lookups))
		}
		for i, l := range lookups {
			if l.Email != emails[i] {
				t.Errorf("lookup %d: expected %s, got %s", i, emails[i], l.Email)
			}
		}
		if !lookups[0].Result.IsBreached() || !lookups[2].Result.IsBreached() {
			t.Error("expected duplicate address to be looked up twice")
		}
		if len(sleeper.pauses) != 2 {
			t.Fatalf("expected 2 pauses for 3 lookups, got %d", len(sleeper.pauses))
		}
		for _, p := range sleeper.pauses {
			if p != 1500*time.Millisecond {
				t.Errorf("expected 1.5s pause, got %v", p)
			}
		}
	})

	t.Run("continues after a failed lookup", func(t *testing.T) {
		t.Parallel()

		client := &fakeLookuper{results: map[string]model.LookupResult{
			"bad@example.com": model.NewFailedResult(model.FailureUnreachable, 0, errors.New("dial")),
		}}
		bp := NewBatchProcessor(client, WithPacing(0), WithBatchLogger(discardLogger()))

		lookups, err := bp.ProcessBatch(context.Background(), []string{"bad@example.com", "ok@example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lookups) != 2 {
			t.Fatalf("expected 2 lookups, got %d", len(lookups))
		}
		if !lookups[0].Result.IsFailed() {
			t.Error("expected first lookup to fail")
		}
		if !lookups[1].Result.IsClean() {
			t.Error("expected second lookup to be clean")
		}
	})

	t.Run("empty input makes no calls", func(t *testing.T) {
		t.Parallel()

		client := &fakeLookuper{}
		bp := NewBatchProcessor(client, WithBatchLogger(discardLogger()))

		lookups, err := bp.ProcessBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lookups) != 0 || len(client.calls) != 0 {
			t.Errorf("expected no lookups, got %d lookups and %d calls", len(lookups), len(client.calls))
		}
	})

	t.Run("stops on cancellation without recording the interrupted lookup", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := &fakeLookuper{}
		client.onCall = func(email string) {
			if email == "second@example.com" {
				cancel()
			}
		}
		bp := NewBatchProcessor(client, WithPacing(0), WithBatchLogger(discardLogger()))

		emails := []string{"first@example.com", "second@example.com", "third@example.com"}
		lookups, err := bp.ProcessBatch(ctx, emails)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(lookups) != 1 {
			t.Errorf("expected 1 completed lookup, got %d", len(lookups))
		}
		if len(client.calls) != 2 {
			t.Errorf("expected 2 calls, got %d", len(client.calls))
		}
	})

	t.Run("invokes callback for each lookup", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeLookuper{}, WithPacing(0), WithBatchLogger(discardLogger()))

		var indexes []int
		_, err := bp.ProcessBatchWithCallback(context.Background(),
			[]string{"a@example.com", "b@example.com"},
			func(_ model.Lookup, i int) { indexes = append(indexes, i) },
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(indexes) != 2 || indexes[0] != 0 || indexes[1] != 1 {
			t.Errorf("expected indexes [0 1], got %v", indexes)
		}
	})
}
