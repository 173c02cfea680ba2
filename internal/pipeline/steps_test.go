package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/breachscan/internal/model"
	"github.com/nao1215/breachscan/internal/notify"
	"github.com/nao1215/breachscan/internal/report"
)

// fakeSender records sent messages.
type fakeSender struct {
	err       error
	recipient string
	raw       []byte
}

func (f *fakeSender) From() string { return "scanner@example.com" }

func (f *fakeSender) Send(_ context.Context, recipient string, raw []byte) error {
	f.recipient = recipient
	f.raw = raw
	return f.err
}

// fakeRecorder records saved runs.
type fakeRecorder struct {
	err   error
	saved []*model.Run
}

func (f *fakeRecorder) SaveRun(_ context.Context, run *model.Run) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, run)
	return int64(len(f.saved)), nil
}

func adobeBreach() model.Breach {
	return model.Breach{
		Name:        "Adobe",
		Title:       "Adobe",
		Domain:      "adobe.com",
		BreachDate:  "2013-10-04",
		PwnCount:    152445165,
		DataClasses: []string{"Email addresses", "Passwords"},
		IsVerified:  true,
	}
}

// TestLookupStep tests the lookup step.
func TestLookupStep(t *testing.T) {
	t.Parallel()

	t.Run("fills run lookups and reports progress", func(t *testing.T) {
		t.Parallel()

		client := &fakeLookuper{results: map[string]model.LookupResult{
			"alice@example.com": model.NewBreachedResult([]model.Breach{adobeBreach()}),
		}}
		sleeper := &recordingSleeper{}
		var totals []int
		step := NewLookupStep(client,
			WithLookupPacing(time.Second),
			WithLookupSleeper(sleeper.sleep),
			WithLookupLogger(discardLogger()),
			WithLookupProgress(func(_ model.Lookup, _, total int) { totals = append(totals, total) }),
		)

		run := model.NewRun("manual", []string{"alice@example.com", "bob@example.com"})
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if step.Name() != "lookup" {
			t.Errorf("expected name lookup, got %s", step.Name())
		}
		if len(run.Lookups) != 2 {
			t.Fatalf("expected 2 lookups, got %d", len(run.Lookups))
		}
		if len(sleeper.pauses) != 1 {
			t.Errorf("expected 1 pause, got %d", len(sleeper.pauses))
		}
		if len(totals) != 2 || totals[0] != 2 {
			t.Errorf("expected progress with total 2, got %v", totals)
		}
	})

	t.Run("returns cancellation with partial lookups", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := &fakeLookuper{onCall: func(string) { cancel() }}
		step := NewLookupStep(client, WithLookupPacing(0), WithLookupLogger(discardLogger()))

		run := model.NewRun("manual", []string{"a@example.com", "b@example.com"})
		err := step.Do(ctx, run)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(run.Lookups) != 0 {
			t.Errorf("expected no completed lookups, got %d", len(run.Lookups))
		}
	})
}

// TestAggregateStep tests flattening lookups into rows.
func TestAggregateStep(t *testing.T) {
	t.Parallel()

	run := model.NewRun("manual", nil)
	run.Lookups = []model.Lookup{
		{Email: "alice@example.com", Result: model.NewBreachedResult([]model.Breach{adobeBreach()})},
		{Email: "bob@example.com", Result: model.NewCleanResult()},
	}

	if err := NewAggregateStep().Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(run.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(run.Rows))
	}
	if run.Rows[0].BreachName != "Adobe" {
		t.Errorf("expected Adobe, got %s", run.Rows[0].BreachName)
	}
	if run.Rows[1].BreachName != model.NotCompromised {
		t.Errorf("expected %q, got %s", model.NotCompromised, run.Rows[1].BreachName)
	}
}

// TestPresentStep tests terminal output.
func TestPresentStep(t *testing.T) {
	t.Parallel()

	run := model.NewRun("manual", nil)
	run.Lookups = []model.Lookup{
		{Email: "alice@example.com", Result: model.NewBreachedResult([]model.Breach{adobeBreach()})},
	}
	run.Rows = model.BuildRows(run.Lookups)

	var buf bytes.Buffer
	step := NewPresentStep(&buf, report.WithColor(false))
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"alice@example.com", "152,445,165", "Summary", "Compromised:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

// TestExportStep tests artifact rendering.
func TestExportStep(t *testing.T) {
	t.Parallel()

	t.Run("renders every requested format", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		run := model.NewRun("manual", nil)
		run.Rows = model.BuildRows([]model.Lookup{{Email: "bob@example.com", Result: model.NewCleanResult()}})

		step := NewExportStep([]model.Format{model.FormatCSV, model.FormatXLSX}, dir, "results", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(run.Artifacts) != 2 {
			t.Fatalf("expected 2 artifacts, got %d", len(run.Artifacts))
		}
		for _, a := range run.Artifacts {
			if _, err := os.Stat(a.Path); err != nil {
				t.Errorf("expected %s to exist: %v", a.Path, err)
			}
			if a.Digest == "" {
				t.Errorf("expected digest for %s", a.Path)
			}
		}
		if run.Artifacts[0].Path != filepath.Join(dir, "results.csv") {
			t.Errorf("unexpected csv path %s", run.Artifacts[0].Path)
		}
	})

	t.Run("uses timestamped name when none is given", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		run := model.NewRun("manual", nil)

		step := NewExportStep([]model.Format{model.FormatCSV}, dir, "", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := filepath.Join(dir, report.DefaultBaseName(run.StartedAt)+".csv")
		if run.Artifacts[0].Path != want {
			t.Errorf("expected %s, got %s", want, run.Artifacts[0].Path)
		}
	})

	t.Run("fails when the directory cannot be created", func(t *testing.T) {
		t.Parallel()

		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}

		run := model.NewRun("manual", nil)
		step := NewExportStep([]model.Format{model.FormatCSV}, filepath.Join(blocker, "out"), "r", discardLogger())
		err := step.Do(context.Background(), run)

		if !errors.Is(err, report.ErrWrite) {
			t.Errorf("expected ErrWrite, got %v", err)
		}
	})
}

// TestNotifyStep tests emailing the report.
func TestNotifyStep(t *testing.T) {
	t.Parallel()

	newRunWithArtifact := func(t *testing.T) *model.Run {
		t.Helper()
		path := filepath.Join(t.TempDir(), "report.csv")
		if err := os.WriteFile(path, []byte("Email\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		run := model.NewRun("manual", nil)
		run.Artifacts = []model.Artifact{{Format: model.FormatCSV, Path: path}}
		return run
	}

	t.Run("marks run notified on success", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		run := newRunWithArtifact(t)

		step := NewNotifyStep(sender, "security@example.com", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !run.Notified {
			t.Error("expected run to be notified")
		}
		if sender.recipient != "security@example.com" {
			t.Errorf("expected recipient security@example.com, got %s", sender.recipient)
		}
		if !bytes.Contains(sender.raw, []byte("report.csv")) {
			t.Error("expected attachment name in message")
		}
	})

	t.Run("records transmission failure without failing", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{err: errors.New("relay down")}
		run := newRunWithArtifact(t)

		step := NewNotifyStep(sender, "security@example.com", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}

		if run.Notified {
			t.Error("expected run not to be notified")
		}
		if !strings.Contains(run.NotifyError, "relay down") {
			t.Errorf("expected notify error to mention relay, got %q", run.NotifyError)
		}
	})

	t.Run("records missing artifact", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("manual", nil)
		step := NewNotifyStep(&fakeSender{}, "security@example.com", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if run.NotifyError != ErrNoArtifact.Error() {
			t.Errorf("expected %q, got %q", ErrNoArtifact.Error(), run.NotifyError)
		}
	})

	t.Run("empty recipient is a transmission failure", func(t *testing.T) {
		t.Parallel()

		run := newRunWithArtifact(t)
		step := NewNotifyStep(&fakeSender{}, "  ", discardLogger())
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if !strings.Contains(run.NotifyError, notify.ErrNoRecipient.Error()) {
			t.Errorf("expected no recipient error, got %q", run.NotifyError)
		}
	})
}

// TestHistoryStep tests recording runs.
func TestHistoryStep(t *testing.T) {
	t.Parallel()

	t.Run("saves the run", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{}
		run := model.NewRun("manual", nil)
		if err := NewHistoryStep(rec, discardLogger()).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rec.saved) != 1 {
			t.Errorf("expected 1 saved run, got %d", len(rec.saved))
		}
		if run.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set before saving")
		}
	})

	t.Run("ignores save errors", func(t *testing.T) {
		t.Parallel()

		rec := &fakeRecorder{err: errors.New("disk full")}
		run := model.NewRun("manual", nil)
		if err := NewHistoryStep(rec, discardLogger()).Do(context.Background(), run); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}
