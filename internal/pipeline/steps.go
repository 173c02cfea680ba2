package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/breachscan/internal/hibp"
	"github.com/nao1215/breachscan/internal/model"
	"github.com/nao1215/breachscan/internal/notify"
	"github.com/nao1215/breachscan/internal/report"
)

// ErrNoArtifact is returned by NotifyStep when there is nothing to attach.
var ErrNoArtifact = errors.New("no report artifact to attach")

// LookupStep looks up every address of the run in input order.
//
// Individual lookup failures become failed results in run.Lookups and
// do not fail the step. Only cancellation does.
type LookupStep struct {
	client   Lookuper
	pacing   time.Duration
	sleep    hibp.Sleeper
	progress func(lookup model.Lookup, index, total int)
	logger   *slog.Logger
}

// LookupStepOption configures a LookupStep.
type LookupStepOption func(*LookupStep)

// WithLookupPacing sets the pause between two lookups.
func WithLookupPacing(d time.Duration) LookupStepOption {
	return func(s *LookupStep) {
		s.pacing = d
	}
}

// WithLookupSleeper replaces the wait used for pacing.
func WithLookupSleeper(sleep hibp.Sleeper) LookupStepOption {
	return func(s *LookupStep) {
		s.sleep = sleep
	}
}

// WithLookupProgress sets a callback invoked after each lookup.
func WithLookupProgress(fn func(lookup model.Lookup, index, total int)) LookupStepOption {
	return func(s *LookupStep) {
		s.progress = fn
	}
}

// WithLookupLogger sets a custom logger for the lookup step.
func WithLookupLogger(logger *slog.Logger) LookupStepOption {
	return func(s *LookupStep) {
		s.logger = logger
	}
}

// NewLookupStep creates a lookup step backed by client.
func NewLookupStep(client Lookuper, opts ...LookupStepOption) *LookupStep {
	s := &LookupStep{
		client: client,
		pacing: 1500 * time.Millisecond,
		sleep:  hibp.SleepContext,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LookupStep) Name() string {
	return "lookup"
}

// Do executes the lookup step.
func (s *LookupStep) Do(ctx context.Context, run *model.Run) error {
	bp := NewBatchProcessor(s.client,
		WithPacing(s.pacing),
		WithPacingSleeper(s.sleep),
		WithBatchLogger(s.logger),
	)

	total := len(run.Emails)
	var callback func(model.Lookup, int)
	if s.progress != nil {
		callback = func(l model.Lookup, i int) {
			s.progress(l, i, total)
		}
	}

	lookups, err := bp.ProcessBatchWithCallback(ctx, run.Emails, callback)
	run.Lookups = lookups
	if err != nil {
		return fmt.Errorf("lookup interrupted after %d of %d addresses: %w", len(lookups), total, err)
	}
	return nil
}

// AggregateStep flattens the lookups into report rows.
type AggregateStep struct{}

// NewAggregateStep creates a new aggregate step.
func NewAggregateStep() *AggregateStep {
	return &AggregateStep{}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do executes the aggregate step.
func (s *AggregateStep) Do(_ context.Context, run *model.Run) error {
	run.Rows = model.BuildRows(run.Lookups)
	return nil
}

// PresentStep prints the rows and a summary to the terminal.
type PresentStep struct {
	table *report.TableWriter
}

// NewPresentStep creates a present step writing to out.
func NewPresentStep(out io.Writer, opts ...report.TableWriterOption) *PresentStep {
	return &PresentStep{table: report.NewTableWriter(out, opts...)}
}

// Name returns the step name.
func (s *PresentStep) Name() string {
	return "present"
}

// Do executes the present step.
func (s *PresentStep) Do(_ context.Context, run *model.Run) error {
	if _, err := s.table.Write(run.Rows); err != nil {
		return fmt.Errorf("printing results: %w", err)
	}
	if _, err := s.table.WriteSummary(model.Summarize(run.Lookups)); err != nil {
		return fmt.Errorf("printing summary: %w", err)
	}
	return nil
}

// ExportStep renders the rows to one file per requested format.
// A rendering failure is fatal for the run.
type ExportStep struct {
	formats  []model.Format
	dir      string
	baseName string
	logger   *slog.Logger
}

// NewExportStep creates an export step. An empty baseName is replaced by
// a timestamped default when the step runs.
func NewExportStep(formats []model.Format, dir, baseName string, logger *slog.Logger) *ExportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportStep{
		formats:  formats,
		dir:      dir,
		baseName: baseName,
		logger:   logger,
	}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do executes the export step.
func (s *ExportStep) Do(_ context.Context, run *model.Run) error {
	base := s.baseName
	if base == "" {
		base = report.DefaultBaseName(run.StartedAt)
	}

	for _, format := range s.formats {
		path := report.ArtifactPath(s.dir, base, format)
		artifact, err := report.Render(run.Rows, format, path)
		if err != nil {
			return err
		}
		run.Artifacts = append(run.Artifacts, artifact)
		s.logger.Info("report written", "format", string(format), "path", artifact.Path, "rows", len(run.Rows))
	}
	return nil
}

// NotifyStep emails the preferred artifact to a recipient.
//
// Transmission failures are recorded in the run and logged; they never
// fail the step, so the local report survives a broken mail setup.
type NotifyStep struct {
	sender    notify.Sender
	recipient string
	logger    *slog.Logger
}

// NewNotifyStep creates a notify step.
func NewNotifyStep(sender notify.Sender, recipient string, logger *slog.Logger) *NotifyStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyStep{sender: sender, recipient: recipient, logger: logger}
}

// Name returns the step name.
func (s *NotifyStep) Name() string {
	return "notify"
}

// Do executes the notify step.
func (s *NotifyStep) Do(ctx context.Context, run *model.Run) error {
	run.Recipient = s.recipient

	artifact, ok := run.PreferredArtifact()
	if !ok {
		s.fail(run, ErrNoArtifact)
		return nil
	}

	if err := notify.Dispatch(ctx, s.sender, artifact.Path, s.recipient); err != nil {
		s.fail(run, err)
		return nil
	}

	run.Notified = true
	s.logger.Info("report emailed", "recipient", s.recipient, "attachment", artifact.Path)
	return nil
}

func (s *NotifyStep) fail(run *model.Run, err error) {
	run.Notified = false
	run.NotifyError = err.Error()
	s.logger.Error("failed to email report", "recipient", s.recipient, "error", err)
}

// RunRecorder persists a finished run.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *model.Run) (int64, error)
}

// HistoryStep records the run in the history database.
// Failures are logged and do not fail the run.
type HistoryStep struct {
	recorder RunRecorder
	logger   *slog.Logger
}

// NewHistoryStep creates a history step.
func NewHistoryStep(recorder RunRecorder, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{recorder: recorder, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do executes the history step.
func (s *HistoryStep) Do(ctx context.Context, run *model.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	id, err := s.recorder.SaveRun(ctx, run)
	if err != nil {
		s.logger.Warn("failed to save run history", "error", err)
		return nil
	}
	s.logger.Debug("run saved", "id", id)
	return nil
}
