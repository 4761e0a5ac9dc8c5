package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	batchv1 "k8s.io/api/batch/v1"

	"jobforge/internal/apperrors"
	"jobforge/internal/observability"
)

// DeletionDeadlineAnnotation records, as epoch seconds, when a finished job
// becomes eligible for deletion. The first mark wins: repeated passes never
// extend the deadline, and the mark survives restarts because it lives on
// the job itself.
const DeletionDeadlineAnnotation = "jobforge.io/deletion-deadline"

// DeleterOption configures a Deleter.
type DeleterOption func(*Deleter)

// WithDeleteCallback installs a hook invoked before each physical deletion,
// at least once per deleted job. A hook error skips that job's deletion and
// leaves it marked for the next sweep.
func WithDeleteCallback(fn func(context.Context, *batchv1.Job) error) DeleterOption {
	return func(d *Deleter) {
		d.deleteCallback = fn
	}
}

// Deleter removes finished jobs in two phases: finished jobs are first
// stamped with a deletion deadline, then swept once the deadline has passed.
type Deleter struct {
	manager        *Manager
	retention      time.Duration
	metrics        *observability.Metrics
	logger         *slog.Logger
	deleteCallback func(context.Context, *batchv1.Job) error

	// now is swappable for tests.
	now func() time.Time
}

func NewDeleter(m *Manager, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...DeleterOption) *Deleter {
	d := &Deleter{
		manager:   m,
		retention: retention,
		metrics:   metrics,
		logger:    logger.With("component", "deleter"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MarkAndSweep makes one pass over all owned jobs: finished unmarked jobs
// get a deletion deadline, marked jobs past their deadline get deleted. A
// failure on one job does not stop the pass; all failures are joined into
// the returned error.
func (d *Deleter) MarkAndSweep(ctx context.Context) error {
	var errs []error
	for job, err := range d.manager.FetchJobs(ctx, "") {
		if err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.process(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Deleter) process(ctx context.Context, job *batchv1.Job) error {
	if !JobIsFinished(job) {
		return nil
	}

	if !d.marked(job) {
		return d.mark(ctx, job)
	}
	if !d.IsCandidateForDeletion(job) {
		return nil
	}
	return d.sweep(ctx, job)
}

func (d *Deleter) marked(job *batchv1.Job) bool {
	raw, ok := job.Annotations[DeletionDeadlineAnnotation]
	if !ok {
		return false
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		// Treat a garbled deadline as absent so the job is re-marked and
		// retention restarts, never deleting early.
		d.logger.Warn("malformed deletion-deadline annotation, re-marking", "job", job.Name, "value", raw)
		return false
	}
	return true
}

// IsCandidateForDeletion reports whether the job carries a deletion deadline
// that has passed.
func (d *Deleter) IsCandidateForDeletion(job *batchv1.Job) bool {
	raw, ok := job.Annotations[DeletionDeadlineAnnotation]
	if !ok {
		return false
	}
	deadline, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}
	return d.now().Unix() >= deadline
}

func (d *Deleter) mark(ctx context.Context, job *batchv1.Job) error {
	deadline := strconv.FormatInt(d.now().Add(d.retention).Unix(), 10)
	patch, err := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"annotations": map[string]string{
				DeletionDeadlineAnnotation: deadline,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build mark patch: %w", err)
	}

	if err := d.manager.backend.PatchJob(ctx, job.Name, patch); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Deleted out from under us between list and patch.
			return nil
		}
		return err
	}

	d.metrics.RecordJobMarked(ctx)
	d.logger.InfoContext(ctx, "job marked for deletion", "job", job.Name, "deadline", deadline)
	return nil
}

func (d *Deleter) sweep(ctx context.Context, job *batchv1.Job) error {
	if d.deleteCallback != nil {
		if err := d.deleteCallback(ctx, job); err != nil {
			return fmt.Errorf("delete callback: %w", err)
		}
	}

	if err := d.manager.backend.DeleteJob(ctx, job.Name); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	d.metrics.RecordJobDeleted(ctx)
	d.logger.InfoContext(ctx, "finished job deleted", "job", job.Name)
	return nil
}
