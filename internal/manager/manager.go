package manager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"jobforge/internal/apperrors"
	"jobforge/internal/backend"
	"jobforge/internal/observability"
	"jobforge/internal/register"
)

const (
	// DefaultTailLines is how many trailing log lines are returned per
	// container.
	DefaultTailLines = 200

	// logLimitBytes bounds a single container log read.
	logLimitBytes = 1 << 30
)

// Manager drives the job lifecycle against the cluster backend. It holds no
// job state; the cluster is the source of truth.
type Manager struct {
	register  register.Register
	signer    *Signer
	backend   backend.Interface
	metrics   *observability.Metrics
	logger    *slog.Logger
	tailLines int64

	// logLimit is swappable for tests.
	logLimit int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithTailLines overrides how many trailing log lines are returned per
// container.
func WithTailLines(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.tailLines = n
		}
	}
}

func New(reg register.Register, signer *Signer, be backend.Interface, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		register:  reg,
		signer:    signer,
		backend:   be,
		metrics:   metrics,
		logger:    logger.With("component", "manager"),
		tailLines: DefaultTailLines,
		logLimit:  logLimitBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register exposes the definition register, for listing definitions.
func (m *Manager) Register() register.Register {
	return m.register
}

// CreateOption configures a single CreateJob call.
type CreateOption func(*createOptions)

type createOptions struct {
	preCreate func(*batchv1.Job) error
}

// WithPreCreate installs a hook invoked on the signed job right before
// submission. A hook error aborts the creation.
func WithPreCreate(fn func(*batchv1.Job) error) CreateOption {
	return func(o *createOptions) {
		o.preCreate = fn
	}
}

// CreateJob renders the named definition with the given template arguments,
// signs the result, and submits it. Returns the generated job name.
func (m *Manager) CreateJob(ctx context.Context, definitionName string, args map[string]string, opts ...CreateOption) (string, error) {
	var options createOptions
	for _, opt := range opts {
		opt(&options)
	}

	generator, err := m.register.Generator(ctx, definitionName)
	if err != nil {
		return "", err
	}

	job, err := generator.Generate(ctx, args)
	if err != nil {
		return "", err
	}
	m.signer.Sign(job, definitionName)

	if options.preCreate != nil {
		if err := options.preCreate(job); err != nil {
			return "", fmt.Errorf("pre-create hook: %w", err)
		}
	}

	created, err := m.backend.CreateJob(ctx, job)
	if err != nil {
		return "", err
	}

	m.metrics.RecordJobCreated(ctx, definitionName)
	m.logger.InfoContext(ctx, "job created", "job", created.Name, "definition", definitionName)
	return created.Name, nil
}

// DeleteJob deletes a job owned by this service. Deleting a job this service
// does not own fails with apperrors.ErrNotFound.
func (m *Manager) DeleteJob(ctx context.Context, name string) error {
	if _, err := m.ReadJob(ctx, name); err != nil {
		return err
	}

	if err := m.backend.DeleteJob(ctx, name); err != nil {
		return err
	}

	m.metrics.RecordJobDeleted(ctx)
	m.logger.InfoContext(ctx, "job deleted", "job", name)
	return nil
}

// ReadJob reads a job by name. Jobs not signed by this service are reported
// as not found rather than exposed.
func (m *Manager) ReadJob(ctx context.Context, name string) (*batchv1.Job, error) {
	job, err := m.backend.ReadJobStatus(ctx, name)
	if err != nil {
		return nil, err
	}
	if job.Labels[OwnershipLabel] != m.signer.Signature() {
		return nil, apperrors.NotFound("job", name)
	}
	return job, nil
}

// FetchJobs lazily yields this service's jobs, following pagination tokens.
// An empty definitionName yields jobs of every definition. When a listed job
// carries terminal pod counters but no conditions yet, its status is
// re-fetched so callers see a consistent finished state.
func (m *Manager) FetchJobs(ctx context.Context, definitionName string, extra ...Selector) iter.Seq2[*batchv1.Job, error] {
	selector := m.signer.LabelSelector(definitionName, extra...)

	return func(yield func(*batchv1.Job, error) bool) {
		continueToken := ""
		for {
			list, err := m.backend.ListJobs(ctx, selector, continueToken)
			if err != nil {
				yield(nil, err)
				return
			}

			for i := range list.Items {
				job := m.refreshStaleStatus(ctx, &list.Items[i])
				if !yield(job, nil) {
					return
				}
			}

			continueToken = list.Continue
			if continueToken == "" {
				return
			}
		}
	}
}

// refreshStaleStatus re-reads a job whose listed status looks mid-transition:
// pods already counted terminal but no condition recorded. List caches can
// lag the job controller; the direct read is authoritative.
func (m *Manager) refreshStaleStatus(ctx context.Context, job *batchv1.Job) *batchv1.Job {
	if len(job.Status.Conditions) > 0 {
		return job
	}
	if job.Status.Succeeded == 0 && job.Status.Failed == 0 {
		return job
	}

	fresh, err := m.backend.ReadJobStatus(ctx, job.Name)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to refresh job status", "job", job.Name, "error", err)
		return job
	}
	return fresh
}

// ListJobs collects FetchJobs into a slice.
func (m *Manager) ListJobs(ctx context.Context, definitionName string, extra ...Selector) ([]*batchv1.Job, error) {
	var jobs []*batchv1.Job
	for job, err := range m.FetchJobs(ctx, definitionName, extra...) {
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// JobLogs returns the trailing log lines of every container of every pod of
// a job, keyed by pod then container. A container that cannot be read does
// not fail the whole call; its entry carries a single diagnostic line.
func (m *Manager) JobLogs(ctx context.Context, name string) (map[string]map[string][]string, error) {
	if _, err := m.ReadJob(ctx, name); err != nil {
		return nil, err
	}

	pods, err := m.backend.ListPods(ctx, batchv1.JobNameLabel+"="+name)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for job %s: %w", name, err)
	}

	logs := make(map[string]map[string][]string, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		logs[pod.Name] = m.podLogs(ctx, pod)
	}
	return logs, nil
}

func (m *Manager) podLogs(ctx context.Context, pod *corev1.Pod) map[string][]string {
	containers := make([]string, 0, len(pod.Spec.InitContainers)+len(pod.Spec.Containers))
	for _, c := range pod.Spec.InitContainers {
		containers = append(containers, c.Name)
	}
	for _, c := range pod.Spec.Containers {
		containers = append(containers, c.Name)
	}

	out := make(map[string][]string, len(containers))
	for _, container := range containers {
		out[container] = m.containerLogLines(ctx, pod.Name, container)
	}
	return out
}

func (m *Manager) containerLogLines(ctx context.Context, pod, container string) []string {
	raw, err := m.backend.ReadPodLog(ctx, pod, container, m.tailLines, m.logLimit)
	if err != nil {
		if errors.Is(err, apperrors.ErrContainerCreating) {
			return []string{"container is creating, logs not available yet"}
		}
		m.logger.WarnContext(ctx, "failed to read container logs", "pod", pod, "container", container, "error", err)
		return []string{"failed to read logs: " + err.Error()}
	}
	if int64(len(raw)) >= m.logLimit {
		m.logger.WarnContext(ctx, "container log output hit the byte limit and may be truncated", "pod", pod, "container", container, "bytes", len(raw))
	}

	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, "\n")
}

// JobIsFinished reports whether the job controller has recorded a terminal
// condition. Pod counters and completion timestamps alone are not treated as
// authoritative.
func JobIsFinished(job *batchv1.Job) bool {
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		if cond.Type == batchv1.JobComplete || cond.Type == batchv1.JobFailed {
			return true
		}
	}
	return false
}
