package health

import (
	"context"
	"errors"
	"testing"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

type readyBackend struct {
	calls int
	err   error
}

func (r *readyBackend) CreateJob(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error) {
	return nil, nil
}
func (r *readyBackend) DeleteJob(ctx context.Context, name string) error { return nil }
func (r *readyBackend) ListJobs(ctx context.Context, labelSelector, continueToken string) (*batchv1.JobList, error) {
	return nil, nil
}
func (r *readyBackend) ReadJobStatus(ctx context.Context, name string) (*batchv1.Job, error) {
	return nil, nil
}
func (r *readyBackend) PatchJob(ctx context.Context, name string, patch []byte) error { return nil }
func (r *readyBackend) ListPods(ctx context.Context, labelSelector string) (*corev1.PodList, error) {
	return nil, nil
}
func (r *readyBackend) ReadPodLog(ctx context.Context, pod, container string, tailLines, limitBytes int64) (string, error) {
	return "", nil
}
func (r *readyBackend) ReadConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	return nil, nil
}

func (r *readyBackend) Ready(ctx context.Context) error {
	r.calls++
	return r.err
}

func TestReadyCachesResult(t *testing.T) {
	t.Parallel()

	be := &readyBackend{}
	checker := NewChecker(be, time.Minute)

	for range 3 {
		if err := checker.Ready(context.Background()); err != nil {
			t.Fatalf("Ready failed: %v", err)
		}
	}

	if be.calls != 1 {
		t.Errorf("expected 1 backend probe, got %d", be.calls)
	}
}

func TestReadyCacheExpires(t *testing.T) {
	t.Parallel()

	be := &readyBackend{}
	checker := NewChecker(be, 0)

	_ = checker.Ready(context.Background())
	_ = checker.Ready(context.Background())

	if be.calls != 2 {
		t.Errorf("expected 2 backend probes with zero TTL, got %d", be.calls)
	}
}

func TestReadyPropagatesBackendError(t *testing.T) {
	t.Parallel()

	be := &readyBackend{err: errors.New("api unreachable")}
	checker := NewChecker(be, time.Minute)

	if err := checker.Ready(context.Background()); err == nil {
		t.Error("expected readiness failure")
	}
}

func TestShuttingDown(t *testing.T) {
	t.Parallel()

	checker := NewChecker(&readyBackend{}, time.Minute)
	checker.SetShuttingDown()

	if err := checker.Ready(context.Background()); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
	if err := checker.Live(); err != nil {
		t.Errorf("liveness must survive shutdown, got %v", err)
	}
}
