package kube

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"jobforge/internal/apperrors"
)

func newTestBackend() (*Kube, *fake.Clientset) {
	client := fake.NewClientset()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, "jobs", logger), client
}

func newJob(name string) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "jobs"},
	}
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	backend, client := newTestBackend()

	created, err := backend.CreateJob(context.Background(), newJob("demo-job"))
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if created.Name != "demo-job" {
		t.Errorf("expected name demo-job, got %s", created.Name)
	}

	stored, err := client.BatchV1().Jobs("jobs").Get(context.Background(), "demo-job", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	if stored.Namespace != "jobs" {
		t.Errorf("expected namespace jobs, got %s", stored.Namespace)
	}
}

func TestCreateJobConflict(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend()

	if _, err := backend.CreateJob(context.Background(), newJob("dup")); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := backend.CreateJob(context.Background(), newJob("dup"))
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteJobNotFound(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend()

	err := backend.DeleteJob(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteJob(t *testing.T) {
	t.Parallel()

	backend, client := newTestBackend()

	if _, err := backend.CreateJob(context.Background(), newJob("victim")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := backend.DeleteJob(context.Background(), "victim"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := client.BatchV1().Jobs("jobs").Get(context.Background(), "victim", metav1.GetOptions{}); err == nil {
		t.Error("expected job to be gone")
	}
}

func TestReadJobStatusNotFound(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend()

	_, err := backend.ReadJobStatus(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListJobsBySelector(t *testing.T) {
	t.Parallel()

	backend, client := newTestBackend()

	labeled := newJob("labeled")
	labeled.Labels = map[string]string{"team": "data"}
	for _, job := range []*batchv1.Job{labeled, newJob("plain")} {
		if _, err := client.BatchV1().Jobs("jobs").Create(context.Background(), job, metav1.CreateOptions{}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	list, err := backend.ListJobs(context.Background(), "team=data", "")
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "labeled" {
		t.Errorf("expected only the labeled job, got %d items", len(list.Items))
	}
}

func TestPatchJob(t *testing.T) {
	t.Parallel()

	backend, client := newTestBackend()

	if _, err := backend.CreateJob(context.Background(), newJob("patched")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	patch := []byte(`{"metadata":{"annotations":{"example.com/marker":"yes"}}}`)
	if err := backend.PatchJob(context.Background(), "patched", patch); err != nil {
		t.Fatalf("PatchJob failed: %v", err)
	}

	job, err := client.BatchV1().Jobs("jobs").Get(context.Background(), "patched", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.Annotations["example.com/marker"] != "yes" {
		t.Errorf("expected annotation to be applied, got %v", job.Annotations)
	}
}

func TestReadConfigMap(t *testing.T) {
	t.Parallel()

	backend, client := newTestBackend()

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "specs", Namespace: "other"},
		Data:       map[string]string{"job.yaml": "kind: Job"},
	}
	if _, err := client.CoreV1().ConfigMaps("other").Create(context.Background(), cm, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := backend.ReadConfigMap(context.Background(), "other", "specs")
	if err != nil {
		t.Fatalf("ReadConfigMap failed: %v", err)
	}
	if got.Data["job.yaml"] != "kind: Job" {
		t.Errorf("unexpected data: %v", got.Data)
	}
}

func TestReadConfigMapNotFound(t *testing.T) {
	t.Parallel()

	backend, _ := newTestBackend()

	_, err := backend.ReadConfigMap(context.Background(), "", "missing")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
