// Package backend defines the narrow cluster interface the job lifecycle
// core calls through.
package backend

import (
	"context"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// Interface is the cluster job backend. Implementations are scoped to a
// single namespace and are the source of truth for job state; the core holds
// no job state of its own.
//
// Implementations translate their transport's "not found" and "already
// exists" faults into apperrors.ErrNotFound and apperrors.ErrConflict so the
// core can classify with errors.Is. All other faults pass through untouched.
type Interface interface {
	// CreateJob submits a job and returns it with the backend-assigned name.
	CreateJob(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error)

	// DeleteJob deletes a job by name with foreground propagation, so
	// dependent pods are removed together rather than orphaned.
	DeleteJob(ctx context.Context, name string) error

	// ListJobs returns one page of jobs matching the label selector. The
	// returned list's Continue token is set when more pages remain.
	ListJobs(ctx context.Context, labelSelector, continueToken string) (*batchv1.JobList, error)

	// ReadJobStatus reads a single job with its full status.
	ReadJobStatus(ctx context.Context, name string) (*batchv1.Job, error)

	// PatchJob applies a strategic merge patch to a job.
	PatchJob(ctx context.Context, name string, patch []byte) error

	// ListPods returns pods matching the label selector.
	ListPods(ctx context.Context, labelSelector string) (*corev1.PodList, error)

	// ReadPodLog returns up to tailLines trailing log lines of one container,
	// bounded by limitBytes. While the container is still being created it
	// fails with apperrors.ErrContainerCreating.
	ReadPodLog(ctx context.Context, pod, container string, tailLines, limitBytes int64) (string, error)

	// ReadConfigMap reads a config map, possibly from another namespace.
	ReadConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error)

	// Ready checks if the cluster API is reachable.
	Ready(ctx context.Context) error
}
