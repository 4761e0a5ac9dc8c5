// Package kube implements the cluster backend on the Kubernetes API.
package kube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"jobforge/internal/apperrors"
	"jobforge/internal/backend"
)

// Kube is the Kubernetes-backed implementation of backend.Interface, scoped
// to one namespace.
type Kube struct {
	client    kubernetes.Interface
	namespace string
	logger    *slog.Logger
}

var _ backend.Interface = (*Kube)(nil)

// New creates a backend over an existing clientset.
func New(client kubernetes.Interface, namespace string, logger *slog.Logger) *Kube {
	return &Kube{
		client:    client,
		namespace: namespace,
		logger:    logger.With("component", "kube"),
	}
}

// Namespace returns the namespace this backend operates in.
func (k *Kube) Namespace() string {
	return k.namespace
}

func (k *Kube) CreateJob(ctx context.Context, job *batchv1.Job) (*batchv1.Job, error) {
	created, err := k.client.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil, apperrors.Conflict("job", job.Name, "already exists")
		}
		return nil, fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}

	k.logger.DebugContext(ctx, "job created", "job", created.Name)
	return created, nil
}

func (k *Kube) DeleteJob(ctx context.Context, name string) error {
	propagation := metav1.DeletePropagationForeground
	err := k.client.BatchV1().Jobs(k.namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return apperrors.NotFound("job", name)
		}
		return fmt.Errorf("failed to delete job %s: %w", name, err)
	}

	k.logger.DebugContext(ctx, "job deleted", "job", name)
	return nil
}

func (k *Kube) ListJobs(ctx context.Context, labelSelector, continueToken string) (*batchv1.JobList, error) {
	list, err := k.client.BatchV1().Jobs(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
		Continue:      continueToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return list, nil
}

func (k *Kube) ReadJobStatus(ctx context.Context, name string) (*batchv1.Job, error) {
	job, err := k.client.BatchV1().Jobs(k.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apperrors.NotFound("job", name)
		}
		return nil, fmt.Errorf("failed to read job %s: %w", name, err)
	}
	return job, nil
}

func (k *Kube) PatchJob(ctx context.Context, name string, patch []byte) error {
	_, err := k.client.BatchV1().Jobs(k.namespace).Patch(ctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return apperrors.NotFound("job", name)
		}
		return fmt.Errorf("failed to patch job %s: %w", name, err)
	}
	return nil
}

func (k *Kube) ListPods(ctx context.Context, labelSelector string) (*corev1.PodList, error) {
	list, err := k.client.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return list, nil
}

func (k *Kube) ReadPodLog(ctx context.Context, pod, container string, tailLines, limitBytes int64) (string, error) {
	req := k.client.CoreV1().Pods(k.namespace).GetLogs(pod, &corev1.PodLogOptions{
		Container:  container,
		TailLines:  &tailLines,
		LimitBytes: &limitBytes,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		if isContainerCreating(err) {
			return "", apperrors.ContainerCreating(pod, container)
		}
		if apierrors.IsNotFound(err) {
			return "", apperrors.NotFound("pod", pod)
		}
		return "", fmt.Errorf("failed to stream logs for %s/%s: %w", pod, container, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read logs for %s/%s: %w", pod, container, err)
	}

	return string(data), nil
}

// isContainerCreating reports whether a log request failed because the
// container has not started yet. The API returns this as a BadRequest whose
// message names the waiting reason.
func isContainerCreating(err error) bool {
	if !apierrors.IsBadRequest(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ContainerCreating") || strings.Contains(msg, "PodInitializing")
}

func (k *Kube) ReadConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	if namespace == "" {
		namespace = k.namespace
	}

	cm, err := k.client.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, apperrors.NotFound("configmap", namespace+"/"+name)
		}
		return nil, fmt.Errorf("failed to read configmap %s/%s: %w", namespace, name, err)
	}
	return cm, nil
}

func (k *Kube) Ready(ctx context.Context) error {
	if _, err := k.client.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("cluster API unreachable: %w", err)
	}
	return nil
}
