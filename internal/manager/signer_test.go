package manager

import (
	"testing"

	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestSign(t *testing.T) {
	t.Parallel()

	signer := NewSigner("jobforge-prod")
	job := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{
		Name:   "demo",
		Labels: map[string]string{"team": "data"},
	}}

	signer.Sign(job, "hello")

	if job.Labels[OwnershipLabel] != "jobforge-prod" {
		t.Errorf("ownership label not set: %v", job.Labels)
	}
	if job.Labels[DefinitionLabel] != "hello" {
		t.Errorf("definition label not set: %v", job.Labels)
	}
	if job.Labels["team"] != "data" {
		t.Errorf("existing label lost: %v", job.Labels)
	}
}

func TestSignIdempotent(t *testing.T) {
	t.Parallel()

	signer := NewSigner("sig")
	job := &batchv1.Job{}

	signer.Sign(job, "hello")
	first := len(job.Labels)
	signer.Sign(job, "hello")

	if len(job.Labels) != first {
		t.Errorf("second sign changed labels: %v", job.Labels)
	}
}

func TestLabelSelector(t *testing.T) {
	t.Parallel()

	signer := NewSigner("sig")

	if got := signer.LabelSelector(""); got != OwnershipLabel+"=sig" {
		t.Errorf("unexpected selector: %s", got)
	}

	want := OwnershipLabel + "=sig," + DefinitionLabel + "=hello"
	if got := signer.LabelSelector("hello"); got != want {
		t.Errorf("unexpected selector: %s", got)
	}
}

func TestLabelSelectorExtrasOrdered(t *testing.T) {
	t.Parallel()

	signer := NewSigner("sig")

	want := OwnershipLabel + "=sig," + DefinitionLabel + "=hello,team=data,tier=batch"
	got := signer.LabelSelector("hello",
		Selector{Key: "team", Value: "data"},
		Selector{Key: "tier", Value: "batch"},
	)
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSignWithoutDefinition(t *testing.T) {
	t.Parallel()

	signer := NewSigner("sig")
	job := &batchv1.Job{}

	signer.Sign(job, "")

	if job.Labels[OwnershipLabel] != "sig" {
		t.Errorf("ownership label not set: %v", job.Labels)
	}
	if _, ok := job.Labels[DefinitionLabel]; ok {
		t.Errorf("definition label must not be set: %v", job.Labels)
	}
}
