// Package manager implements the job lifecycle: creation, listing, logs,
// and the mark-then-sweep cleanup of finished jobs.
package manager

import (
	"strings"

	batchv1 "k8s.io/api/batch/v1"
)

const (
	// OwnershipLabel marks jobs as managed by this service. Its value is the
	// service's signature, so multiple deployments can share a namespace
	// without touching each other's jobs.
	OwnershipLabel = "app.kubernetes.io/managed-by"

	// DefinitionLabel records which job definition produced a job.
	DefinitionLabel = "jobforge.io/job-definition-name"
)

// Signer stamps jobs with the service's ownership labels and builds the
// selectors that scope every list to signed jobs.
type Signer struct {
	signature string
}

func NewSigner(signature string) *Signer {
	return &Signer{signature: signature}
}

// Selector is one extra key=value term appended to a label selector.
type Selector struct {
	Key   string
	Value string
}

// Sign labels the job as owned by this service and, when definitionName is
// non-empty, records its definition. Existing unrelated labels are
// preserved; signing twice is a no-op.
func (s *Signer) Sign(job *batchv1.Job, definitionName string) {
	if job.Labels == nil {
		job.Labels = map[string]string{}
	}
	job.Labels[OwnershipLabel] = s.signature
	if definitionName != "" {
		job.Labels[DefinitionLabel] = definitionName
	}
}

// LabelSelector returns the selector matching this service's jobs, narrowed
// to one definition when definitionName is non-empty. Extra terms are
// appended in the order supplied, after the ownership and definition terms,
// so the output is deterministic.
func (s *Signer) LabelSelector(definitionName string, extra ...Selector) string {
	parts := []string{OwnershipLabel + "=" + s.signature}
	if definitionName != "" {
		parts = append(parts, DefinitionLabel+"="+definitionName)
	}
	for _, term := range extra {
		parts = append(parts, term.Key+"="+term.Value)
	}
	return strings.Join(parts, ",")
}

// Signature returns the signature value jobs are stamped with.
func (s *Signer) Signature() string {
	return s.signature
}
