package spec

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
)

const (
	// SuffixBytes is the entropy appended to each generated job name.
	SuffixBytes = 12

	// MaxNameLen caps the base name so that name + "-" + hex suffix stays
	// within the 63 character label value limit.
	MaxNameLen = 63 - 1 - 2*SuffixBytes
)

// Generator produces concrete job objects from a spec source, giving each a
// unique name so repeated submissions never collide.
type Generator struct {
	source Source
}

func NewGenerator(source Source) *Generator {
	return &Generator{source: source}
}

// Generate renders the spec and replaces its name with a unique variant.
// GenerateName is cleared so the explicit name wins.
func (g *Generator) Generate(ctx context.Context, args map[string]string) (*batchv1.Job, error) {
	job, err := g.source.Get(ctx, args)
	if err != nil {
		return nil, err
	}

	job.Name = UniqueName(baseName(job))
	job.GenerateName = ""
	return job, nil
}

// TemplateVars exposes the underlying source's template variables.
func (g *Generator) TemplateVars() []string {
	return g.source.TemplateVars()
}

func baseName(job *batchv1.Job) string {
	if job.Name != "" {
		return job.Name
	}
	return job.GenerateName
}

// UniqueName appends a random hex suffix to name, truncating the base so the
// result never exceeds 63 characters.
func UniqueName(name string) string {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	suffix := make([]byte, SuffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}

	return name + "-" + hex.EncodeToString(suffix)
}
