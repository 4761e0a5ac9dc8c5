// Package spec produces job specs from templates and generates the unique
// job objects submitted to the cluster.
package spec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"text/template"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"jobforge/internal/apperrors"
	"jobforge/internal/reloader"
)

// Source produces a fresh job spec per call. Implementations must never
// return an object they hand out twice; callers own the result and mutate it.
type Source interface {
	// Get renders the spec with the given template arguments.
	Get(ctx context.Context, args map[string]string) (*batchv1.Job, error)

	// TemplateVars returns the variable names the spec's template references,
	// sorted. Static sources return nil.
	TemplateVars() []string
}

// StaticSource serves deep copies of a fixed job spec. Useful in tests and
// for definitions that take no arguments.
type StaticSource struct {
	job *batchv1.Job
}

func NewStaticSource(job *batchv1.Job) *StaticSource {
	return &StaticSource{job: job}
}

func (s *StaticSource) Get(ctx context.Context, args map[string]string) (*batchv1.Job, error) {
	return s.job.DeepCopy(), nil
}

func (s *StaticSource) TemplateVars() []string {
	return nil
}

// StringSource renders a job spec from an in-memory template. The template
// is compiled once at construction.
type StringSource struct {
	tmpl *template.Template
	vars []string
}

func NewStringSource(name, text string) (*StringSource, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return nil, err
	}
	return &StringSource{tmpl: tmpl, vars: templateVars(tmpl)}, nil
}

func (s *StringSource) Get(ctx context.Context, args map[string]string) (*batchv1.Job, error) {
	return renderJob(s.tmpl, args)
}

func (s *StringSource) TemplateVars() []string {
	return s.vars
}

// FileSource renders a job spec from a template file, picking up edits to the
// file without restarting. A failed parse of a rewritten file keeps serving
// the last good template and leaves the rewrite pending, so a later fix is
// picked up.
type FileSource struct {
	name     string
	reloader *reloader.FileReloader
	logger   *slog.Logger

	mu      sync.Mutex
	current *StringSource
}

func NewFileSource(name, path string, logger *slog.Logger) *FileSource {
	return &FileSource{
		name:     name,
		reloader: reloader.New(path),
		logger:   logger.With("component", "spec", "definition", name),
	}
}

func (s *FileSource) Get(ctx context.Context, args map[string]string) (*batchv1.Job, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.Get(ctx, args)
}

func (s *FileSource) TemplateVars() []string {
	src, err := s.load(context.Background())
	if err != nil {
		return nil
	}
	return src.TemplateVars()
}

func (s *FileSource) load(ctx context.Context) (*StringSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, commit, err := s.reloader.Check()
	if err != nil {
		if s.current != nil {
			s.logger.WarnContext(ctx, "spec file unreadable, keeping cached template", "error", err)
			return s.current, nil
		}
		return nil, fmt.Errorf("failed to read spec file %s: %w", s.reloader.Path(), err)
	}

	if content != nil {
		src, err := NewStringSource(s.name, string(content))
		if err != nil {
			if s.current != nil {
				s.logger.WarnContext(ctx, "spec file failed to parse, keeping cached template", "error", err)
				return s.current, nil
			}
			return nil, err
		}
		s.current = src
		commit()
		s.logger.InfoContext(ctx, "spec template loaded", "path", s.reloader.Path())
	}

	if s.current == nil {
		return nil, apperrors.NotFound("spec file", s.reloader.Path())
	}
	return s.current, nil
}

// ConfigMapReader is the slice of the cluster backend config map sources need.
type ConfigMapReader interface {
	ReadConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error)
}

// ConfigMapSource renders a job spec from a key of a cluster config map. The
// config map is fetched on every call, so edits are picked up immediately.
type ConfigMapSource struct {
	name      string
	reader    ConfigMapReader
	namespace string
	cmName    string
	key       string
}

func NewConfigMapSource(name string, reader ConfigMapReader, namespace, cmName, key string) *ConfigMapSource {
	return &ConfigMapSource{
		name:      name,
		reader:    reader,
		namespace: namespace,
		cmName:    cmName,
		key:       key,
	}
}

func (s *ConfigMapSource) Get(ctx context.Context, args map[string]string) (*batchv1.Job, error) {
	src, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return src.Get(ctx, args)
}

func (s *ConfigMapSource) TemplateVars() []string {
	src, err := s.load(context.Background())
	if err != nil {
		return nil
	}
	return src.TemplateVars()
}

func (s *ConfigMapSource) load(ctx context.Context) (*StringSource, error) {
	cm, err := s.reader.ReadConfigMap(ctx, s.namespace, s.cmName)
	if err != nil {
		return nil, err
	}

	text, ok := cm.Data[s.key]
	if !ok {
		return nil, apperrors.NotFound("configmap key", s.cmName+"/"+s.key)
	}

	return NewStringSource(s.name, text)
}
