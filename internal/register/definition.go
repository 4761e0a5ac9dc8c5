// Package register maps job definition names to the generators that build
// their jobs.
package register

import (
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"

	"jobforge/internal/apperrors"
	"jobforge/internal/config"
	"jobforge/internal/spec"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConfigMapRef points at one key of a cluster config map. Key defaults to
// the config map's name.
type ConfigMapRef struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name" validate:"required"`
	Key       string `json:"key,omitempty"`
}

// Definition declares one job definition: a name and exactly one spec source.
type Definition struct {
	Name          string        `json:"name" validate:"required,max=38,hostname_rfc1123"`
	Spec          string        `json:"spec,omitempty"`
	SpecPath      string        `json:"specPath,omitempty"`
	SpecConfigMap *ConfigMapRef `json:"specConfigMap,omitempty" validate:"omitempty"`
}

// Validate checks field constraints and that exactly one spec source is set.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return apperrors.Validation("definition", err.Error())
	}

	sources := 0
	if d.Spec != "" {
		sources++
	}
	if d.SpecPath != "" {
		sources++
	}
	if d.SpecConfigMap != nil {
		sources++
	}
	if sources != 1 {
		return apperrors.Validation("definition "+d.Name, "exactly one of spec, specPath, specConfigMap must be set")
	}
	return nil
}

// Source builds the spec source for this definition. A
// JOB_DEFINITION_PATH_<NAME> environment variable overrides the configured
// source with a template file at that path.
func (d *Definition) Source(cmReader spec.ConfigMapReader, logger *slog.Logger) (spec.Source, error) {
	if override := os.Getenv(config.DefinitionPathOverrideVar(d.Name)); override != "" {
		return spec.NewFileSource(d.Name, override, logger), nil
	}

	switch {
	case d.Spec != "":
		return spec.NewStringSource(d.Name, d.Spec)
	case d.SpecPath != "":
		return spec.NewFileSource(d.Name, d.SpecPath, logger), nil
	case d.SpecConfigMap != nil:
		ref := d.SpecConfigMap
		key := ref.Key
		if key == "" {
			key = ref.Name
		}
		return spec.NewConfigMapSource(d.Name, cmReader, ref.Namespace, ref.Name, key), nil
	default:
		return nil, apperrors.Validation("definition "+d.Name, "no spec source configured")
	}
}

// definitionsFile is the on-disk shape of the definitions document.
type definitionsFile struct {
	Definitions []Definition `json:"definitions"`
}

// ParseDefinitions decodes and validates a definitions document. Duplicate
// names are rejected.
func ParseDefinitions(data []byte) ([]Definition, error) {
	var file definitionsFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, apperrors.Parse("definitions", err)
	}

	seen := map[string]struct{}{}
	for i := range file.Definitions {
		def := &file.Definitions[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[def.Name]; dup {
			return nil, apperrors.Validation("definition "+def.Name, "duplicate definition name")
		}
		seen[def.Name] = struct{}{}
	}

	return file.Definitions, nil
}
