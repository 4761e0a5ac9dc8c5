package register

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"jobforge/internal/apperrors"
	"jobforge/internal/reloader"
	"jobforge/internal/spec"
)

// Register resolves job definition names to their generators.
type Register interface {
	// Generator returns the generator for a definition, or
	// apperrors.ErrNotFound when no such definition exists.
	Generator(ctx context.Context, name string) (*spec.Generator, error)

	// Definitions returns the known definition names, sorted.
	Definitions(ctx context.Context) ([]string, error)
}

type entry struct {
	definition Definition
	generator  *spec.Generator
}

func buildEntries(defs []Definition, cmReader spec.ConfigMapReader, logger *slog.Logger) (map[string]*entry, error) {
	entries := make(map[string]*entry, len(defs))
	for _, def := range defs {
		source, err := def.Source(cmReader, logger)
		if err != nil {
			return nil, err
		}
		entries[def.Name] = &entry{definition: def, generator: spec.NewGenerator(source)}
	}
	return entries, nil
}

func sortedNames(entries map[string]*entry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StaticRegister serves a fixed set of definitions.
type StaticRegister struct {
	entries map[string]*entry
}

func NewStaticRegister(defs []Definition, cmReader spec.ConfigMapReader, logger *slog.Logger) (*StaticRegister, error) {
	entries, err := buildEntries(defs, cmReader, logger)
	if err != nil {
		return nil, err
	}
	return &StaticRegister{entries: entries}, nil
}

func (r *StaticRegister) Generator(ctx context.Context, name string) (*spec.Generator, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, apperrors.NotFound("job definition", name)
	}
	return e.generator, nil
}

func (r *StaticRegister) Definitions(ctx context.Context) ([]string, error) {
	return sortedNames(r.entries), nil
}

// ReloadingRegister serves definitions from a file and picks up edits without
// restarting. Lookups see a consistent snapshot: the definition map is built
// off to the side and swapped in atomically, so a reload never tears an
// in-flight read. A failed parse keeps the last good snapshot and leaves the
// rewrite pending, so a later fix is picked up.
type ReloadingRegister struct {
	reloader *reloader.FileReloader
	cmReader spec.ConfigMapReader
	logger   *slog.Logger

	reloadMu sync.Mutex
	entries  atomic.Pointer[map[string]*entry]
}

func NewReloadingRegister(path string, cmReader spec.ConfigMapReader, logger *slog.Logger) *ReloadingRegister {
	return &ReloadingRegister{
		reloader: reloader.New(path),
		cmReader: cmReader,
		logger:   logger.With("component", "register"),
	}
}

func (r *ReloadingRegister) Generator(ctx context.Context, name string) (*spec.Generator, error) {
	entries, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	e, ok := entries[name]
	if !ok {
		return nil, apperrors.NotFound("job definition", name)
	}
	return e.generator, nil
}

func (r *ReloadingRegister) Definitions(ctx context.Context) ([]string, error) {
	entries, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sortedNames(entries), nil
}

// Definition returns the declared definition for a name, for introspection.
func (r *ReloadingRegister) Definition(ctx context.Context, name string) (*Definition, error) {
	entries, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	e, ok := entries[name]
	if !ok {
		return nil, apperrors.NotFound("job definition", name)
	}
	def := e.definition
	return &def, nil
}

func (r *ReloadingRegister) snapshot(ctx context.Context) (map[string]*entry, error) {
	content, commit, err := r.reloader.Check()
	if err == nil && content == nil {
		// Common case: nothing to reload. Serve the current snapshot
		// straight off the atomic pointer, without touching reloadMu.
		if current := r.entries.Load(); current != nil {
			return *current, nil
		}
	}

	if err == nil && content != nil {
		// reloadMu serializes rebuilds only; the CAS inside commit makes a
		// losing rebuild of the same content a no-op.
		r.reloadMu.Lock()
		var defs []Definition
		defs, err = ParseDefinitions(content)
		if err == nil {
			var entries map[string]*entry
			entries, err = buildEntries(defs, r.cmReader, r.logger)
			if err == nil {
				r.entries.Store(&entries)
				commit()
				r.logger.InfoContext(ctx, "definitions loaded", "path", r.reloader.Path(), "count", len(entries))
			}
		}
		r.reloadMu.Unlock()
	}

	current := r.entries.Load()
	if err != nil {
		if current != nil {
			r.logger.WarnContext(ctx, "failed to reload definitions, keeping current set", "error", err)
			return *current, nil
		}
		return nil, err
	}
	if current == nil {
		return nil, apperrors.NotFound("definitions file", r.reloader.Path())
	}
	return *current, nil
}
