// Package store persists workflow definitions as JSON files and resolves
// them across the builtin, user and project levels.
//
// Precedence is project over user over builtin. The builtin level is
// embedded in the binary and read-only; a directory may replace it.
// Directory scans are cached for a TTL and the cache is invalidated after
// every mutation made through the Store.
package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foragen/foragen-cli/internal/logging"
	"github.com/foragen/foragen-cli/internal/orchestrator"
	"github.com/foragen/foragen-cli/pkg/models"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// Level is a storage level for workflow definitions.
type Level string

const (
	// LevelBuiltin holds workflows shipped with foragen. Read-only.
	LevelBuiltin Level = "builtin"
	// LevelUser holds workflows in the user's config directory.
	LevelUser Level = "user"
	// LevelProject holds workflows in the project's .foragen directory.
	LevelProject Level = "project"
)

// scanOrder lists levels from lowest to highest precedence.
var scanOrder = []Level{LevelBuiltin, LevelUser, LevelProject}

// ParseLevel converts a level name, as typed on the command line.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(s)); l {
	case LevelBuiltin, LevelUser, LevelProject:
		return l, nil
	default:
		return "", fmt.Errorf("unknown level %q (want builtin, user or project)", s)
	}
}

// ProjectDir returns the project-level workflow directory.
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".foragen", "workflows")
}

// UserDir returns the user-level workflow directory under the given config dir.
func UserDir(userConfigDir string) string {
	return filepath.Join(userConfigDir, "workflows")
}

// Runner executes a resolved definition.
type Runner interface {
	Execute(ctx context.Context, def *models.WorkflowDefinition, overrides map[string]any) *models.WorkflowResult
}

// Config locates the workflow levels.
type Config struct {
	// ProjectDir is the project-level directory. Empty disables the level.
	ProjectDir string
	// UserDir is the user-level directory. Empty disables the level.
	UserDir string
	// BuiltinDir replaces the embedded builtin workflows when set.
	BuiltinDir string
	// CacheTTL is the scan cache lifetime. Zero means DefaultCacheTTL.
	CacheTTL time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source of the scan cache.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRunner sets the runner used by Execute.
func WithRunner(r Runner) Option {
	return func(s *Store) { s.runner = r }
}

// WithBuiltinFS replaces the embedded builtin workflows. Files must sit
// at the root of fsys.
func WithBuiltinFS(fsys fs.FS) Option {
	return func(s *Store) { s.builtin = fsys }
}

// Store resolves and persists workflow definitions.
type Store struct {
	cfg     Config
	builtin fs.FS
	runner  Runner
	logger  *logging.Logger
	now     func() time.Time
	cache   *cache

	// writeMu serializes mutations.
	writeMu sync.Mutex
}

// New creates a Store.
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		logger: logging.NopLogger(),
		now:    time.Now,
	}
	if sub, err := fs.Sub(builtinFS, "builtin"); err == nil {
		s.builtin = sub
	}
	if cfg.BuiltinDir != "" {
		s.builtin = os.DirFS(cfg.BuiltinDir)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newCache(cfg.CacheTTL, s.now)
	return s
}

// Metadata describes a stored workflow without its steps.
type Metadata struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Version     string               `json:"version,omitempty"`
	Mode        models.ExecutionMode `json:"mode"`
	StepCount   int                  `json:"stepCount"`
	Level       Level                `json:"level"`
	Path        string               `json:"path"`
	Modified    time.Time            `json:"modified"`
}

// entry is one parsed workflow file.
type entry struct {
	def      *models.WorkflowDefinition
	level    Level
	path     string
	modified time.Time
}

func (e entry) metadata() Metadata {
	return Metadata{
		Name:        e.def.Name,
		Description: e.def.Description,
		Version:     e.def.Version,
		Mode:        e.def.EffectiveMode(),
		StepCount:   len(e.def.Steps),
		Level:       e.level,
		Path:        e.path,
		Modified:    e.modified,
	}
}

// Invalidate drops the scan cache.
func (s *Store) Invalidate() {
	s.cache.invalidate()
}

// Load returns the effective definition for name.
func (s *Store) Load(name string) (*models.WorkflowDefinition, error) {
	e, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return e.def.Clone(), nil
}

// Resolve returns the metadata of the effective definition for name,
// including the level it resolves from.
func (s *Store) Resolve(name string) (Metadata, error) {
	e, err := s.resolve(name)
	if err != nil {
		return Metadata{}, err
	}
	return e.metadata(), nil
}

// SortField selects the List ordering.
type SortField string

const (
	SortByName     SortField = "name"
	SortByModified SortField = "modified"
)

// Filter narrows and orders List results.
type Filter struct {
	// Level restricts the listing to one level. Empty lists the effective
	// set after precedence is applied.
	Level Level
	// SortBy defaults to name.
	SortBy SortField
	// Descending reverses the order.
	Descending bool
}

// List returns metadata for the matching definitions.
func (s *Store) List(f Filter) ([]Metadata, error) {
	entries, err := s.entries()
	if err != nil {
		return nil, err
	}

	var selected []entry
	if f.Level != "" {
		for _, e := range entries {
			if e.level == f.Level {
				selected = append(selected, e)
			}
		}
	} else {
		for _, e := range effective(entries) {
			selected = append(selected, e)
		}
	}

	out := make([]Metadata, 0, len(selected))
	for _, e := range selected {
		out = append(out, e.metadata())
	}

	less := func(i, j int) bool { return out[i].Name < out[j].Name }
	if f.SortBy == SortByModified {
		less = func(i, j int) bool {
			if out[i].Modified.Equal(out[j].Modified) {
				return out[i].Name < out[j].Name
			}
			return out[i].Modified.Before(out[j].Modified)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if f.Descending {
			return less(j, i)
		}
		return less(i, j)
	})
	return out, nil
}

// Create validates def and writes it at level. It fails with
// models.ErrAlreadyExists if the level already holds the name and
// overwrite is false.
func (s *Store) Create(def *models.WorkflowDefinition, level Level, overwrite bool) error {
	if err := orchestrator.Validate(def); err != nil {
		return err
	}
	dir, err := s.dir(level)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	path := filepath.Join(dir, def.Name+".json")
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("workflow %s at %s level: %w", def.Name, level, models.ErrAlreadyExists)
	}
	if err := writeDefinition(path, def); err != nil {
		return err
	}
	s.cache.invalidate()
	s.logger.Infof("created workflow %s at %s", def.Name, path)
	return nil
}

// Update replaces the definition currently stored under name. The new
// definition is written at the level name resolves from; a changed name
// renames the file.
func (s *Store) Update(name string, def *models.WorkflowDefinition) error {
	current, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := orchestrator.Validate(def); err != nil {
		return err
	}
	dir, err := s.dir(current.level)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	path := filepath.Join(dir, def.Name+".json")
	if def.Name != name {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("workflow %s at %s level: %w", def.Name, current.level, models.ErrAlreadyExists)
		}
	}
	if err := writeDefinition(path, def); err != nil {
		return err
	}
	if path != current.path {
		if err := os.Remove(current.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove old workflow file: %w", err)
		}
	}
	s.cache.invalidate()
	s.logger.Infof("updated workflow %s at %s", name, path)
	return nil
}

// Delete removes the file backing the effective definition of name.
func (s *Store) Delete(name string) error {
	current, err := s.resolve(name)
	if err != nil {
		return err
	}
	if current.level == LevelBuiltin {
		return fmt.Errorf("delete %s: %w", name, models.ErrReadOnly)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.Remove(current.path); err != nil {
		if os.IsNotExist(err) {
			s.cache.invalidate()
			return fmt.Errorf("workflow %s: %w", name, models.ErrNotFound)
		}
		return fmt.Errorf("delete workflow %s: %w", name, err)
	}
	s.cache.invalidate()
	s.logger.Infof("deleted workflow %s (%s)", name, current.path)
	return nil
}

// Execute loads name and runs it with overrides layered over its variables.
// Load failures are returned as errors; execution failures are reported
// in the result.
func (s *Store) Execute(ctx context.Context, name string, overrides map[string]any) (*models.WorkflowResult, error) {
	if s.runner == nil {
		return nil, fmt.Errorf("store has no runner configured")
	}
	def, err := s.Load(name)
	if err != nil {
		return nil, err
	}
	return s.runner.Execute(ctx, def, overrides), nil
}

func (s *Store) resolve(name string) (entry, error) {
	entries, err := s.entries()
	if err != nil {
		return entry{}, err
	}
	e, ok := effective(entries)[name]
	if !ok {
		return entry{}, fmt.Errorf("workflow %s: %w", name, models.ErrNotFound)
	}
	return e, nil
}

// dir returns the writable directory for level.
func (s *Store) dir(level Level) (string, error) {
	switch level {
	case LevelBuiltin:
		return "", fmt.Errorf("write to %s level: %w", level, models.ErrReadOnly)
	case LevelUser:
		if s.cfg.UserDir == "" {
			return "", fmt.Errorf("user workflow directory is not configured")
		}
		return s.cfg.UserDir, nil
	case LevelProject:
		if s.cfg.ProjectDir == "" {
			return "", fmt.Errorf("project workflow directory is not configured")
		}
		return s.cfg.ProjectDir, nil
	default:
		return "", fmt.Errorf("unknown level %q", level)
	}
}

// effective applies precedence: later levels replace earlier ones.
func effective(entries []entry) map[string]entry {
	out := make(map[string]entry, len(entries))
	for _, level := range scanOrder {
		for _, e := range entries {
			if e.level == level {
				out[e.def.Name] = e
			}
		}
	}
	return out
}

// entries returns every parsed definition, from the cache when fresh.
func (s *Store) entries() ([]entry, error) {
	if cached, ok := s.cache.get(); ok {
		return cached, nil
	}

	gen := s.cache.generation()
	var all []entry
	for _, level := range scanOrder {
		found, err := s.scanLevel(level)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	if !s.cache.set(all, gen) {
		s.logger.Debugf("discarded workflow scan overtaken by a change")
	}
	s.logger.Debugf("scanned workflows: %d definitions", len(all))
	return all, nil
}
