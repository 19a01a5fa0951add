package agents

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/foragen/foragen-cli/pkg/models"
)

// ProjectDir returns the project-level agent directory.
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".foragen", "agents")
}

// UserDir returns the user-level agent directory under the given config dir.
func UserDir(userConfigDir string) string {
	return filepath.Join(userConfigDir, "agents")
}

// FileStore loads agent definitions from YAML files (<name>.yaml or
// <name>.yml). Directories are searched from highest to lowest precedence;
// agents registered with Register are consulted last.
type FileStore struct {
	dirs []string

	mu       sync.RWMutex
	builtins map[string]*models.AgentDefinition
}

// NewFileStore creates a store searching dirs in the given order
// (highest precedence first). Missing directories are ignored.
func NewFileStore(dirs ...string) *FileStore {
	return &FileStore{
		dirs:     dirs,
		builtins: make(map[string]*models.AgentDefinition),
	}
}

// Register adds an in-memory agent used when no file defines the name.
func (s *FileStore) Register(def *models.AgentDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builtins[def.Name] = def
}

// LoadAgent returns the named agent.
func (s *FileStore) LoadAgent(name string) (*models.AgentDefinition, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("agent %q: %w", name, models.ErrNotFound)
	}

	for _, dir := range s.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, name+ext)
			def, err := loadAgentFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if def.Name == "" {
				def.Name = name
			}
			return def, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if def, ok := s.builtins[name]; ok {
		copied := *def
		return &copied, nil
	}
	return nil, fmt.Errorf("agent %q: %w", name, models.ErrNotFound)
}

// List returns the names of all resolvable agents, sorted.
func (s *FileStore) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read agent dir %s: %w", dir, err)
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), ext)] = true
		}
	}

	s.mu.RLock()
	for name := range s.builtins {
		seen[name] = true
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func loadAgentFile(path string) (*models.AgentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def models.AgentDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse agent %s: %w", path, err)
	}
	def.Path = path
	return &def, nil
}

// DefaultAgent is the general-purpose agent available when no file
// overrides it.
func DefaultAgent() *models.AgentDefinition {
	return &models.AgentDefinition{
		Name:        "general-purpose",
		Description: "General-purpose coding agent for workflow steps",
		SystemPrompt: "You are a careful software engineering agent executing one step of a larger workflow. " +
			"Complete the task you are given and finish with a concise summary of the result.",
		RunConfig: models.RunConfig{MaxTurns: 8},
	}
}

var _ Store = (*FileStore)(nil)
