package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foragen/foragen-cli/pkg/models"
)

// scanLevel parses every *.json file of a level. Unparseable files are
// logged and skipped.
func (s *Store) scanLevel(level Level) ([]entry, error) {
	var (
		fsys fs.FS
		root string
	)
	switch level {
	case LevelBuiltin:
		fsys, root = s.builtin, s.cfg.BuiltinDir
	case LevelUser:
		if s.cfg.UserDir != "" {
			fsys, root = os.DirFS(s.cfg.UserDir), s.cfg.UserDir
		}
	case LevelProject:
		if s.cfg.ProjectDir != "" {
			fsys, root = os.DirFS(s.cfg.ProjectDir), s.cfg.ProjectDir
		}
	}
	if fsys == nil {
		return nil, nil
	}

	dirEntries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s workflows: %w", level, err)
	}
	sort.Slice(dirEntries, func(i, j int) bool { return dirEntries[i].Name() < dirEntries[j].Name() })

	var out []entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || path.Ext(name) != ".json" {
			continue
		}

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			s.logger.Warn(err, fmt.Sprintf("skipping unreadable workflow %s", name))
			continue
		}
		var def models.WorkflowDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			s.logger.Warn(err, fmt.Sprintf("skipping malformed workflow %s", name))
			continue
		}
		if def.Name == "" {
			def.Name = strings.TrimSuffix(name, ".json")
		}

		e := entry{def: &def, level: level, path: name}
		if root != "" {
			e.path = filepath.Join(root, name)
		} else {
			e.path = "builtin:" + name
		}
		if info, err := de.Info(); err == nil {
			e.modified = info.ModTime()
		}
		out = append(out, e)
	}
	return out, nil
}

// writeDefinition writes def as indented JSON through a temp file and a
// rename, so readers never observe a partial file.
func writeDefinition(dest string, def *models.WorkflowDefinition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", def.Name, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create workflow directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+def.Name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write workflow %s: %w", def.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write workflow %s: %w", def.Name, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write workflow %s: %w", def.Name, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write workflow %s: %w", def.Name, err)
	}
	return nil
}

// ReadDefinitionFile parses a workflow definition from a JSON file outside
// the store. A missing name defaults to the file's base name.
func ReadDefinitionFile(file string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", models.ErrInvalidConfig, file, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	return &def, nil
}
