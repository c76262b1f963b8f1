// Package loader reads task catalogs and turns them into a task registry.
package loader

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourceplane/khiopsctl/internal/model"
	"github.com/sourceplane/khiopsctl/internal/params"
	"github.com/sourceplane/khiopsctl/internal/schema"
	"github.com/sourceplane/khiopsctl/internal/task"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/*.yaml
var builtinCatalogs embed.FS

// Loader parses and validates catalog documents.
type Loader struct {
	fs        afero.Fs
	validator *schema.Validator
}

// New creates a loader reading catalog files from fsys.
func New(fsys afero.Fs) (*Loader, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{fs: fsys, validator: validator}, nil
}

// ParseCatalog validates raw YAML against the catalog schema and decodes it.
func (l *Loader) ParseCatalog(data []byte, source string) (*model.TaskCatalog, error) {
	if err := l.validator.ValidateCatalogYAML(data); err != nil {
		return nil, fmt.Errorf("catalog %s failed validation: %w", source, err)
	}

	var catalog model.TaskCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", source, err)
	}
	return &catalog, nil
}

// LoadCatalog loads and parses a catalog YAML file
func (l *Loader) LoadCatalog(path string) (*model.TaskCatalog, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return l.ParseCatalog(data, path)
}

// Builtin returns the catalogs shipped with the binary.
func (l *Loader) Builtin() ([]*model.TaskCatalog, error) {
	entries, err := fs.ReadDir(builtinCatalogs, "catalog")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin catalogs: %w", err)
	}

	var catalogs []*model.TaskCatalog
	for _, entry := range entries {
		path := "catalog/" + entry.Name()
		data, err := builtinCatalogs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin catalog %s: %w", path, err)
		}
		catalog, err := l.ParseCatalog(data, path)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, catalog)
	}
	return catalogs, nil
}

// LoadCatalogsFromDir loads every catalog file below a directory path.
// Supports glob patterns for recursive search:
//   - Exact path: non-recursive, reads *.yaml and *.yml directly in the directory
//   - Path with *: every matching directory is walked recursively
//
// Example paths:
//   - "catalogs" - reads catalogs/*.yaml
//   - "catalogs/*" - walks every subdirectory of catalogs
func (l *Loader) LoadCatalogsFromDir(dir string) ([]*model.TaskCatalog, error) {
	isRecursive := strings.Contains(dir, "*")

	var searchPaths []string
	if isRecursive {
		matches, err := afero.Glob(l.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate glob pattern %s: %w", dir, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob pattern %s matched no directories", dir)
		}
		searchPaths = matches
	} else {
		info, err := l.fs.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to access catalog directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("catalog path is not a directory: %s", dir)
		}
		searchPaths = []string{dir}
	}

	var files []string
	for _, basePath := range searchPaths {
		if isRecursive {
			err := afero.Walk(l.fs, basePath, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isCatalogFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk directory %s: %w", basePath, err)
			}
			continue
		}

		entries, err := afero.ReadDir(l.fs, basePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", basePath, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && isCatalogFile(entry.Name()) {
				files = append(files, filepath.Join(basePath, entry.Name()))
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog files found in: %s", dir)
	}
	sort.Strings(files)

	catalogs := make([]*model.TaskCatalog, 0, len(files))
	for _, path := range files {
		catalog, err := l.LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, catalog)
	}
	return catalogs, nil
}

func isCatalogFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// BuildRegistry converts every task definition of the catalogs into a spec and
// registers it.
func BuildRegistry(catalogs ...*model.TaskCatalog) (*task.Registry, error) {
	registry, err := task.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, catalog := range catalogs {
		for _, def := range catalog.Tasks {
			spec, err := ToSpec(def)
			if err != nil {
				return nil, fmt.Errorf("catalog %s: %w", catalog.Metadata.Name, err)
			}
			if err := registry.Register(spec); err != nil {
				return nil, fmt.Errorf("catalog %s: %w", catalog.Metadata.Name, err)
			}
		}
	}
	return registry, nil
}

// ToSpec resolves the parameter types of def and validates it as a task spec.
func ToSpec(def model.TaskDefinition) (*task.Spec, error) {
	required, err := toParameters(def.Name, def.Required)
	if err != nil {
		return nil, err
	}
	optional, err := toParameters(def.Name, def.Optional)
	if err != nil {
		return nil, err
	}
	return task.New(task.Definition{
		Name:          def.Name,
		Component:     def.Component,
		MinVersion:    def.MinVersion,
		Description:   def.Description,
		Required:      required,
		Optional:      optional,
		RequiredFlags: def.RequiredFlags,
		Template:      def.Template,
	})
}

func toParameters(taskName string, defs []model.ParameterDefinition) ([]task.Parameter, error) {
	out := make([]task.Parameter, 0, len(defs))
	for _, d := range defs {
		typ, err := params.Parse(d.Type)
		if err != nil {
			return nil, fmt.Errorf("task %s: parameter %q: %w", taskName, d.Name, err)
		}
		out = append(out, task.Parameter{
			Name:     d.Name,
			Type:     typ,
			Default:  d.Default,
			Artifact: d.Artifact,
		})
	}
	return out, nil
}

// LoadRegistry builds a registry from the builtin catalogs plus the catalogs
// found under extraDirs. An extra spec sharing a task name and minimum version
// with a builtin one is an ambiguity error.
func (l *Loader) LoadRegistry(extraDirs ...string) (*task.Registry, error) {
	catalogs, err := l.Builtin()
	if err != nil {
		return nil, err
	}
	for _, dir := range extraDirs {
		if dir == "" {
			continue
		}
		extra, err := l.LoadCatalogsFromDir(dir)
		if err != nil {
			return nil, err
		}
		catalogs = append(catalogs, extra...)
	}
	return BuildRegistry(catalogs...)
}
