package cluster

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DescriptorFileName is the file name every cluster descriptor uses.
const DescriptorFileName = "cluster.yaml"

// templatesDir is skipped during discovery; it holds scaffolding for new
// clusters, not real ones.
const templatesDir = "templates"

// Loader is the interface for reading every cluster descriptor in the fleet.
type Loader interface {
	// Load returns all cluster configs in a deterministic order.
	Load() ([]Config, error)
}

// FileLoader loads descriptors from a directory tree on disk.
type FileLoader struct {
	Root string
}

// NewFileLoader returns a FileLoader rooted at root.
func NewFileLoader(root string) *FileLoader {
	return &FileLoader{Root: root}
}

// Load implements Loader.
func (l *FileLoader) Load() ([]Config, error) {
	paths, err := FindClusterFiles(l.Root)
	if err != nil {
		return nil, err
	}
	configs := make([]Config, 0, len(paths))
	for _, p := range paths {
		cfg, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, nil
}

// FindClusterFiles walks root and returns the path of every cluster.yaml
// found, skipping anything under a "templates" directory. Paths are sorted.
func FindClusterFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("clusters directory %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("clusters directory %q is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == templatesDir && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == DescriptorFileName {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// LoadFile reads and parses a single cluster descriptor.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse cluster file %q: %w", path, err)
	}
	if cfg.Provider == "" {
		return nil, fmt.Errorf("cluster file %q: provider is required", path)
	}

	cfg.Path = path
	if cfg.Name == "" {
		cfg.Name = filepath.Base(filepath.Dir(path))
	}
	return &cfg, nil
}
