package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sherlock/pkg/platform/sentinel"
)

// Registry loads a model by version.
type Registry interface {
	Load(ctx context.Context, version string) (Model, error)
}

// FileRegistry reads JSON artifacts named <version>.json from a directory.
type FileRegistry struct {
	dir string
}

func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{dir: dir}
}

func (r *FileRegistry) Load(ctx context.Context, version string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if version == "" || strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") {
		return nil, fmt.Errorf("invalid model version %q", version)
	}

	path := filepath.Join(r.dir, version+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model %s: %w", version, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read model %s: %w", version, err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", version, err)
	}
	if a.Version != version {
		return nil, fmt.Errorf("model file %s declares version %q", path, a.Version)
	}
	return Build(a)
}

// StaticRegistry serves artifacts held in memory.
type StaticRegistry struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

func NewStaticRegistry(artifacts ...Artifact) *StaticRegistry {
	r := &StaticRegistry{artifacts: make(map[string]Artifact, len(artifacts))}
	for _, a := range artifacts {
		r.artifacts[a.Version] = a
	}
	return r
}

// Put adds or replaces an artifact.
func (r *StaticRegistry) Put(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[a.Version] = a
}

func (r *StaticRegistry) Load(ctx context.Context, version string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	a, ok := r.artifacts[version]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model %s: %w", version, sentinel.ErrNotFound)
	}
	return Build(a)
}
