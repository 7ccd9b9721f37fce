package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/EdgeApp/libforge/internal/model"
)

// ConfigYAMLRepository loads project configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads a project configuration from a YAML file and returns a
// validated domain model.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.ProjectConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.ProjectConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.ProjectConfig{}, ctx.Err()
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.ProjectConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.ProjectConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// ProjectConfig represents the YAML structure for project configuration.
type ProjectConfig struct {
	BasePath    string            `yaml:"base_path"`
	MaxProcs    int               `yaml:"max_procs"`
	Env         map[string]string `yaml:"env"`
	DefaultTask string            `yaml:"default_task"`
}

func (c ProjectConfig) validate() error {
	if c.MaxProcs < 0 {
		return fmt.Errorf("max_procs cannot be negative, got: %d", c.MaxProcs)
	}
	return nil
}

func (c ProjectConfig) toModel() model.ProjectConfig {
	return model.ProjectConfig{
		BasePath:    c.BasePath,
		MaxProcs:    c.MaxProcs,
		Env:         c.Env,
		DefaultTask: c.DefaultTask,
	}
}
