package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/spml-provisioner/internal/models"
)

type templateFile struct {
	Templates []models.EmailTemplate `yaml:"templates"`
}

// TemplateRepository serves welcome-mail templates from a YAML catalogue.
type TemplateRepository struct {
	path string

	mu        sync.RWMutex
	templates map[string]models.EmailTemplate
}

// NewTemplateRepository loads the catalogue at path. A missing file yields an empty catalogue.
func NewTemplateRepository(path string) (*TemplateRepository, error) {
	r := &TemplateRepository{path: path, templates: map[string]models.EmailTemplate{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewTemplateRepositoryFromBytes parses an in-memory catalogue.
func NewTemplateRepositoryFromBytes(data []byte) (*TemplateRepository, error) {
	templates, err := parseTemplates(data)
	if err != nil {
		return nil, err
	}
	return &TemplateRepository{templates: templates}, nil
}

// Reload re-reads the catalogue from disk.
func (r *TemplateRepository) Reload() error {
	if r.path == "" {
		return nil
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read template catalogue: %w", err)
	}
	templates, err := parseTemplates(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	return nil
}

// Get returns the template registered under key.
func (r *TemplateRepository) Get(key string) (*models.EmailTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[key]
	if !ok {
		return nil, false
	}
	return &tpl, true
}

// Len reports how many templates are loaded.
func (r *TemplateRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

func parseTemplates(data []byte) (map[string]models.EmailTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse template catalogue: %w", err)
	}
	out := make(map[string]models.EmailTemplate, len(file.Templates))
	for _, tpl := range file.Templates {
		if tpl.Key == "" {
			return nil, fmt.Errorf("parse template catalogue: template without key")
		}
		out[tpl.Key] = tpl
	}
	return out, nil
}
