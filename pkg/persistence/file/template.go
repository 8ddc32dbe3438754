package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// TemplateRepository stores action templates as one JSON file per
// template.
type TemplateRepository struct {
	persistence *Persistence
}

// ListTemplates returns the whole template catalog sorted by name.
func (tr *TemplateRepository) ListTemplates(_ context.Context) ([]*models.ActionTemplate, error) {
	tr.persistence.mu.RLock()
	defer tr.persistence.mu.RUnlock()

	root := os.DirFS(filepath.Join(tr.persistence.root, "templates"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list template files: %w", err)
	}

	templates := make([]*models.ActionTemplate, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		template, err := tr.readTemplate(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if template != nil {
			templates = append(templates, template)
		}
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].ActionName < templates[j].ActionName
	})

	return templates, nil
}

// GetTemplate returns one template by ID.
func (tr *TemplateRepository) GetTemplate(_ context.Context, id string) (*models.ActionTemplate, error) {
	tr.persistence.mu.RLock()
	defer tr.persistence.mu.RUnlock()

	template, err := tr.readTemplate(id)
	if err != nil {
		return nil, err
	}

	if template == nil {
		return nil, persistence.ErrTemplateNotFound
	}

	return template, nil
}

// SaveTemplate writes a template file. Used by catalog seeding only.
func (tr *TemplateRepository) SaveTemplate(_ context.Context, template *models.ActionTemplate) error {
	tr.persistence.mu.Lock()
	defer tr.persistence.mu.Unlock()

	dir := filepath.Join(tr.persistence.root, "templates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}

	raw, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", template.ID, err)
	}

	if err := os.WriteFile(tr.persistence.templatePath(template.ID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write template file: %w", err)
	}

	return nil
}

func (tr *TemplateRepository) readTemplate(id string) (*models.ActionTemplate, error) {
	raw, err := os.ReadFile(tr.persistence.templatePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var template models.ActionTemplate

	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", id, err)
	}

	return &template, nil
}
