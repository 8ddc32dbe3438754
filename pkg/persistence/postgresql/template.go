package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// TemplateRepository handles action template rows.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func scanTemplate(row rowScanner) (*models.ActionTemplate, error) {
	var template models.ActionTemplate

	var resources, deliverables []byte

	err := row.Scan(&template.ID, &template.ActionName, &template.Description, &template.Category, &resources, &deliverables)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(resources, &template.Resources); err != nil {
		return nil, fmt.Errorf("template %s: decode resources: %w", template.ID, err)
	}

	if err := json.Unmarshal(deliverables, &template.Deliverables); err != nil {
		return nil, fmt.Errorf("template %s: decode deliverables: %w", template.ID, err)
	}

	return &template, nil
}

// ListTemplates returns the whole catalog sorted by name.
func (tr *TemplateRepository) ListTemplates(ctx context.Context) ([]*models.ActionTemplate, error) {
	rows, err := tr.db.QueryContext(ctx,
		"SELECT id, action_name, description, category, resources, deliverables FROM action_templates ORDER BY action_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.ActionTemplate, 0)

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}

		templates = append(templates, template)
	}

	return templates, rows.Err()
}

// GetTemplate returns one template by ID.
func (tr *TemplateRepository) GetTemplate(ctx context.Context, id string) (*models.ActionTemplate, error) {
	row := tr.db.QueryRowContext(ctx,
		"SELECT id, action_name, description, category, resources, deliverables FROM action_templates WHERE id = $1", id)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}

	return template, nil
}

// SaveTemplate upserts a template row. Used by catalog seeding only.
func (tr *TemplateRepository) SaveTemplate(ctx context.Context, template *models.ActionTemplate) error {
	resources, err := json.Marshal(template.Resources)
	if err != nil {
		return fmt.Errorf("failed to encode resources: %w", err)
	}

	deliverables, err := json.Marshal(template.Deliverables)
	if err != nil {
		return fmt.Errorf("failed to encode deliverables: %w", err)
	}

	query := `
		INSERT INTO action_templates (id, action_name, description, category, resources, deliverables)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			action_name = EXCLUDED.action_name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			resources = EXCLUDED.resources,
			deliverables = EXCLUDED.deliverables
	`

	_, err = tr.db.ExecContext(ctx, query,
		template.ID, template.ActionName, template.Description, template.Category, resources, deliverables)
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	return nil
}
