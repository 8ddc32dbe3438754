package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// WorkflowRepository handles workflow document rows.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `id, name, description, access_level, version, owner, created_at, updated_at, deleted_at`

func scanWorkflow(row interface{ Scan(...any) error }) (*models.Workflow, error) {
	var workflow models.Workflow

	var deletedAt sql.NullTime

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.AccessLevel,
		&workflow.Version,
		&workflow.Owner,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		workflow.DeletedAt = &deletedAt.Time
	}

	return &workflow, nil
}

// ListWorkflows returns paginated and filtered workflows.
func (wr *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	sortColumn := map[string]string{
		"":           "created_at",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"name":       "name",
	}[opts.SortBy]
	if sortColumn == "" {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	where := "deleted_at IS NULL"
	args := []any{}

	if opts.OwnerID != "" {
		args = append(args, opts.OwnerID)
		where += fmt.Sprintf(" AND owner = $%d", len(args))
	}

	if opts.AccessLevel != nil {
		args = append(args, string(*opts.AccessLevel))
		where += fmt.Sprintf(" AND access_level = $%d", len(args))
	}

	var totalCount int64

	countQuery := "SELECT COUNT(*) FROM workflows WHERE " + where
	if err := wr.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	args = append(args, opts.Limit, opts.Offset)
	query := fmt.Sprintf(
		"SELECT %s FROM workflows WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		workflowColumns, where, sortColumn, direction, len(args)-1, len(args),
	)

	rows, err := wr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID returns a workflow, or ErrWorkflowNotFound when missing or
// soft-deleted.
func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := fmt.Sprintf("SELECT %s FROM workflows WHERE id = $1 AND deleted_at IS NULL", workflowColumns)

	workflow, err := scanWorkflow(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to get workflow %s: %w", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow row.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (id, name, description, access_level, version, owner, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			access_level = EXCLUDED.access_level,
			version = EXCLUDED.version,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err := wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		string(workflow.AccessLevel),
		workflow.Version,
		workflow.Owner,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.DeletedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete soft-deletes a workflow.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := wr.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// PurgeDeleted hard-deletes workflows soft-deleted before the cutoff.
// Owned nodes and edges cascade through foreign keys.
func (wr *WorkflowRepository) PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := wr.db.ExecContext(ctx,
		"DELETE FROM workflows WHERE deleted_at IS NOT NULL AND deleted_at <= $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge workflows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged workflows: %w", err)
	}

	return int(affected), nil
}
