// Package file provides a JSON-file-backed persistence implementation.
// Each workflow is stored as one document file holding the workflow plus
// all of its nodes and edges; templates live in their own directory.
package file

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

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local filesystem.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflowRepo *WorkflowRepository
	graphRepo    *GraphRepository
	templateRepo *TemplateRepository
}

// NewPersistence creates a file persistence rooted at the given
// directory. A "file://" prefix is tolerated so the root can come
// straight from a database URL flag.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{persistence: p}
	p.graphRepo = &GraphRepository{persistence: p}
	p.templateRepo = &TemplateRepository{persistence: p}

	return p
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) TemplateRepository() persistence.TemplateRepository {
	return p.templateRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs cleanup. There is nothing to release for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) workflowPath(id string) string {
	return filepath.Join(p.root, "workflows", id+".json")
}

func (p *Persistence) templatePath(id string) string {
	return filepath.Join(p.root, "templates", id+".json")
}

// readDocument loads a workflow document. Soft-deleted documents are
// still returned; callers filter. A nil document with nil error means
// the file does not exist.
func (p *Persistence) readDocument(id string) (*models.WorkflowDocument, error) {
	raw, err := os.ReadFile(p.workflowPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var document models.WorkflowDocument

	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", id, err)
	}

	return &document, nil
}

func (p *Persistence) writeDocument(document *models.WorkflowDocument) error {
	dir := filepath.Join(p.root, "workflows")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	raw, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", document.Workflow.ID, err)
	}

	if err := os.WriteFile(p.workflowPath(document.Workflow.ID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return nil
}

// workflowIDs lists the IDs of all stored workflow documents.
func (p *Persistence) workflowIDs() ([]string, error) {
	root := os.DirFS(filepath.Join(p.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
