package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// GraphRepository handles node and edge rows.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const nodeColumns = `id, workflow_id, node_type, layer, parent_node_id, position_x, position_y, data`

// cascadeQuery selects a node plus all transitive descendants reachable
// through parent_node_id chains.
const cascadeQuery = `
	WITH RECURSIVE doomed AS (
		SELECT id FROM nodes WHERE workflow_id = $1 AND id = $2
		UNION ALL
		SELECT n.id FROM nodes n
		JOIN doomed d ON n.parent_node_id = d.id
		WHERE n.workflow_id = $1
	)
	SELECT id FROM doomed
`

type rowScanner interface{ Scan(...any) error }

func scanNode(row rowScanner) (*models.Node, error) {
	var node models.Node

	var parent sql.NullString

	var raw []byte

	err := row.Scan(
		&node.ID,
		&node.WorkflowID,
		&node.Type,
		&node.Layer,
		&parent,
		&node.Position.X,
		&node.Position.Y,
		&raw,
	)
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		node.ParentNodeID = &parent.String
	}

	data, err := models.DecodeNodeData(node.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}

	node.Data = data

	return &node, nil
}

func collectNodes(rows *sql.Rows) ([]*models.Node, error) {
	defer rows.Close()

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	return nodes, rows.Err()
}

func collectEdges(rows *sql.Rows) ([]*models.Edge, error) {
	defer rows.Close()

	edges := make([]*models.Edge, 0)

	for rows.Next() {
		var edge models.Edge

		if err := rows.Scan(&edge.ID, &edge.WorkflowID, &edge.Source, &edge.Target, &edge.Layer); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, &edge)
	}

	return edges, rows.Err()
}

// NodesByScope returns all nodes in the given layer/parent scope.
func (gr *GraphRepository) NodesByScope(ctx context.Context, scope persistence.GraphScope) ([]*models.Node, error) {
	query := fmt.Sprintf("SELECT %s FROM nodes WHERE workflow_id = $1 AND layer = $2", nodeColumns)
	args := []any{scope.WorkflowID, string(scope.Layer)}

	if scope.ParentNodeID == nil {
		query += " AND parent_node_id IS NULL"
	} else {
		query += " AND parent_node_id = $3"
		args = append(args, *scope.ParentNodeID)
	}

	rows, err := gr.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	return collectNodes(rows)
}

// EdgesByLayer returns all edges of one layer.
func (gr *GraphRepository) EdgesByLayer(ctx context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error) {
	rows, err := gr.db.QueryContext(ctx,
		"SELECT id, workflow_id, source, target, layer FROM edges WHERE workflow_id = $1 AND layer = $2 ORDER BY id",
		workflowID, string(layer))
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	return collectEdges(rows)
}

// AllNodes returns every node of the workflow.
func (gr *GraphRepository) AllNodes(ctx context.Context, workflowID string) ([]*models.Node, error) {
	query := fmt.Sprintf("SELECT %s FROM nodes WHERE workflow_id = $1 ORDER BY id", nodeColumns)

	rows, err := gr.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	return collectNodes(rows)
}

// AllEdges returns every edge of the workflow.
func (gr *GraphRepository) AllEdges(ctx context.Context, workflowID string) ([]*models.Edge, error) {
	rows, err := gr.db.QueryContext(ctx,
		"SELECT id, workflow_id, source, target, layer FROM edges WHERE workflow_id = $1 ORDER BY id", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	return collectEdges(rows)
}

func insertNode(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, node *models.Node,
) error {
	raw, err := json.Marshal(node.Data)
	if err != nil {
		return fmt.Errorf("failed to encode node payload: %w", err)
	}

	query := `
		INSERT INTO nodes (id, workflow_id, node_type, layer, parent_node_id, position_x, position_y, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workflow_id, id) DO UPDATE SET
			node_type = EXCLUDED.node_type,
			layer = EXCLUDED.layer,
			parent_node_id = EXCLUDED.parent_node_id,
			position_x = EXCLUDED.position_x,
			position_y = EXCLUDED.position_y,
			data = EXCLUDED.data
	`

	_, err = execer.ExecContext(ctx, query,
		node.ID, node.WorkflowID, string(node.Type), string(node.Layer),
		node.ParentNodeID, node.Position.X, node.Position.Y, raw)

	return err
}

func insertEdge(ctx context.Context, execer interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, edge *models.Edge,
) error {
	query := `
		INSERT INTO edges (id, workflow_id, source, target, layer)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, id) DO UPDATE SET
			source = EXCLUDED.source,
			target = EXCLUDED.target,
			layer = EXCLUDED.layer
	`

	_, err := execer.ExecContext(ctx, query,
		edge.ID, edge.WorkflowID, edge.Source, edge.Target, string(edge.Layer))

	return err
}

// SaveNode upserts a node row.
func (gr *GraphRepository) SaveNode(ctx context.Context, node *models.Node) error {
	if err := insertNode(ctx, gr.db, node); err != nil {
		return persistence.NewGraphError("SaveNode", node.WorkflowID, node.ID, err)
	}

	return gr.touchWorkflow(ctx, node.WorkflowID)
}

// DeleteNode removes a node, its incident edges, and its descendant
// sub-graph in one transaction. Missing nodes are a no-op.
func (gr *GraphRepository) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	transaction, err := gr.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewGraphError("DeleteNode", workflowID, nodeID, err)
	}
	defer func() { _ = transaction.Rollback() }()

	doomed, err := cascadeIDs(ctx, transaction, workflowID, nodeID)
	if err != nil {
		return persistence.NewGraphError("DeleteNode", workflowID, nodeID, err)
	}

	if len(doomed) == 0 {
		return nil
	}

	if err := deleteGraphElements(ctx, transaction, workflowID, doomed); err != nil {
		return persistence.NewGraphError("DeleteNode", workflowID, nodeID, err)
	}

	if _, err := transaction.ExecContext(ctx,
		"UPDATE workflows SET updated_at = NOW() WHERE id = $1", workflowID); err != nil {
		return persistence.NewGraphError("DeleteNode", workflowID, nodeID, err)
	}

	return transaction.Commit()
}

func cascadeIDs(ctx context.Context, tx *sql.Tx, workflowID, nodeID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, cascadeQuery, workflowID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect cascade set: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string

		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func deleteGraphElements(ctx context.Context, tx *sql.Tx, workflowID string, doomed []string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM edges WHERE workflow_id = $1 AND (source = ANY($2) OR target = ANY($2))",
		workflowID, pq.Array(doomed)); err != nil {
		return fmt.Errorf("failed to delete incident edges: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nodes WHERE workflow_id = $1 AND id = ANY($2)",
		workflowID, pq.Array(doomed)); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}

	return nil
}

// SaveEdge upserts an edge row.
func (gr *GraphRepository) SaveEdge(ctx context.Context, edge *models.Edge) error {
	if err := insertEdge(ctx, gr.db, edge); err != nil {
		return persistence.NewGraphError("SaveEdge", edge.WorkflowID, edge.ID, err)
	}

	return gr.touchWorkflow(ctx, edge.WorkflowID)
}

// DeleteEdge removes an edge row. Missing edges are a no-op.
func (gr *GraphRepository) DeleteEdge(ctx context.Context, workflowID, edgeID string) error {
	if _, err := gr.db.ExecContext(ctx,
		"DELETE FROM edges WHERE workflow_id = $1 AND id = $2", workflowID, edgeID); err != nil {
		return persistence.NewGraphError("DeleteEdge", workflowID, edgeID, err)
	}

	return gr.touchWorkflow(ctx, workflowID)
}

func (gr *GraphRepository) touchWorkflow(ctx context.Context, workflowID string) error {
	result, err := gr.db.ExecContext(ctx,
		"UPDATE workflows SET updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", workflowID)
	if err != nil {
		return persistence.NewWorkflowError("Touch", workflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Touch", workflowID, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Touch", workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// CreateBatch inserts nodes and edges in one transaction. Template
// expansion relies on this being all-or-nothing.
func (gr *GraphRepository) CreateBatch(ctx context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error {
	transaction, err := gr.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("CreateBatch", workflowID, err)
	}
	defer func() { _ = transaction.Rollback() }()

	for _, node := range nodes {
		if err := insertNode(ctx, transaction, node); err != nil {
			return persistence.NewGraphError("CreateBatch", workflowID, node.ID, err)
		}
	}

	for _, edge := range edges {
		if err := insertEdge(ctx, transaction, edge); err != nil {
			return persistence.NewGraphError("CreateBatch", workflowID, edge.ID, err)
		}
	}

	if _, err := transaction.ExecContext(ctx,
		"UPDATE workflows SET updated_at = NOW() WHERE id = $1", workflowID); err != nil {
		return persistence.NewWorkflowError("CreateBatch", workflowID, err)
	}

	return transaction.Commit()
}

// ReplaceScope atomically swaps one scope's node/edge set with a batched
// save snapshot, guarded by the workflow version.
func (gr *GraphRepository) ReplaceScope(ctx context.Context, scope persistence.GraphScope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error) {
	transaction, err := gr.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}
	defer func() { _ = transaction.Rollback() }()

	var currentVersion int64

	err = transaction.QueryRowContext(ctx,
		"SELECT version FROM workflows WHERE id = $1 AND deleted_at IS NULL FOR UPDATE",
		scope.WorkflowID).Scan(&currentVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, persistence.ErrWorkflowNotFound)
		}

		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}

	if currentVersion != version {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, persistence.ErrVersionConflict)
	}

	// Cascade nodes that left the scope, then drop the remaining scope
	// rows so the snapshot can be reinserted wholesale.
	scopeFilter := "workflow_id = $1 AND layer = $2 AND parent_node_id IS NULL"
	args := []any{scope.WorkflowID, string(scope.Layer)}

	if scope.ParentNodeID != nil {
		scopeFilter = "workflow_id = $1 AND layer = $2 AND parent_node_id = $3"
		args = append(args, *scope.ParentNodeID)
	}

	rows, err := transaction.QueryContext(ctx, "SELECT id FROM nodes WHERE "+scopeFilter, args...)
	if err != nil {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}

	var existing []string

	for rows.Next() {
		var id string

		if err := rows.Scan(&id); err != nil {
			rows.Close()

			return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
		}

		existing = append(existing, id)
	}

	if err := rows.Err(); err != nil {
		rows.Close()

		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}

	rows.Close()

	incoming := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		incoming[node.ID] = true
	}

	for _, id := range existing {
		if incoming[id] {
			continue
		}

		doomed, err := cascadeIDs(ctx, transaction, scope.WorkflowID, id)
		if err != nil {
			return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
		}

		if err := deleteGraphElements(ctx, transaction, scope.WorkflowID, doomed); err != nil {
			return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
		}
	}

	// Edges among the snapshot's nodes are replaced wholesale.
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}

	if len(ids) > 0 {
		if _, err := transaction.ExecContext(ctx,
			"DELETE FROM edges WHERE workflow_id = $1 AND layer = $2 AND (source = ANY($3) OR target = ANY($3))",
			scope.WorkflowID, string(scope.Layer), pq.Array(ids)); err != nil {
			return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
		}
	}

	for _, node := range nodes {
		if err := insertNode(ctx, transaction, node); err != nil {
			return 0, persistence.NewGraphError("ReplaceScope", scope.WorkflowID, node.ID, err)
		}
	}

	for _, edge := range edges {
		if err := insertEdge(ctx, transaction, edge); err != nil {
			return 0, persistence.NewGraphError("ReplaceScope", scope.WorkflowID, edge.ID, err)
		}
	}

	newVersion := currentVersion + 1

	if _, err := transaction.ExecContext(ctx,
		"UPDATE workflows SET version = $2, updated_at = NOW() WHERE id = $1",
		scope.WorkflowID, newVersion); err != nil {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}

	if err := transaction.Commit(); err != nil {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, err)
	}

	return newVersion, nil
}
