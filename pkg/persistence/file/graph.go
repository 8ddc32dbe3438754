package file

import (
	"context"
	"time"

	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

// GraphRepository handles node and edge operations against the stored
// workflow documents. A whole document is rewritten per mutation, which
// makes every multi-element operation naturally atomic.
type GraphRepository struct {
	persistence *Persistence
}

func scopeMatches(node *models.Node, scope persistence.GraphScope) bool {
	if node.Layer != scope.Layer {
		return false
	}

	if scope.ParentNodeID == nil {
		return node.ParentNodeID == nil
	}

	return node.ParentNodeID != nil && *node.ParentNodeID == *scope.ParentNodeID
}

func (gr *GraphRepository) document(workflowID string) (*models.WorkflowDocument, error) {
	document, err := gr.persistence.readDocument(workflowID)
	if err != nil {
		return nil, err
	}

	if document == nil || document.Workflow.DeletedAt != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return document, nil
}

// NodesByScope returns all nodes in the given layer/parent scope.
func (gr *GraphRepository) NodesByScope(_ context.Context, scope persistence.GraphScope) ([]*models.Node, error) {
	gr.persistence.mu.RLock()
	defer gr.persistence.mu.RUnlock()

	document, err := gr.document(scope.WorkflowID)
	if err != nil {
		return nil, err
	}

	nodes := make([]*models.Node, 0)

	for _, node := range document.Nodes {
		if scopeMatches(node, scope) {
			nodes = append(nodes, node)
		}
	}

	return nodes, nil
}

// EdgesByLayer returns all edges of one layer.
func (gr *GraphRepository) EdgesByLayer(_ context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error) {
	gr.persistence.mu.RLock()
	defer gr.persistence.mu.RUnlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return nil, err
	}

	edges := make([]*models.Edge, 0)

	for _, edge := range document.Edges {
		if edge.Layer == layer {
			edges = append(edges, edge)
		}
	}

	return edges, nil
}

// AllNodes returns every node of the workflow across all layers.
func (gr *GraphRepository) AllNodes(_ context.Context, workflowID string) ([]*models.Node, error) {
	gr.persistence.mu.RLock()
	defer gr.persistence.mu.RUnlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return nil, err
	}

	return document.Nodes, nil
}

// AllEdges returns every edge of the workflow across all layers.
func (gr *GraphRepository) AllEdges(_ context.Context, workflowID string) ([]*models.Edge, error) {
	gr.persistence.mu.RLock()
	defer gr.persistence.mu.RUnlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return nil, err
	}

	return document.Edges, nil
}

// SaveNode creates or updates a node in its workflow document.
func (gr *GraphRepository) SaveNode(_ context.Context, node *models.Node) error {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(node.WorkflowID)
	if err != nil {
		return err
	}

	replaced := false

	for i, existing := range document.Nodes {
		if existing.ID == node.ID {
			document.Nodes[i] = node
			replaced = true

			break
		}
	}

	if !replaced {
		document.Nodes = append(document.Nodes, node)
	}

	document.Workflow.UpdatedAt = time.Now().UTC()

	return gr.persistence.writeDocument(document)
}

// DeleteNode removes a node, every edge incident to it, and every
// descendant node reachable through parent chains. Deleting a node that
// no longer exists is a no-op.
func (gr *GraphRepository) DeleteNode(_ context.Context, workflowID, nodeID string) error {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return err
	}

	doomed := cascadeNodeIDs(document.Nodes, nodeID)
	if len(doomed) == 0 {
		return nil
	}

	removeGraphElements(document, doomed)
	document.Workflow.UpdatedAt = time.Now().UTC()

	return gr.persistence.writeDocument(document)
}

// cascadeNodeIDs collects a node plus all transitive descendants linked
// by parent_node_id chains.
func cascadeNodeIDs(nodes []*models.Node, rootID string) map[string]bool {
	doomed := make(map[string]bool)

	for _, node := range nodes {
		if node.ID == rootID {
			doomed[rootID] = true

			break
		}
	}

	if len(doomed) == 0 {
		return doomed
	}

	for changed := true; changed; {
		changed = false

		for _, node := range nodes {
			if doomed[node.ID] || node.ParentNodeID == nil {
				continue
			}

			if doomed[*node.ParentNodeID] {
				doomed[node.ID] = true
				changed = true
			}
		}
	}

	return doomed
}

func removeGraphElements(document *models.WorkflowDocument, doomed map[string]bool) {
	keptNodes := document.Nodes[:0]

	for _, node := range document.Nodes {
		if !doomed[node.ID] {
			keptNodes = append(keptNodes, node)
		}
	}

	document.Nodes = keptNodes

	keptEdges := document.Edges[:0]

	for _, edge := range document.Edges {
		if !doomed[edge.Source] && !doomed[edge.Target] {
			keptEdges = append(keptEdges, edge)
		}
	}

	document.Edges = keptEdges
}

// SaveEdge creates or updates an edge.
func (gr *GraphRepository) SaveEdge(_ context.Context, edge *models.Edge) error {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(edge.WorkflowID)
	if err != nil {
		return err
	}

	replaced := false

	for i, existing := range document.Edges {
		if existing.ID == edge.ID {
			document.Edges[i] = edge
			replaced = true

			break
		}
	}

	if !replaced {
		document.Edges = append(document.Edges, edge)
	}

	document.Workflow.UpdatedAt = time.Now().UTC()

	return gr.persistence.writeDocument(document)
}

// DeleteEdge removes an edge. Removing a missing edge is a no-op.
func (gr *GraphRepository) DeleteEdge(_ context.Context, workflowID, edgeID string) error {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return err
	}

	kept := document.Edges[:0]
	removed := false

	for _, edge := range document.Edges {
		if edge.ID == edgeID {
			removed = true

			continue
		}

		kept = append(kept, edge)
	}

	if !removed {
		return nil
	}

	document.Edges = kept
	document.Workflow.UpdatedAt = time.Now().UTC()

	return gr.persistence.writeDocument(document)
}

// CreateBatch inserts a set of nodes and edges in one write. Template
// expansion relies on this being all-or-nothing.
func (gr *GraphRepository) CreateBatch(_ context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(workflowID)
	if err != nil {
		return err
	}

	document.Nodes = append(document.Nodes, nodes...)
	document.Edges = append(document.Edges, edges...)
	document.Workflow.UpdatedAt = time.Now().UTC()

	return gr.persistence.writeDocument(document)
}

// ReplaceScope atomically swaps one scope's node/edge set with the
// snapshot from a batched save. The write is rejected with
// ErrVersionConflict when the caller's version is stale; on success the
// workflow version is bumped and returned.
func (gr *GraphRepository) ReplaceScope(_ context.Context, scope persistence.GraphScope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error) {
	gr.persistence.mu.Lock()
	defer gr.persistence.mu.Unlock()

	document, err := gr.document(scope.WorkflowID)
	if err != nil {
		return 0, err
	}

	if document.Workflow.Version != version {
		return 0, persistence.NewWorkflowError("ReplaceScope", scope.WorkflowID, persistence.ErrVersionConflict)
	}

	incoming := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		incoming[node.ID] = true
	}

	// Nodes that left the scope cascade like an explicit delete, so no
	// orphaned nested layers survive a batched removal.
	doomed := make(map[string]bool)

	for _, node := range document.Nodes {
		if scopeMatches(node, scope) && !incoming[node.ID] {
			for id := range cascadeNodeIDs(document.Nodes, node.ID) {
				doomed[id] = true
			}
		}
	}

	removeGraphElements(document, doomed)

	// Swap the surviving scope nodes and their layer edges for the
	// snapshot content.
	keptNodes := document.Nodes[:0]

	for _, node := range document.Nodes {
		if !scopeMatches(node, scope) {
			keptNodes = append(keptNodes, node)
		}
	}

	document.Nodes = append(keptNodes, nodes...)

	scoped := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		scoped[node.ID] = true
	}

	keptEdges := document.Edges[:0]

	for _, edge := range document.Edges {
		if edge.Layer == scope.Layer && (scoped[edge.Source] || scoped[edge.Target]) {
			continue
		}

		keptEdges = append(keptEdges, edge)
	}

	document.Edges = append(keptEdges, edges...)

	document.Workflow.Version++
	document.Workflow.UpdatedAt = time.Now().UTC()

	if err := gr.persistence.writeDocument(document); err != nil {
		return 0, err
	}

	return document.Workflow.Version, nil
}
