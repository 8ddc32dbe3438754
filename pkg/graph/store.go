package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/flowboard/flowboard/pkg/models"
)

// Scope identifies the node/edge set of one layer view.
type Scope struct {
	WorkflowID   string
	Layer        models.Layer
	ParentNodeID *string
}

// Matches reports whether a node belongs to the scope.
func (s Scope) Matches(node *models.Node) bool {
	if node.Layer != s.Layer {
		return false
	}

	if s.ParentNodeID == nil {
		return node.ParentNodeID == nil
	}

	return node.ParentNodeID != nil && *node.ParentNodeID == *s.ParentNodeID
}

// Source fetches a scope's graph from the persistence collaborator.
type Source interface {
	FetchNodes(ctx context.Context, workflowID string, layer models.Layer, parentNodeID *string) ([]*models.Node, error)
	FetchEdges(ctx context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error)
}

// Store is the in-memory authoritative node/edge set for the currently
// viewed layer. Mutations apply optimistically and synchronously; the
// persistence synchronizer observes dirtiness and writes in the
// background.
type Store struct {
	mu     sync.Mutex
	source Source

	scope  Scope
	loaded bool

	nodes map[string]*models.Node
	edges map[string]*models.Edge

	dirty bool
	seq   uint64

	onMutate func()
}

// NewStore creates an empty store reading from the given source.
func NewStore(source Source) *Store {
	return &Store{
		source: source,
		nodes:  make(map[string]*models.Node),
		edges:  make(map[string]*models.Edge),
	}
}

// SetObserver registers a callback invoked after every mutation. The
// callback runs outside the store lock.
func (s *Store) SetObserver(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onMutate = fn
}

// Load fetches the scope's nodes, then the layer's edges, keeping only
// edges whose both endpoints are in the loaded node set. The filter
// guarantees the cross-layer invariant locally even when the remote
// store is inconsistent. Loading discards any previous scope state.
func (s *Store) Load(ctx context.Context, scope Scope) error {
	nodes, err := s.source.FetchNodes(ctx, scope.WorkflowID, scope.Layer, scope.ParentNodeID)
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}

	edges, err := s.source.FetchEdges(ctx, scope.WorkflowID, scope.Layer)
	if err != nil {
		return fmt.Errorf("failed to load edges: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scope = scope
	s.loaded = true
	s.dirty = false
	s.nodes = make(map[string]*models.Node, len(nodes))
	s.edges = make(map[string]*models.Edge)

	for _, node := range nodes {
		s.nodes[node.ID] = node.Clone()
	}

	for _, edge := range edges {
		source, sourceOK := s.nodes[edge.Source]
		target, targetOK := s.nodes[edge.Target]

		if !sourceOK || !targetOK {
			continue
		}

		if edge.Layer != scope.Layer || source.Layer != edge.Layer || target.Layer != edge.Layer {
			continue
		}

		s.edges[edge.ID] = edge.Clone()
	}

	return nil
}

// Scope returns the currently loaded scope.
func (s *Store) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scope
}

// Loaded reports whether a scope has been loaded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

// Nodes returns the current node set as independent copies, sorted by
// id for deterministic iteration.
func (s *Store) Nodes() []*models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneNodes(s.nodes)
}

// Edges returns the current edge set as independent copies, sorted by
// id.
func (s *Store) Edges() []*models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneEdges(s.edges)
}

// Node returns one node by id.
func (s *Store) Node(id string) (*models.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}

	return node.Clone(), true
}

// CreateNode adds a node of the given type at the given position to the
// loaded scope. A nil payload yields the type's zero payload.
func (s *Store) CreateNode(nodeType models.NodeType, position models.Position, data models.NodeData) (*models.Node, error) {
	s.mu.Lock()

	if !s.loaded {
		s.mu.Unlock()

		return nil, ErrNotLoaded
	}

	if !nodeType.Valid() {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %q", ErrInvalidNodeType, nodeType)
	}

	if data == nil {
		data = models.NewNodeData(nodeType)
	} else if data.Kind() != nodeType {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %s payload for %s node", ErrPayloadMismatch, data.Kind(), nodeType)
	}

	node := &models.Node{
		ID:           uuid.New().String(),
		WorkflowID:   s.scope.WorkflowID,
		Type:         nodeType,
		Layer:        s.scope.Layer,
		ParentNodeID: cloneParent(s.scope.ParentNodeID),
		Position:     position,
		Data:         data,
	}

	s.nodes[node.ID] = node
	s.markDirtyLocked()

	result := node.Clone()
	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)

	return result, nil
}

// UpdateNode merges a partial payload into an existing node's data.
func (s *Store) UpdateNode(id string, patch map[string]any) (*models.Node, error) {
	s.mu.Lock()

	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	merged, err := models.MergeNodeData(node.Data, patch)
	if err != nil {
		s.mu.Unlock()

		return nil, err
	}

	node.Data = merged
	s.markDirtyLocked()

	result := node.Clone()
	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)

	return result, nil
}

// MoveNode updates a node's canvas position.
func (s *Store) MoveNode(id string, position models.Position) (*models.Node, error) {
	s.mu.Lock()

	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	node.Position = position
	s.markDirtyLocked()

	result := node.Clone()
	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)

	return result, nil
}

// DeleteNode removes a node and every edge incident to it. Deleting an
// id that is already gone is a no-op, not an error: stale UI events are
// expected.
func (s *Store) DeleteNode(id string) {
	s.mu.Lock()

	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()

		return
	}

	delete(s.nodes, id)

	for edgeID, edge := range s.edges {
		if edge.Touches(id) {
			delete(s.edges, edgeID)
		}
	}

	s.markDirtyLocked()

	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)
}

// Connect creates a directed edge between two loaded nodes.
func (s *Store) Connect(sourceID, targetID string) (*models.Edge, error) {
	s.mu.Lock()

	if !s.loaded {
		s.mu.Unlock()

		return nil, ErrNotLoaded
	}

	source, sourceOK := s.nodes[sourceID]
	if !sourceOK {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: source %s", ErrEndpointMissing, sourceID)
	}

	target, targetOK := s.nodes[targetID]
	if !targetOK {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: target %s", ErrEndpointMissing, targetID)
	}

	// An edge never crosses layers and always belongs to the viewed
	// scope.
	if source.Layer != target.Layer || source.Layer != s.scope.Layer {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %s -> %s", ErrCrossLayerEdge, sourceID, targetID)
	}

	edge := &models.Edge{
		ID:         uuid.New().String(),
		WorkflowID: s.scope.WorkflowID,
		Source:     sourceID,
		Target:     targetID,
		Layer:      s.scope.Layer,
	}

	s.edges[edge.ID] = edge
	s.markDirtyLocked()

	result := edge.Clone()
	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)

	return result, nil
}

// ApplyBatch adds an already-persisted node/edge cluster to the loaded
// scope as one mutation. Template expansion uses this after its remote
// batch write succeeds, so the synchronizer sees a single transition.
func (s *Store) ApplyBatch(nodes []*models.Node, edges []*models.Edge) error {
	s.mu.Lock()

	if !s.loaded {
		s.mu.Unlock()

		return ErrNotLoaded
	}

	for _, node := range nodes {
		s.nodes[node.ID] = node.Clone()
	}

	for _, edge := range edges {
		s.edges[edge.ID] = edge.Clone()
	}

	s.markDirtyLocked()

	observer := s.onMutate
	s.mu.Unlock()

	notify(observer)

	return nil
}

// Snapshot returns independent copies of the full current node/edge set
// together with the mutation sequence the snapshot was taken at.
func (s *Store) Snapshot() ([]*models.Node, []*models.Edge, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneNodes(s.nodes), cloneEdges(s.edges), s.seq
}

// Dirty reports whether unsaved mutations exist.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

// AcknowledgeSave clears the dirty flag if no mutation happened after
// the snapshot at the given sequence was taken.
func (s *Store) AcknowledgeSave(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == seq {
		s.dirty = false
	}
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	s.seq++
}

func notify(observer func()) {
	if observer != nil {
		observer()
	}
}

func cloneParent(parent *string) *string {
	if parent == nil {
		return nil
	}

	clone := *parent

	return &clone
}

func cloneNodes(nodes map[string]*models.Node) []*models.Node {
	result := make([]*models.Node, 0, len(nodes))

	for _, node := range nodes {
		result = append(result, node.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

func cloneEdges(edges map[string]*models.Edge) []*models.Edge {
	result := make([]*models.Edge, 0, len(edges))

	for _, edge := range edges {
		result = append(result, edge.Clone())
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}
