// Package client is the HTTP client of the workflow graph API. It
// satisfies the remote interfaces of the engine and the catalog, so a
// desktop session can run against a flowboard-api server with no other
// transport code.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flowboard/flowboard/pkg/graph"
	"github.com/flowboard/flowboard/pkg/models"
	"github.com/flowboard/flowboard/pkg/persistence"
)

const defaultTimeout = 30 * time.Second

// Client talks to a flowboard-api server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the API at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// apiError is the RFC 7807 problem body returned by the server.
type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// decodeError maps the server's problem responses back onto the
// persistence sentinels, so callers branch on errors.Is the same way
// they would against a local backend.
func (c *Client) decodeError(resp *http.Response) error {
	problem := &apiError{Status: resp.StatusCode}
	_ = json.NewDecoder(resp.Body).Decode(problem)

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", persistence.ErrVersionConflict, problem.Detail)
	case http.StatusNotFound:
		detail := strings.ToLower(problem.Detail)

		switch {
		case strings.Contains(detail, "node"):
			return fmt.Errorf("%w: %s", persistence.ErrNodeNotFound, problem.Detail)
		case strings.Contains(detail, "edge"):
			return fmt.Errorf("%w: %s", persistence.ErrEdgeNotFound, problem.Detail)
		case strings.Contains(detail, "template"):
			return fmt.Errorf("%w: %s", persistence.ErrTemplateNotFound, problem.Detail)
		default:
			return fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, problem.Detail)
		}
	}

	return problem
}

// ListWorkflows retrieves a page of workflows.
func (c *Client) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	if opts.OwnerID != "" {
		query.Set("owner_id", opts.OwnerID)
	}

	if opts.AccessLevel != nil {
		query.Set("access_level", string(*opts.AccessLevel))
	}

	if opts.SortBy != "" {
		query.Set("sort_by", opts.SortBy)
	}

	if opts.SortOrder != "" {
		query.Set("sort_order", opts.SortOrder)
	}

	path := "/workflows"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var listing struct {
		Workflows   []*models.Workflow `json:"workflows"`
		TotalCount  int64              `json:"total_count"`
		HasNextPage bool               `json:"has_next_page"`
	}

	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, err
	}

	return &persistence.WorkflowListResult{
		Workflows:   listing.Workflows,
		TotalCount:  listing.TotalCount,
		HasNextPage: listing.HasNextPage,
	}, nil
}

// CreateWorkflow creates a workflow document.
func (c *Client) CreateWorkflow(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	body := map[string]any{
		"name":        workflow.Name,
		"description": workflow.Description,
		"owner":       workflow.Owner,
	}

	if workflow.AccessLevel != "" {
		body["access_level"] = workflow.AccessLevel
	}

	created := &models.Workflow{}
	if err := c.do(ctx, http.MethodPost, "/workflows", body, created); err != nil {
		return nil, err
	}

	return created, nil
}

// GetWorkflow fetches one workflow document.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	if err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// DeleteWorkflow deletes a workflow and everything it owns.
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workflows/"+url.PathEscape(id), nil, nil)
}

// ExportWorkflow downloads the full document for backup or sharing.
func (c *Client) ExportWorkflow(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	document := &models.WorkflowDocument{}
	if err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id)+"/export", nil, document); err != nil {
		return nil, err
	}

	return document, nil
}

// FetchNodes loads one layer view's nodes.
func (c *Client) FetchNodes(ctx context.Context, workflowID string, layer models.Layer, parentNodeID *string) ([]*models.Node, error) {
	query := url.Values{"layer": {string(layer)}}
	if parentNodeID != nil {
		query.Set("parent_node_id", *parentNodeID)
	}

	var listing struct {
		Nodes []*models.Node `json:"nodes"`
	}

	path := "/workflows/" + url.PathEscape(workflowID) + "/nodes?" + query.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, err
	}

	return listing.Nodes, nil
}

// FetchEdges loads one layer's edges.
func (c *Client) FetchEdges(ctx context.Context, workflowID string, layer models.Layer) ([]*models.Edge, error) {
	var listing struct {
		Edges []*models.Edge `json:"edges"`
	}

	path := "/workflows/" + url.PathEscape(workflowID) + "/edges?layer=" + url.QueryEscape(string(layer))
	if err := c.do(ctx, http.MethodGet, path, nil, &listing); err != nil {
		return nil, err
	}

	return listing.Edges, nil
}

// CreateNode stores one node outside the batched flow.
func (c *Client) CreateNode(ctx context.Context, workflowID string, nodeType models.NodeType, layer models.Layer, parentNodeID *string, position models.Position, payload map[string]any) (*models.Node, error) {
	body := map[string]any{
		"node_type": nodeType,
		"layer":     layer,
		"position":  position,
		"data":      payload,
	}

	if parentNodeID != nil {
		body["parent_node_id"] = *parentNodeID
	}

	node := &models.Node{}

	path := "/workflows/" + url.PathEscape(workflowID) + "/nodes"
	if err := c.do(ctx, http.MethodPost, path, body, node); err != nil {
		return nil, err
	}

	return node, nil
}

// UpdateNode patches a node's position and payload.
func (c *Client) UpdateNode(ctx context.Context, workflowID, nodeID string, position *models.Position, payload map[string]any) (*models.Node, error) {
	body := map[string]any{}

	if position != nil {
		body["position"] = position
	}

	if payload != nil {
		body["data"] = payload
	}

	node := &models.Node{}

	path := "/workflows/" + url.PathEscape(workflowID) + "/nodes/" + url.PathEscape(nodeID)
	if err := c.do(ctx, http.MethodPatch, path, body, node); err != nil {
		return nil, err
	}

	return node, nil
}

// DeleteNode removes a node, its incident edges and any nested
// sub-graphs under it.
func (c *Client) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	path := "/workflows/" + url.PathEscape(workflowID) + "/nodes/" + url.PathEscape(nodeID)

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateEdge connects two nodes on their shared layer.
func (c *Client) CreateEdge(ctx context.Context, workflowID, source, target string) (*models.Edge, error) {
	edge := &models.Edge{}

	path := "/workflows/" + url.PathEscape(workflowID) + "/edges"
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"source": source, "target": target}, edge); err != nil {
		return nil, err
	}

	return edge, nil
}

// DeleteEdge removes one edge.
func (c *Client) DeleteEdge(ctx context.Context, workflowID, edgeID string) error {
	path := "/workflows/" + url.PathEscape(workflowID) + "/edges/" + url.PathEscape(edgeID)

	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SaveScope writes one layer view's snapshot through the batch-save
// endpoint. A stale version surfaces as persistence.ErrVersionConflict.
func (c *Client) SaveScope(ctx context.Context, scope graph.Scope, version int64, nodes []*models.Node, edges []*models.Edge) (int64, error) {
	if nodes == nil {
		nodes = []*models.Node{}
	}

	if edges == nil {
		edges = []*models.Edge{}
	}

	body := map[string]any{
		"layer":   scope.Layer,
		"version": version,
		"nodes":   nodes,
		"edges":   edges,
	}

	if scope.ParentNodeID != nil {
		body["parent_node_id"] = *scope.ParentNodeID
	}

	var saved struct {
		Version int64 `json:"version"`
	}

	path := "/workflows/" + url.PathEscape(scope.WorkflowID) + "/batch-save"
	if err := c.do(ctx, http.MethodPost, path, body, &saved); err != nil {
		return 0, err
	}

	return saved.Version, nil
}

// CreateBatch stores a pre-built cluster of nodes and edges.
func (c *Client) CreateBatch(ctx context.Context, workflowID string, nodes []*models.Node, edges []*models.Edge) error {
	body := map[string]any{
		"nodes": nodes,
		"edges": edges,
	}

	path := "/workflows/" + url.PathEscape(workflowID) + "/batch"

	return c.do(ctx, http.MethodPost, path, body, nil)
}

// GetTemplate fetches one action template.
func (c *Client) GetTemplate(ctx context.Context, id string) (*models.ActionTemplate, error) {
	template := &models.ActionTemplate{}
	if err := c.do(ctx, http.MethodGet, "/action-templates/"+url.PathEscape(id), nil, template); err != nil {
		return nil, err
	}

	return template, nil
}

// ListTemplates fetches the action template catalog.
func (c *Client) ListTemplates(ctx context.Context) ([]*models.ActionTemplate, error) {
	var listing struct {
		Templates []*models.ActionTemplate `json:"templates"`
	}

	if err := c.do(ctx, http.MethodGet, "/action-templates/", nil, &listing); err != nil {
		return nil, err
	}

	return listing.Templates, nil
}
