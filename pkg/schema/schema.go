// Package schema validates node payloads against per-type JSON schemas
// at the API ingress, before a payload reaches the stores.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowboard/flowboard/pkg/models"
)

// ErrUnknownNodeType is returned for payloads of a type outside the
// closed node type set.
var ErrUnknownNodeType = errors.New("unknown node type")

func stringProperty() map[string]any {
	return map[string]any{"type": "string"}
}

func stringListProperty() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func payloadSchema(required []string, properties map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"required":             required,
		"properties":           properties,
		"additionalProperties": false,
	}
}

// Payload shapes mirror the concrete NodeData types. Every labeled type
// requires "label"; sticky notes carry free text instead.
var payloadSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeIssue: payloadSchema([]string{"label"}, map[string]any{
		"label":       stringProperty(),
		"description": stringProperty(),
		"severity":    stringProperty(),
		"status":      stringProperty(),
	}),
	models.NodeTypeAction: payloadSchema([]string{"label"}, map[string]any{
		"label":            stringProperty(),
		"description":      stringProperty(),
		"assignee_ids":     stringListProperty(),
		"status":           stringProperty(),
		"from_template_id": stringProperty(),
	}),
	models.NodeTypeResource: payloadSchema([]string{"label"}, map[string]any{
		"label":         stringProperty(),
		"description":   stringProperty(),
		"resource_type": stringProperty(),
		"software_ref":  stringProperty(),
	}),
	models.NodeTypeDeliverable: payloadSchema([]string{"label"}, map[string]any{
		"label":       stringProperty(),
		"description": stringProperty(),
		"due_date":    stringProperty(),
		"status":      stringProperty(),
	}),
	models.NodeTypeStickyNote: payloadSchema([]string{"text"}, map[string]any{
		"text":       stringProperty(),
		"color_hint": stringProperty(),
	}),
	models.NodeTypeTask: payloadSchema([]string{"label"}, map[string]any{
		"label":        stringProperty(),
		"description":  stringProperty(),
		"assignee_ids": stringListProperty(),
		"status":       stringProperty(),
		"checklist":    stringListProperty(),
	}),
	models.NodeTypeBlocker: payloadSchema([]string{"label"}, map[string]any{
		"label":             stringProperty(),
		"description":       stringProperty(),
		"blocking_node_ids": stringListProperty(),
		"resolved":          map[string]any{"type": "boolean"},
	}),
}

// Validator holds the compiled per-type payload schemas.
type Validator struct {
	schemas map[models.NodeType]*gojsonschema.Schema
}

// NewValidator compiles the payload schemas for the closed node type
// set.
func NewValidator() (*Validator, error) {
	schemas := make(map[models.NodeType]*gojsonschema.Schema, len(payloadSchemas))

	for nodeType, definition := range payloadSchemas {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(definition))
		if err != nil {
			return nil, fmt.Errorf("compile %s payload schema: %w", nodeType, err)
		}

		schemas[nodeType] = compiled
	}

	return &Validator{schemas: schemas}, nil
}

// ValidatePayload checks a raw payload against the schema of its node
// type.
func (v *Validator) ValidatePayload(nodeType models.NodeType, payload map[string]any) error {
	compiled, ok := v.schemas[nodeType]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return err
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("invalid %s payload: %s", nodeType, strings.Join(descriptions, "; "))
	}

	return nil
}
