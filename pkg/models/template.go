package models

// ResourceDescriptor names one resource required by an action template.
type ResourceDescriptor struct {
	Name         string `json:"name"          validate:"required"`
	ResourceType string `json:"resource_type,omitempty"`
}

// ActionTemplate is a read-only catalog entry that expands into a
// connected cluster of one ACTION node plus its resource and deliverable
// nodes. The engine only ever reads templates.
type ActionTemplate struct {
	ID           string               `json:"id"          validate:"required"`
	ActionName   string               `json:"action_name" validate:"required"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	Resources    []ResourceDescriptor `json:"resources"`
	Deliverables []string             `json:"deliverables"`
}
