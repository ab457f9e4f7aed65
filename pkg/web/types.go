// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/certflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
}

// UpdateWorkflowRequest represents the request body for updating the base info
// of a workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string `json:"description,omitempty"`
}

// AddNodeRequest represents the request body for inserting a node into the draft.
type AddNodeRequest struct {
	PreviousNodeID string       `json:"previous_node_id" validate:"required"`
	Node           *models.Node `json:"node"             validate:"required"`
}

// UpdateNodeRequest represents the request body for replacing a node's payload.
// The node id comes from the path.
type UpdateNodeRequest struct {
	Node *models.Node `json:"node" validate:"required"`
}

// OutputNodeResponse describes an upstream node and the outputs a descendant
// can reference.
type OutputNodeResponse struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Outputs []OutputOption `json:"outputs"`
}

// OutputOption is a selectable reference, written as "<nodeID>#<outputName>".
type OutputOption struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	Type      string `json:"type"`
}

// TransformOutputNodes maps upstream nodes to the output options of category.
func TransformOutputNodes(nodes []*models.Node, category string) []OutputNodeResponse {
	response := make([]OutputNodeResponse, 0, len(nodes))

	for _, node := range nodes {
		options := make([]OutputOption, 0, len(node.Output))

		for _, output := range node.Output {
			if output.Type != category {
				continue
			}

			options = append(options, OutputOption{
				Reference: node.ID + "#" + output.Name,
				Name:      output.Name,
				Label:     output.Label,
				Type:      output.Type,
			})
		}

		response = append(response, OutputNodeResponse{
			ID:      node.ID,
			Name:    node.Name,
			Type:    node.ActionType(),
			Outputs: options,
		})
	}

	return response
}
