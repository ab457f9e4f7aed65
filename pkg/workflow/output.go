package workflow

import (
	"github.com/dukex/certflow/pkg/models"
)

// GetWorkflowOutputBeforeID returns the strict ancestors of nodeID, ordered
// from the root to the nearest, that declare an output of the given category.
// Siblings in other branches and descendants are never returned: data flows
// only along the control-flow path.
func GetWorkflowOutputBeforeID(root *models.Node, nodeID, category string) ([]*models.Node, error) {
	const op = "GetWorkflowOutputBeforeID"

	if !root.IsStart() {
		return nil, newTreeError(op, nodeID, ErrUnreachable)
	}

	_, path, err := locate(root, nodeID)
	if err != nil {
		return nil, newTreeError(op, nodeID, err)
	}

	matches := make([]*models.Node, 0)

	for _, ancestor := range ancestorsAlong(root, path) {
		if ancestor.HasOutput(category) {
			matches = append(matches, ancestor)
		}
	}

	return matches, nil
}

func ancestorsAlong(root *models.Node, path Path) []*models.Node {
	ancestors := make([]*models.Node, 0, len(path))
	node := root

	for _, slot := range path {
		ancestors = append(ancestors, node)
		node = nodeAt(node, Path{slot})
	}

	return ancestors
}
