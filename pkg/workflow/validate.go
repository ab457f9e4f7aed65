package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/dukex/certflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

var validate = NewValidator()

// NewValidator returns a validator that knows the cronexpr tag used by start
// node configurations.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.RegisterValidation("cronexpr", func(fl validator.FieldLevel) bool {
		expression := fl.Field().String()
		if expression == "" {
			return true
		}

		_, err := models.ParseCron(expression)

		return err == nil
	})
	if err != nil {
		panic(fmt.Errorf("failed to register cron validation: %w", err))
	}

	return v
}

// Decode parses a serialized tree and checks it at the ingestion boundary, so
// the engine only ever handles well-formed trees.
func Decode(data []byte) (*models.Node, error) {
	var root models.Node

	err := json.Unmarshal(data, &root)
	if err != nil {
		return nil, newTreeError("Decode", "", fmt.Errorf("%w: %w", ErrMalformedTree, err))
	}

	err = Validate(&root)
	if err != nil {
		return nil, err
	}

	return &root, nil
}

// Validate checks the tree invariants: a start root, unique ids, no cycles,
// branch nodes with at least two non-empty branches, and well-formed payloads.
func Validate(root *models.Node) error {
	err := validateTree(root)
	if err != nil {
		return newTreeError("Validate", "", err)
	}

	return nil
}

// CheckIntact validates a tree handed to an edit or loaded from storage. Any
// violation is reported as ErrMalformedTree.
func CheckIntact(op string, root *models.Node) error {
	err := validateTree(root)
	if err != nil {
		return newTreeError(op, "", corrupted(err))
	}

	return nil
}

// DecodeStored decodes a persisted tree; unlike Decode every failure reads as
// stored data corruption.
func DecodeStored(data []byte) (*models.Node, error) {
	root, err := Decode(data)
	if err != nil {
		return nil, corrupted(err)
	}

	return root, nil
}

// DecodeWorkflow decodes a persisted workflow document and checks its content
// and draft trees.
func DecodeWorkflow(data []byte) (*models.Workflow, error) {
	var stored models.Workflow

	err := json.Unmarshal(data, &stored)
	if err != nil {
		return nil, newTreeError("Decode", "", corrupted(err))
	}

	for _, root := range []*models.Node{stored.Content, stored.Draft} {
		if root == nil {
			continue
		}

		err = CheckIntact("Decode", root)
		if err != nil {
			return nil, err
		}
	}

	return &stored, nil
}

func validateTree(root *models.Node) error {
	if root == nil {
		return fmt.Errorf("%w: empty tree", ErrInvalidStartNode)
	}

	if !root.IsStart() {
		return fmt.Errorf("%w: root %s is a %s node", ErrInvalidStartNode, root.ID, root.Kind)
	}

	return Walk(root, func(node *models.Node, path Path) error {
		if len(path) > 0 && node.IsStart() {
			return fmt.Errorf("%w: start node %s is not the root", ErrMalformedTree, node.ID)
		}

		err := validateShape(node)
		if err != nil {
			return err
		}

		return ValidateConfig(node)
	})
}

// validateShape checks that a node's payload and links match its kind.
func validateShape(node *models.Node) error {
	if node.ID == "" {
		return fmt.Errorf("%w: node without id", ErrMalformedTree)
	}

	switch node.Kind {
	case models.NodeKindStart:
		if node.Start == nil {
			return fmt.Errorf("%w: start node %s has no trigger configuration", ErrInvalidStartNode, node.ID)
		}

		if node.Action != nil || len(node.Branches) > 0 {
			return fmt.Errorf("%w: start node %s carries action payload or branches", ErrMalformedTree, node.ID)
		}
	case models.NodeKindAction:
		if node.Action == nil || node.Action.Type == "" {
			return fmt.Errorf("%w: action node %s has no action type", ErrMalformedTree, node.ID)
		}

		if node.Start != nil || len(node.Branches) > 0 {
			return fmt.Errorf("%w: action node %s carries start payload or branches", ErrMalformedTree, node.ID)
		}
	case models.NodeKindBranch:
		if node.Next != nil {
			return fmt.Errorf("%w: %w: %s", ErrMalformedTree, ErrBranchTerminal, node.ID)
		}

		if len(node.Branches) < 2 {
			return fmt.Errorf("%w: %w: %s has %d", ErrMalformedTree, ErrMinimumBranchCount, node.ID, len(node.Branches))
		}

		if node.Start != nil || node.Action != nil {
			return fmt.Errorf("%w: branch node %s carries a payload", ErrMalformedTree, node.ID)
		}
	default:
		return fmt.Errorf("%w: node %s has unknown kind %q", ErrMalformedTree, node.ID, node.Kind)
	}

	return nil
}

// ValidateConfig checks the parts of a node payload the engine relies on: the
// start node trigger and the declared outputs.
func ValidateConfig(node *models.Node) error {
	if node.IsStart() && node.Start != nil {
		err := validate.Struct(node.Start)
		if err != nil {
			return fmt.Errorf("%w: start node %s: %w", ErrInvalidConfig, node.ID, err)
		}
	}

	for i := range node.Output {
		err := validate.Struct(node.Output[i])
		if err != nil {
			return fmt.Errorf("%w: output %d of node %s: %w", ErrInvalidConfig, i, node.ID, err)
		}
	}

	return nil
}
