package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/certflow/pkg/models"
	"github.com/google/uuid"
)

// IDGenerator produces fresh node ids.
type IDGenerator func() string

// Editor applies structural edits to workflow trees. Every edit returns a new
// tree that shares untouched subtrees with its input; the input is never mutated.
// A malformed input tree is rejected with ErrMalformedTree before any lookup.
type Editor struct {
	newID IDGenerator
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithIDGenerator sets the generator used for placeholder nodes of new branches.
func WithIDGenerator(generator IDGenerator) EditorOption {
	return func(e *Editor) {
		e.newID = generator
	}
}

// NewEditor creates an editor. Placeholder ids default to random UUIDs.
func NewEditor(opts ...EditorOption) *Editor {
	editor := &Editor{newID: uuid.NewString}

	for _, opt := range opts {
		opt(editor)
	}

	return editor
}

// AddNode inserts newNode right after the node previousNodeID, taking over its
// successor. Ids of newNode's subtree must not exist in the tree yet.
func (e *Editor) AddNode(root *models.Node, previousNodeID string, newNode *models.Node) (*models.Node, error) {
	const op = "AddNode"

	if newNode == nil {
		return nil, newTreeError(op, "", ErrInvalidNode)
	}

	err := CheckIntact(op, root)
	if err != nil {
		return nil, err
	}

	// The inserted node's own successor is replaced by the one it takes over.
	detached := *newNode
	detached.Next = nil

	err = checkInsertable(&detached)
	if err != nil {
		return nil, newTreeError(op, detached.ID, err)
	}

	inserted := detached.Clone()

	previous, path, err := locate(root, previousNodeID)
	if err != nil {
		return nil, newTreeError(op, previousNodeID, err)
	}

	if previous.IsBranch() {
		return nil, newTreeError(op, previousNodeID, ErrBranchTerminal)
	}

	if inserted.IsBranch() && previous.Next != nil {
		return nil, newTreeError(op, inserted.ID, fmt.Errorf("%w: %s already has a successor", ErrBranchTerminal, previousNodeID))
	}

	err = checkFreshIDs(root, inserted)
	if err != nil {
		return nil, newTreeError(op, inserted.ID, err)
	}

	return rewrite(root, path, func(node *models.Node) error {
		inserted.Next = node.Next
		node.Next = inserted

		return nil
	})
}

// UpdateNode replaces the node sharing node.ID, keeping the existing Next and
// Branches links. Topology only changes through the other edits.
func (e *Editor) UpdateNode(root *models.Node, node *models.Node) (*models.Node, error) {
	const op = "UpdateNode"

	if node == nil {
		return nil, newTreeError(op, "", ErrInvalidNode)
	}

	err := CheckIntact(op, root)
	if err != nil {
		return nil, err
	}

	existing, path, err := locate(root, node.ID)
	if err != nil {
		return nil, newTreeError(op, node.ID, err)
	}

	if existing.Kind != node.Kind {
		return nil, newTreeError(op, node.ID, fmt.Errorf("%w: %s to %s", ErrKindMismatch, existing.Kind, node.Kind))
	}

	err = validateReplacement(node)
	if err != nil {
		return nil, newTreeError(op, node.ID, err)
	}

	detached := *node
	detached.Next, detached.Branches = nil, nil
	replacement := detached.Clone()

	return rewrite(root, path, func(target *models.Node) error {
		next, branches := target.Next, target.Branches
		*target = *replacement
		target.Next = next
		target.Branches = branches

		return nil
	})
}

// RemoveNode unlinks a node, pointing its predecessor at the node's successor.
// Removing a branch node drops every node nested in its branches.
func (e *Editor) RemoveNode(root *models.Node, nodeID string) (*models.Node, error) {
	const op = "RemoveNode"

	err := CheckIntact(op, root)
	if err != nil {
		return nil, err
	}

	target, path, err := locate(root, nodeID)
	if err != nil {
		return nil, newTreeError(op, nodeID, err)
	}

	if len(path) == 0 || target.IsStart() {
		return nil, newTreeError(op, nodeID, ErrCannotRemoveStart)
	}

	slot := path[len(path)-1]

	if slot != NextSlot && target.Next == nil {
		return nil, newTreeError(op, nodeID, ErrEmptyBranch)
	}

	return rewrite(root, path[:len(path)-1], func(parent *models.Node) error {
		if slot == NextSlot {
			parent.Next = target.Next
		} else {
			parent.Branches[slot] = target.Next
		}

		return nil
	})
}

// AddBranch appends a branch holding a single placeholder node to a branch node.
func (e *Editor) AddBranch(root *models.Node, branchNodeID string) (*models.Node, error) {
	const op = "AddBranch"

	err := CheckIntact(op, root)
	if err != nil {
		return nil, err
	}

	branchNode, path, err := locate(root, branchNodeID)
	if err != nil {
		return nil, newTreeError(op, branchNodeID, err)
	}

	if !branchNode.IsBranch() {
		return nil, newTreeError(op, branchNodeID, ErrNotABranchNode)
	}

	placeholder := models.NewPlaceholderNode(e.newID())

	err = checkFreshIDs(root, placeholder)
	if err != nil {
		return nil, newTreeError(op, placeholder.ID, err)
	}

	return rewrite(root, path, func(node *models.Node) error {
		node.Branches = append(node.Branches, placeholder)

		return nil
	})
}

// RemoveBranch drops the branch at index, with its whole subtree. A branch node
// is never left with fewer than two branches.
func (e *Editor) RemoveBranch(root *models.Node, branchNodeID string, index int) (*models.Node, error) {
	const op = "RemoveBranch"

	err := CheckIntact(op, root)
	if err != nil {
		return nil, err
	}

	branchNode, path, err := locate(root, branchNodeID)
	if err != nil {
		return nil, newTreeError(op, branchNodeID, err)
	}

	if !branchNode.IsBranch() {
		return nil, newTreeError(op, branchNodeID, ErrNotABranchNode)
	}

	if index < 0 || index >= len(branchNode.Branches) {
		return nil, newTreeError(op, branchNodeID, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(branchNode.Branches)))
	}

	if len(branchNode.Branches)-1 < 2 {
		return nil, newTreeError(op, branchNodeID, ErrMinimumBranchCount)
	}

	return rewrite(root, path, func(node *models.Node) error {
		branches := make([]*models.Node, 0, len(node.Branches)-1)
		branches = append(branches, node.Branches[:index]...)
		node.Branches = append(branches, node.Branches[index+1:]...)

		return nil
	})
}

// checkInsertable validates a node about to be linked into a tree.
func checkInsertable(node *models.Node) error {
	if node.IsStart() {
		return fmt.Errorf("%w: a tree holds a single start node", ErrInvalidNode)
	}

	err := Walk(node, func(n *models.Node, _ Path) error {
		return validateInserted(n)
	})
	if err != nil && !errors.Is(err, ErrInvalidNode) {
		return fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}

	return err
}

func validateInserted(node *models.Node) error {
	if node.IsStart() {
		return fmt.Errorf("%w: start node %s cannot be nested", ErrInvalidNode, node.ID)
	}

	err := validateShape(node)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}

	return ValidateConfig(node)
}

// validateReplacement checks an updated node's payload. Links are ignored.
func validateReplacement(node *models.Node) error {
	if node.ID == "" {
		return ErrInvalidNode
	}

	switch node.Kind {
	case models.NodeKindStart:
		if node.Start == nil {
			return fmt.Errorf("%w: start node without trigger configuration", ErrInvalidNode)
		}
	case models.NodeKindAction:
		if node.Action == nil || node.Action.Type == "" {
			return fmt.Errorf("%w: action node without action type", ErrInvalidNode)
		}
	case models.NodeKindBranch:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, node.Kind)
	}

	return ValidateConfig(node)
}

// checkFreshIDs fails when any id of the subtree already exists in the tree.
func checkFreshIDs(root *models.Node, subtree *models.Node) error {
	existing, err := IDs(root)
	if err != nil {
		return err
	}

	return Walk(subtree, func(node *models.Node, _ Path) error {
		if _, taken := existing[node.ID]; taken {
			return fmt.Errorf("%w: %s", ErrDuplicateID, node.ID)
		}

		return nil
	})
}
