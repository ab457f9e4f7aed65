package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/certflow/pkg/models"
)

// NextSlot marks a node linked through its parent's Next field rather than a branch slot.
const NextSlot = -1

// Path addresses a node by the slots followed from the root: NextSlot for Next,
// otherwise the index into Branches.
type Path []int

// Position locates a node relative to the link that owns it.
type Position struct {
	Parent *models.Node // nil for the root
	Slot   int          // NextSlot or a branch index of Parent
}

// IsRoot reports whether the position is the tree root.
func (p Position) IsRoot() bool {
	return p.Parent == nil
}

// WalkFunc is called for every node reached by Walk, with the path leading to it.
type WalkFunc func(node *models.Node, path Path) error

// SkipAll stops a walk early without reporting an error.
var SkipAll = errors.New("skip everything and stop the walk")

type walkFrame struct {
	node *models.Node
	path Path
}

// Walk visits the tree depth first in pre-order: a node, then its Next chain,
// then its branches in declaration order. A node reached twice, or two nodes
// sharing an id, fail the walk with ErrMalformedTree.
func Walk(root *models.Node, fn WalkFunc) error {
	if root == nil {
		return nil
	}

	visited := make(map[*models.Node]struct{})
	ids := make(map[string]struct{})
	stack := []walkFrame{{node: root, path: Path{}}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := frame.node

		if _, seen := visited[node]; seen {
			return fmt.Errorf("%w: node %s reached twice", ErrMalformedTree, node.ID)
		}

		visited[node] = struct{}{}

		if _, seen := ids[node.ID]; seen {
			return fmt.Errorf("%w: duplicate node id %s", ErrMalformedTree, node.ID)
		}

		ids[node.ID] = struct{}{}

		err := fn(node, frame.path)
		if errors.Is(err, SkipAll) {
			return nil
		}

		if err != nil {
			return err
		}

		for i := len(node.Branches) - 1; i >= 0; i-- {
			branch := node.Branches[i]
			if branch == nil {
				return fmt.Errorf("%w: branch %d of node %s is empty", ErrMalformedTree, i, node.ID)
			}

			stack = append(stack, walkFrame{node: branch, path: appendSlot(frame.path, i)})
		}

		if node.Next != nil {
			stack = append(stack, walkFrame{node: node.Next, path: appendSlot(frame.path, NextSlot)})
		}
	}

	return nil
}

func appendSlot(path Path, slot int) Path {
	next := make(Path, len(path), len(path)+1)
	copy(next, path)

	return append(next, slot)
}

// FindNode returns the node with the given id.
func FindNode(root *models.Node, id string) (*models.Node, error) {
	node, _, err := locate(root, id)
	if err != nil {
		return nil, newTreeError("FindNode", id, err)
	}

	return node, nil
}

// FindParent returns the position of the node with the given id. The root has
// a position with a nil parent.
func FindParent(root *models.Node, id string) (Position, error) {
	_, path, err := locate(root, id)
	if err != nil {
		return Position{}, newTreeError("FindParent", id, err)
	}

	if len(path) == 0 {
		return Position{Slot: NextSlot}, nil
	}

	return Position{
		Parent: nodeAt(root, path[:len(path)-1]),
		Slot:   path[len(path)-1],
	}, nil
}

// IDs returns every node id in the tree.
func IDs(root *models.Node) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	err := Walk(root, func(node *models.Node, _ Path) error {
		ids[node.ID] = struct{}{}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// Count returns the number of nodes in the tree.
func Count(root *models.Node) (int, error) {
	ids, err := IDs(root)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

// locate finds the node with the given id and the path leading to it.
func locate(root *models.Node, id string) (*models.Node, Path, error) {
	var (
		found *models.Node
		path  Path
	)

	err := Walk(root, func(node *models.Node, p Path) error {
		if node.ID == id {
			found, path = node, p

			return SkipAll
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if found == nil {
		return nil, nil, ErrNodeNotFound
	}

	return found, path, nil
}

// nodeAt follows a path that is known to be valid.
func nodeAt(root *models.Node, path Path) *models.Node {
	node := root

	for _, slot := range path {
		if slot == NextSlot {
			node = node.Next
		} else {
			node = node.Branches[slot]
		}
	}

	return node
}

// rewrite copies every node along path and hands fn a private copy of the node
// at its end. Nodes off the path stay shared with the input tree.
func rewrite(root *models.Node, path Path, fn func(node *models.Node) error) (*models.Node, error) {
	node := shallowCopy(root)

	if len(path) == 0 {
		err := fn(node)
		if err != nil {
			return nil, err
		}

		return node, nil
	}

	slot := path[0]

	if slot == NextSlot {
		next, err := rewrite(root.Next, path[1:], fn)
		if err != nil {
			return nil, err
		}

		node.Next = next

		return node, nil
	}

	branch, err := rewrite(root.Branches[slot], path[1:], fn)
	if err != nil {
		return nil, err
	}

	node.Branches[slot] = branch

	return node, nil
}

func shallowCopy(node *models.Node) *models.Node {
	cp := *node
	if node.Branches != nil {
		cp.Branches = slices.Clone(node.Branches)
	}

	return &cp
}
