// Package workflow implements the workflow tree engine: traversal, structural edits and derived queries.
package workflow

import (
	"errors"
	"fmt"
)

// Tree engine errors. Every failed edit leaves the input tree untouched.
var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrDuplicateID        = errors.New("duplicate node id")
	ErrCannotRemoveStart  = errors.New("start node cannot be removed")
	ErrNotABranchNode     = errors.New("node is not a branch node")
	ErrIndexOutOfRange    = errors.New("branch index out of range")
	ErrMinimumBranchCount = errors.New("branch node needs at least two branches")
	ErrUnreachable        = errors.New("node is not reachable from the start node")
	ErrInvalidStartNode   = errors.New("invalid start node")
	ErrMalformedTree      = errors.New("malformed workflow tree")

	ErrInvalidNode    = errors.New("invalid node")
	ErrKindMismatch   = errors.New("node kind cannot be changed")
	ErrBranchTerminal = errors.New("branch node cannot have a successor")
	ErrEmptyBranch    = errors.New("branch would become empty")
	ErrInvalidConfig  = errors.New("invalid node configuration")
)

// TreeError wraps a tree engine error with the operation and node involved.
type TreeError struct {
	Op     string // Operation name (e.g. "AddNode", "RemoveBranch")
	NodeID string // Node the operation was addressing, if any
	Err    error  // Underlying error
}

func (e *TreeError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.NodeID, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

func (e *TreeError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// corruptionError reports an invariant violation found in a tree the engine did
// not build itself. It matches ErrMalformedTree and hides request-level causes
// such as ErrInvalidConfig.
type corruptionError struct {
	cause error
}

func (e *corruptionError) Error() string {
	if errors.Is(e.cause, ErrMalformedTree) {
		return e.cause.Error()
	}

	return fmt.Sprintf("%v: %v", ErrMalformedTree, e.cause)
}

func (e *corruptionError) Is(target error) bool {
	switch target {
	case ErrMalformedTree:
		return true
	case ErrInvalidStartNode, ErrUnreachable:
		return errors.Is(e.cause, target)
	default:
		return false
	}
}

func corrupted(err error) error {
	return &corruptionError{cause: err}
}

func newTreeError(op, nodeID string, err error) *TreeError {
	return &TreeError{Op: op, NodeID: nodeID, Err: err}
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsStructuralError checks if an error is a rejected edit caused by the request
// rather than by a corrupted tree.
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrCannotRemoveStart) ||
		errors.Is(err, ErrNotABranchNode) ||
		errors.Is(err, ErrIndexOutOfRange) ||
		errors.Is(err, ErrMinimumBranchCount) ||
		errors.Is(err, ErrInvalidNode) ||
		errors.Is(err, ErrKindMismatch) ||
		errors.Is(err, ErrBranchTerminal) ||
		errors.Is(err, ErrEmptyBranch) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsCorruptionError checks if an error signals a tree that violates its invariants.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrMalformedTree) ||
		errors.Is(err, ErrInvalidStartNode) ||
		errors.Is(err, ErrUnreachable)
}
