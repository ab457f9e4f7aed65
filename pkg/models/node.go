// Package models defines the workflow tree data model used by the certificate pipeline designer.
package models

// NodeKind is the closed set of node variants a workflow tree can hold.
type NodeKind string

const (
	NodeKindStart  NodeKind = "start"  // Tree root, carries the trigger configuration
	NodeKindAction NodeKind = "action" // Linear step (apply, upload, deploy, notify, condition)
	NodeKindBranch NodeKind = "branch" // Parallel alternative sub-chains
)

// Built-in action types.
const (
	ActionTypeApply          = "apply"
	ActionTypeUpload         = "upload"
	ActionTypeDeploy         = "deploy"
	ActionTypeNotify         = "notify"
	ActionTypeCondition      = "condition"
	ActionTypeExecuteSuccess = "execute_success"
	ActionTypeExecuteFailure = "execute_failure"
)

// OutputTypeCertificate is the artifact category produced by apply and upload nodes.
const OutputTypeCertificate = "certificate"

// Output describes an artifact a node produces for its descendants.
type Output struct {
	Name     string `json:"name"            validate:"required"`
	Type     string `json:"type"            validate:"required"`
	Label    string `json:"label,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// ActionConfig is the payload of an action node. Config is opaque to the tree engine.
type ActionConfig struct {
	Type   string
	Config map[string]any
}

// Node is one step of a workflow tree.
//
// Exactly one of Start or Action is set, matching Kind; branch nodes carry no
// payload. Branch nodes own Branches and never have Next.
type Node struct {
	ID       string
	Kind     NodeKind
	Name     string
	Start    *StartConfig
	Action   *ActionConfig
	Output   []Output
	Next     *Node
	Branches []*Node
}

// IsStart reports whether the node is the start node.
func (n *Node) IsStart() bool {
	return n != nil && n.Kind == NodeKindStart
}

// IsBranch reports whether the node is a branch node.
func (n *Node) IsBranch() bool {
	return n != nil && n.Kind == NodeKindBranch
}

// ActionType returns the action type of an action node, or "" for other kinds.
func (n *Node) ActionType() string {
	if n == nil || n.Kind != NodeKindAction || n.Action == nil {
		return ""
	}

	return n.Action.Type
}

// HasOutput reports whether the node declares at least one output of the given type.
func (n *Node) HasOutput(outputType string) bool {
	for _, output := range n.Output {
		if output.Type == outputType {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the subtree rooted at n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	clone := *n

	if n.Start != nil {
		start := *n.Start
		clone.Start = &start
	}

	if n.Action != nil {
		clone.Action = &ActionConfig{
			Type:   n.Action.Type,
			Config: cloneMap(n.Action.Config),
		}
	}

	if n.Output != nil {
		clone.Output = append([]Output(nil), n.Output...)
	}

	clone.Next = n.Next.Clone()

	if n.Branches != nil {
		clone.Branches = make([]*Node, len(n.Branches))
		for i, branch := range n.Branches {
			clone.Branches[i] = branch.Clone()
		}
	}

	return &clone
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))

	for k, v := range src {
		if nested, ok := v.(map[string]any); ok {
			dst[k] = cloneMap(nested)

			continue
		}

		dst[k] = v
	}

	return dst
}

// NewStartNode creates a start node with a manual trigger.
func NewStartNode(id, name string) *Node {
	return &Node{
		ID:    id,
		Kind:  NodeKindStart,
		Name:  name,
		Start: &StartConfig{Trigger: TriggerTypeManual},
	}
}

// NewActionNode creates an action node of the given type.
func NewActionNode(id, name, actionType string, config map[string]any, outputs ...Output) *Node {
	if config == nil {
		config = make(map[string]any)
	}

	return &Node{
		ID:     id,
		Kind:   NodeKindAction,
		Name:   name,
		Action: &ActionConfig{Type: actionType, Config: config},
		Output: outputs,
	}
}

// NewBranchNode creates a branch node owning the given sub-chains.
func NewBranchNode(id, name string, branches ...*Node) *Node {
	return &Node{
		ID:       id,
		Kind:     NodeKindBranch,
		Name:     name,
		Branches: branches,
	}
}

// NewPlaceholderNode creates the condition node heading a freshly added branch.
func NewPlaceholderNode(id string) *Node {
	return NewActionNode(id, "Branch", ActionTypeCondition, nil)
}
