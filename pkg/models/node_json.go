package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidNodeType is returned when a serialized node has no usable type discriminator.
var ErrInvalidNodeType = errors.New("invalid node type")

// wireNode is the serialized form of a node. The type field carries "start",
// "branch" or the action type; config is kind specific.
type wireNode struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Config   json.RawMessage `json:"config,omitempty"`
	Output   []Output        `json:"output,omitempty"`
	Next     *Node           `json:"next,omitempty"`
	Branches []*Node         `json:"branches,omitempty"`
}

// MarshalJSON encodes the node with its type discriminator.
func (n Node) MarshalJSON() ([]byte, error) {
	wire := wireNode{
		ID:       n.ID,
		Name:     n.Name,
		Output:   n.Output,
		Next:     n.Next,
		Branches: n.Branches,
	}

	var config any

	switch n.Kind {
	case NodeKindStart:
		wire.Type = string(NodeKindStart)
		config = n.Start
	case NodeKindBranch:
		wire.Type = string(NodeKindBranch)
	case NodeKindAction:
		if n.Action == nil || n.Action.Type == "" {
			return nil, fmt.Errorf("node %s: %w: action without type", n.ID, ErrInvalidNodeType)
		}

		wire.Type = n.Action.Type
		config = n.Action.Config
	default:
		return nil, fmt.Errorf("node %s: %w: %q", n.ID, ErrInvalidNodeType, n.Kind)
	}

	if config != nil {
		raw, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config of node %s: %w", n.ID, err)
		}

		wire.Config = raw
	}

	return json.Marshal(wire)
}

// UnmarshalJSON decodes a node, mapping the type discriminator onto the closed kind set.
func (n *Node) UnmarshalJSON(data []byte) error {
	var wire wireNode

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return err
	}

	decoded := Node{
		ID:       wire.ID,
		Name:     wire.Name,
		Output:   wire.Output,
		Next:     wire.Next,
		Branches: wire.Branches,
	}

	switch wire.Type {
	case "":
		return fmt.Errorf("node %s: %w: missing type", wire.ID, ErrInvalidNodeType)
	case string(NodeKindStart):
		decoded.Kind = NodeKindStart
		decoded.Start = &StartConfig{Trigger: TriggerTypeManual}

		if hasConfig(wire.Config) {
			err = json.Unmarshal(wire.Config, decoded.Start)
			if err != nil {
				return fmt.Errorf("failed to decode start config of node %s: %w", wire.ID, err)
			}
		}
	case string(NodeKindBranch):
		decoded.Kind = NodeKindBranch
	default:
		decoded.Kind = NodeKindAction
		decoded.Action = &ActionConfig{Type: wire.Type, Config: make(map[string]any)}

		if hasConfig(wire.Config) {
			err = json.Unmarshal(wire.Config, &decoded.Action.Config)
			if err != nil {
				return fmt.Errorf("failed to decode config of node %s: %w", wire.ID, err)
			}
		}
	}

	*n = decoded

	return nil
}

func hasConfig(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
