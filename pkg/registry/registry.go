// Package registry holds the action kinds a workflow tree can use, with their
// configuration schemas and declared inputs and outputs.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/certflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrActionTypeNotRegistered = errors.New("action type not registered")
	ErrInvalidActionConfig     = errors.New("invalid action configuration")
)

// Input is a configuration field holding a reference to an ancestor output,
// written as "<nodeID>#<outputName>".
type Input struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// ActionKind describes one action type.
type ActionKind interface {
	ID() string
	Name() string
	Description() string
	Schema() map[string]any
	Inputs() []Input
	Outputs() []models.Output
}

type Registry struct {
	logger *slog.Logger
	mu     sync.RWMutex
	kinds  map[string]ActionKind
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		kinds:  make(map[string]ActionKind),
	}
}

// RegisterKind adds or replaces an action kind.
func (r *Registry) RegisterKind(kind ActionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[kind.ID()] = kind

	r.logger.Debug("Registered action kind", slog.String("type", kind.ID()))
}

// Kind returns the action kind registered for actionType.
func (r *Registry) Kind(actionType string) (ActionKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, ok := r.kinds[actionType]

	return kind, ok
}

// GetAvailableKinds returns every registered kind ordered by id.
func (r *Registry) GetAvailableKinds() []ActionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(r.kinds))
	kinds := make([]ActionKind, 0, len(ids))

	for _, id := range ids {
		kinds = append(kinds, r.kinds[id])
	}

	return kinds
}

// Validate checks an action node's configuration against the schema of its
// kind. Start and branch nodes carry no action configuration and always pass.
func (r *Registry) Validate(node *models.Node) error {
	if node == nil || node.Kind != models.NodeKindAction || node.Action == nil {
		return nil
	}

	kind, ok := r.Kind(node.Action.Type)
	if !ok {
		return fmt.Errorf("node %s: %w: %s", node.ID, ErrActionTypeNotRegistered, node.Action.Type)
	}

	config := node.Action.Config
	if config == nil {
		config = map[string]any{}
	}

	err := validateJSONSchema(config, kind.Schema())
	if err != nil {
		return fmt.Errorf("node %s: %w: %w", node.ID, ErrInvalidActionConfig, err)
	}

	return nil
}

// ValidateTree validates every action node reachable through Next and Branches.
func (r *Registry) ValidateTree(root *models.Node) error {
	if root == nil {
		return nil
	}

	err := r.Validate(root)
	if err != nil {
		return err
	}

	for _, branch := range root.Branches {
		err = r.ValidateTree(branch)
		if err != nil {
			return err
		}
	}

	return r.ValidateTree(root.Next)
}

// Prepare returns a copy of node whose outputs default to the ones declared by
// its kind. The node and its links are otherwise left as they are.
func (r *Registry) Prepare(node *models.Node) *models.Node {
	if node == nil || len(node.Output) > 0 || node.Kind != models.NodeKindAction || node.Action == nil {
		return node
	}

	kind, ok := r.Kind(node.Action.Type)
	if !ok || len(kind.Outputs()) == 0 {
		return node
	}

	prepared := *node
	prepared.Output = slices.Clone(kind.Outputs())

	return &prepared
}

// PrepareTree applies Prepare to every node of the acyclic subtree rooted at
// node, copying each node on the way.
func (r *Registry) PrepareTree(node *models.Node) *models.Node {
	if node == nil {
		return nil
	}

	prepared := *r.Prepare(node)
	prepared.Next = r.PrepareTree(node.Next)

	if node.Branches != nil {
		prepared.Branches = make([]*models.Node, len(node.Branches))
		for i, branch := range node.Branches {
			prepared.Branches[i] = r.PrepareTree(branch)
		}
	}

	return &prepared
}

// InputsOf returns the reference fields declared for the node's action type.
func (r *Registry) InputsOf(node *models.Node) []Input {
	kind, ok := r.Kind(node.ActionType())
	if !ok {
		return nil
	}

	return kind.Inputs()
}

func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return "No action kinds registered", false
	}

	return fmt.Sprintf("%d action kinds registered", len(r.kinds)), true
}

// validateJSONSchema validates data against a JSON schema.
func validateJSONSchema(data any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			messages = append(messages, resultError.String())
		}

		return fmt.Errorf("JSON schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}
