package registry

import (
	"github.com/dukex/certflow/pkg/models"
)

// kind is a statically described action kind.
type kind struct {
	id          string
	name        string
	description string
	schema      map[string]any
	inputs      []Input
	outputs     []models.Output
}

func (k *kind) ID() string               { return k.id }
func (k *kind) Name() string             { return k.name }
func (k *kind) Description() string      { return k.description }
func (k *kind) Schema() map[string]any   { return k.schema }
func (k *kind) Inputs() []Input          { return k.inputs }
func (k *kind) Outputs() []models.Output { return k.outputs }

func certificateOutput() models.Output {
	return models.Output{
		Name:     "certificate",
		Type:     models.OutputTypeCertificate,
		Label:    "Certificate",
		Required: true,
	}
}

// RegisterDefaultKinds registers the built-in action kinds.
func (r *Registry) RegisterDefaultKinds() {
	r.RegisterKind(NewApplyKind())
	r.RegisterKind(NewUploadKind())
	r.RegisterKind(NewDeployKind())
	r.RegisterKind(NewNotifyKind())
	r.RegisterKind(NewConditionKind())
	r.RegisterKind(NewExecuteResultKind(models.ActionTypeExecuteSuccess))
	r.RegisterKind(NewExecuteResultKind(models.ActionTypeExecuteFailure))
}

// NewApplyKind describes certificate issuance through an ACME provider.
func NewApplyKind() ActionKind {
	return &kind{
		id:          models.ActionTypeApply,
		name:        "Apply",
		description: "Requests a certificate from an ACME certificate authority",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domains": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Semicolon separated list of domains",
				},
				"email": map[string]any{
					"type":        "string",
					"minLength":   3,
					"description": "Contact email of the ACME account",
				},
				"provider": map[string]any{
					"type":        "string",
					"description": "DNS provider access used for the challenge",
				},
				"keyAlgorithm": map[string]any{
					"type":    "string",
					"enum":    []string{"RSA2048", "RSA3072", "RSA4096", "RSA8192", "EC256", "EC384"},
					"default": "RSA2048",
				},
				"nameservers": map[string]any{
					"type": "string",
				},
				"propagationTimeout": map[string]any{
					"type":    "integer",
					"minimum": 0,
				},
			},
			"required": []string{"domains", "email"},
		},
		outputs: []models.Output{certificateOutput()},
	}
}

// NewUploadKind describes a certificate supplied by the user.
func NewUploadKind() ActionKind {
	return &kind{
		id:          models.ActionTypeUpload,
		name:        "Upload",
		description: "Uses a certificate and private key provided by the user",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"certificate": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "PEM encoded certificate chain",
				},
				"privateKey": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "PEM encoded private key",
				},
			},
			"required": []string{"certificate", "privateKey"},
		},
		outputs: []models.Output{certificateOutput()},
	}
}

// NewDeployKind describes pushing a certificate to a target.
func NewDeployKind() ActionKind {
	return &kind{
		id:          models.ActionTypeDeploy,
		name:        "Deploy",
		description: "Deploys a certificate produced earlier in the workflow to a target",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"provider": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Deployment target provider",
				},
				"certificate": map[string]any{
					"type":        "string",
					"pattern":     "^[^#]+#[^#]+$",
					"description": "Reference to an ancestor output, as <nodeID>#<outputName>",
				},
				"access": map[string]any{
					"type":        "string",
					"description": "Access credential id used by the provider",
				},
			},
			"required": []string{"provider", "certificate"},
		},
		inputs: []Input{{Name: "certificate", Type: models.OutputTypeCertificate, Required: true}},
	}
}

// NewNotifyKind describes a notification step.
func NewNotifyKind() ActionKind {
	return &kind{
		id:          models.ActionTypeNotify,
		name:        "Notify",
		description: "Sends a notification through a channel",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel": map[string]any{
					"type": "string",
					"enum": []string{"email", "webhook", "slack", "telegram", "dingtalk", "lark"},
				},
				"subject": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
				"message": map[string]any{
					"type":      "string",
					"minLength": 1,
				},
			},
			"required": []string{"channel", "subject", "message"},
		},
	}
}

// NewExecuteResultKind describes the marker heading the branch taken when the
// preceding steps succeeded or failed. It takes no configuration.
func NewExecuteResultKind(actionType string) ActionKind {
	name, description := "On success", "Heads the branch taken when the previous steps succeeded"
	if actionType == models.ActionTypeExecuteFailure {
		name, description = "On failure", "Heads the branch taken when a previous step failed"
	}

	return &kind{
		id:          actionType,
		name:        name,
		description: description,
		schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}

// NewConditionKind describes the node heading a branch.
func NewConditionKind() ActionKind {
	return &kind{
		id:          models.ActionTypeCondition,
		name:        "Condition",
		description: "Heads a branch; the expression decides whether the branch runs",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type": "string",
				},
			},
		},
	}
}
