package workflow

import (
	"fmt"

	"github.com/dukex/certflow/pkg/models"
)

// GetExecuteMethod reads the trigger configuration of the start node. The cron
// expression is only set for scheduled workflows.
func GetExecuteMethod(root *models.Node) (models.ExecuteMethod, error) {
	const op = "GetExecuteMethod"

	if !root.IsStart() || root.Start == nil {
		return models.ExecuteMethod{}, newTreeError(op, "", ErrInvalidStartNode)
	}

	switch root.Start.Trigger {
	case models.TriggerTypeManual:
		return models.ExecuteMethod{Type: models.TriggerTypeManual}, nil
	case models.TriggerTypeScheduled:
		return models.ExecuteMethod{
			Type:           models.TriggerTypeScheduled,
			CronExpression: root.Start.TriggerCron,
		}, nil
	default:
		return models.ExecuteMethod{}, newTreeError(op, root.ID,
			fmt.Errorf("%w: unknown trigger %q", ErrInvalidStartNode, root.Start.Trigger))
	}
}
