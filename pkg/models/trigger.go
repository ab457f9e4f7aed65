package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerType is the condition under which a released workflow runs.
type TriggerType string

const (
	TriggerTypeManual    TriggerType = "manual"
	TriggerTypeScheduled TriggerType = "scheduled"
)

// ErrInvalidCronExpression is returned when a cron expression cannot be parsed.
var ErrInvalidCronExpression = errors.New("invalid cron expression")

// StartConfig is the payload of the start node.
type StartConfig struct {
	Trigger     TriggerType `json:"trigger"               validate:"required,oneof=manual scheduled"`
	TriggerCron string      `json:"triggerCron,omitempty" validate:"required_if=Trigger scheduled,cronexpr"`
}

// ExecuteMethod is the normalized trigger pair stored alongside a workflow.
type ExecuteMethod struct {
	Type           TriggerType `json:"type"`
	CronExpression string      `json:"cron_expression,omitempty"`
}

// IsScheduled reports whether the workflow runs on a cron schedule.
func (m ExecuteMethod) IsScheduled() bool {
	return m.Type == TriggerTypeScheduled
}

// NextRuns returns the next n fire times after from. Manual methods have none.
func (m ExecuteMethod) NextRuns(from time.Time, n int) ([]time.Time, error) {
	if !m.IsScheduled() || n <= 0 {
		return []time.Time{}, nil
	}

	schedule, err := ParseCron(m.CronExpression)
	if err != nil {
		return nil, err
	}

	runs := make([]time.Time, 0, n)
	next := from

	for range n {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}

		runs = append(runs, next)
	}

	return runs, nil
}

// ParseCron parses a standard 5-field cron expression (minute hour day month weekday).
func ParseCron(expression string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(expression)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronExpression, err)
	}

	return schedule, nil
}
