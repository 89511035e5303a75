// Package rules implements the automation rule domain: typed rule definitions,
// write-time validation, and tenant-scoped persistence.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JaimeStill/harbor/internal/metrics"
	"github.com/JaimeStill/harbor/internal/users"
)

// Definition is the structured configuration of one rule.
type Definition struct {
	Metric    string    `json:"metric"`
	Period    Period    `json:"period"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
}

// Period sizes the compared windows. The previous window ends where the
// current one begins.
type Period struct {
	CurrentDays  int `json:"currentDays"`
	PreviousDays int `json:"previousDays"`
}

// Action describes the notification sent when a rule fires.
type Action struct {
	ToRole   string `json:"toRole"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
}

// Validate rejects definitions the evaluator could not act on.
func (d Definition) Validate() error {
	var errs []error

	if _, err := metrics.ParseKey(d.Metric); err != nil {
		errs = append(errs, err)
	}
	if d.Period.CurrentDays < 1 {
		errs = append(errs, errors.New("period.currentDays must be positive"))
	}
	if d.Period.PreviousDays < 1 {
		errs = append(errs, errors.New("period.previousDays must be positive"))
	}
	if !d.Condition.Type.Supported() {
		errs = append(errs, fmt.Errorf("condition.type %q is not supported", d.Condition.Type))
	}
	if d.Condition.Threshold < 0 {
		errs = append(errs, errors.New("condition.threshold cannot be negative"))
	}
	if _, err := users.ParseRole(d.Action.ToRole); err != nil {
		errs = append(errs, fmt.Errorf("action.toRole: %w", err))
	}
	if strings.TrimSpace(d.Action.Subject) == "" {
		errs = append(errs, errors.New("action.subject required"))
	}
	if strings.TrimSpace(d.Action.Template) == "" {
		errs = append(errs, errors.New("action.template required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
	}
	return nil
}
