package rules

import (
	"fmt"
)

// ConditionType names a condition variant. The set is closed; stored rules
// carrying a type this build does not know are skipped at evaluation.
type ConditionType string

const DropPercentGreaterThan ConditionType = "drop_percent_greater_than"

// Condition is the firing test applied to a rule's current and previous values.
type Condition struct {
	Type      ConditionType `json:"type"`
	Threshold float64       `json:"threshold"`
}

// Verdict is the result of applying a condition.
type Verdict struct {
	Fired bool
	// Reason explains a verdict that did not fire.
	Reason string
	// DropPercent is set by drop conditions when a previous-period signal exists.
	DropPercent float64
}

type evaluator func(threshold, current, previous float64) Verdict

var evaluators = map[ConditionType]evaluator{
	DropPercentGreaterThan: dropPercentGreaterThan,
}

// Supported reports whether t has an evaluator.
func (t ConditionType) Supported() bool {
	_, ok := evaluators[t]
	return ok
}

// Evaluate applies the condition. Returns ErrUnsupportedCondition for unknown types.
func (c Condition) Evaluate(current, previous float64) (Verdict, error) {
	eval, ok := evaluators[c.Type]
	if !ok {
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnsupportedCondition, c.Type)
	}
	return eval(c.Threshold, current, previous), nil
}

// dropPercentGreaterThan fires when the metric fell by strictly more than
// threshold percent. A non-positive previous value carries no signal.
func dropPercentGreaterThan(threshold, current, previous float64) Verdict {
	if previous <= 0 {
		return Verdict{Reason: "no previous-period signal"}
	}

	drop := (previous - current) / previous * 100
	if drop > threshold {
		return Verdict{Fired: true, DropPercent: drop}
	}
	return Verdict{
		Reason:      fmt.Sprintf("drop %.2f%% within threshold %.2f%%", drop, threshold),
		DropPercent: drop,
	}
}
