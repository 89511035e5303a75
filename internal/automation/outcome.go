package automation

import (
	"github.com/google/uuid"
)

// Result classifies the evaluation of one rule.
type Result string

const (
	Fired   Result = "fired"
	Skipped Result = "skipped"
	Errored Result = "errored"
)

// Outcome reports what happened to one rule in an evaluation run.
type Outcome struct {
	RuleID   uuid.UUID
	RuleName string
	Result   Result
	// Reason explains a skip.
	Reason string
	// Err is set when Result is Errored.
	Err error
	// NotificationJobID is the queued notification for a fired rule.
	NotificationJobID uuid.UUID
}

func fired(ruleID uuid.UUID, name string, jobID uuid.UUID) Outcome {
	return Outcome{RuleID: ruleID, RuleName: name, Result: Fired, NotificationJobID: jobID}
}

func skipped(ruleID uuid.UUID, name, reason string) Outcome {
	return Outcome{RuleID: ruleID, RuleName: name, Result: Skipped, Reason: reason}
}

func errored(ruleID uuid.UUID, name string, err error) Outcome {
	return Outcome{RuleID: ruleID, RuleName: name, Result: Errored, Err: err}
}

// Tally counts outcomes by result.
func Tally(outcomes []Outcome) map[Result]int {
	counts := map[Result]int{Fired: 0, Skipped: 0, Errored: 0}
	for _, o := range outcomes {
		counts[o.Result]++
	}
	return counts
}
