package orchestrator

import (
	"fmt"

	"github.com/foragen/foragen-cli/pkg/models"
)

// evaluateCondition decides whether a step runs in conditional mode.
// When it returns false, the reason explains why the step is skipped.
func (x *execution) evaluateCondition(step *models.WorkflowStep) (bool, string) {
	c := step.Condition
	if c == nil {
		return true, ""
	}

	switch c.Type {
	case models.ConditionSuccess:
		r := x.result(c.StepID)
		if r != nil && r.Status == models.StepStatusCompleted {
			return true, ""
		}
		return false, fmt.Sprintf("step %s did not complete", c.StepID)

	case models.ConditionFailure:
		r := x.result(c.StepID)
		if r != nil && r.Status == models.StepStatusFailed {
			return true, ""
		}
		return false, fmt.Sprintf("step %s did not fail", c.StepID)

	case models.ConditionOutputMatches:
		r := x.result(c.StepID)
		if r == nil {
			return false, fmt.Sprintf("step %s has no output", c.StepID)
		}
		re := x.plan.conditionPatterns[step.ID]
		if re != nil && re.MatchString(r.Output) {
			return true, ""
		}
		return false, fmt.Sprintf("output of step %s does not match %q", c.StepID, c.Pattern)

	case models.ConditionVariableEquals:
		v, _ := x.vars.Get(c.Variable)
		if valuesEqual(v, c.Value) {
			return true, ""
		}
		return false, fmt.Sprintf("variable %s is %v, want %v", c.Variable, v, c.Value)
	}

	return false, fmt.Sprintf("unknown condition type %q", c.Type)
}
