package orchestrator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/foragen/foragen-cli/internal/graph"
	"github.com/foragen/foragen-cli/internal/logging"
	"github.com/foragen/foragen-cli/pkg/models"
)

// ErrCircularDependency indicates the steps' dependencies form a cycle.
// It wraps models.ErrInvalidConfig.
var ErrCircularDependency = fmt.Errorf("%w: dependency cycle", models.ErrInvalidConfig)

var workflowNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidName reports whether name can be used as a workflow name.
func ValidName(name string) bool {
	return workflowNamePattern.MatchString(name)
}

// plan is a validated definition with everything the scheduler needs
// precomputed: dependency levels and compiled patterns.
type plan struct {
	def *models.WorkflowDefinition
	// levels is the Kahn layering of the steps.
	levels [][]string
	// extractors maps step id to compiled output extractors, index-aligned
	// with the step's Outputs.
	extractors map[string][]*regexp.Regexp
	// conditionPatterns maps step id to its compiled output_matches pattern.
	conditionPatterns map[string]*regexp.Regexp
}

// Validate checks a definition without executing it. The returned error
// wraps models.ErrInvalidConfig.
func Validate(def *models.WorkflowDefinition) error {
	_, err := compile(def, nil)
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// compile validates def and precomputes what execution needs. Graph
// construction is traced to logger at debug level.
func compile(def *models.WorkflowDefinition, logger *logging.Logger) (*plan, error) {
	if def == nil {
		return nil, invalid("definition is nil")
	}
	if def.Name == "" {
		return nil, invalid("workflow name is required")
	}
	if !ValidName(def.Name) {
		return nil, invalid("workflow name %q must match %s", def.Name, workflowNamePattern)
	}
	if def.Mode != "" && !def.Mode.Valid() {
		return nil, invalid("unknown execution mode %q", def.Mode)
	}
	if len(def.Steps) == 0 {
		return nil, invalid("workflow %s has no steps", def.Name)
	}
	if def.Timeout < 0 {
		return nil, invalid("workflow timeout must not be negative")
	}

	p := &plan{
		def:               def,
		extractors:        make(map[string][]*regexp.Regexp),
		conditionPatterns: make(map[string]*regexp.Regexp),
	}

	ids := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		if step.ID == "" {
			return nil, invalid("every step needs an id")
		}
		if ids[step.ID] {
			return nil, invalid("duplicate step id %q", step.ID)
		}
		ids[step.ID] = true
	}

	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return nil, invalid("step %s depends on unknown step %s", step.ID, dep)
			}
		}
		if step.Timeout < 0 || step.Retries < 0 {
			return nil, invalid("step %s: timeout and retries must not be negative", step.ID)
		}

		compiled := make([]*regexp.Regexp, len(step.Outputs))
		for i, out := range step.Outputs {
			if out.Name == "" {
				return nil, invalid("step %s: output %d has no name", step.ID, i)
			}
			re, err := regexp.Compile(out.Extractor)
			if err != nil {
				return nil, invalid("step %s: output %s: bad extractor: %v", step.ID, out.Name, err)
			}
			compiled[i] = re
		}
		p.extractors[step.ID] = compiled

		if err := compileCondition(p, &step, ids); err != nil {
			return nil, err
		}
	}

	g := graph.New()
	g.SetDebugLog(logger.Debugf)
	if err := g.Build(def.Steps); err != nil {
		return nil, invalid("%v", err)
	}
	levels, err := g.Levels()
	if err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			return nil, fmt.Errorf("%w: %w", ErrCircularDependency, err)
		}
		return nil, invalid("%v", err)
	}
	p.levels = levels

	if def.EffectiveMode() == models.ModeParallel {
		if err := checkLevelWrites(def, levels); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func compileCondition(p *plan, step *models.WorkflowStep, ids map[string]bool) error {
	c := step.Condition
	if c == nil {
		return nil
	}
	if !c.Type.Valid() {
		return invalid("step %s: unknown condition type %q", step.ID, c.Type)
	}

	switch c.Type {
	case models.ConditionSuccess, models.ConditionFailure, models.ConditionOutputMatches:
		if c.StepID == "" {
			return invalid("step %s: %s condition needs stepId", step.ID, c.Type)
		}
		if !ids[c.StepID] {
			return invalid("step %s: condition references unknown step %s", step.ID, c.StepID)
		}
	case models.ConditionVariableEquals:
		if c.Variable == "" {
			return invalid("step %s: variable_equals condition needs variable", step.ID)
		}
	}

	if c.Type == models.ConditionOutputMatches {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return invalid("step %s: bad condition pattern: %v", step.ID, err)
		}
		p.conditionPatterns[step.ID] = re
	}
	return nil
}

// checkLevelWrites rejects two steps of the same level writing the same
// variable, since their completion order is unspecified.
func checkLevelWrites(def *models.WorkflowDefinition, levels [][]string) error {
	for _, level := range levels {
		writers := make(map[string]string)
		for _, id := range level {
			for _, out := range def.Step(id).Outputs {
				if other, ok := writers[out.Name]; ok && other != id {
					pair := []string{other, id}
					sort.Strings(pair)
					return invalid("steps %s and %s run in the same level and both write variable %q", pair[0], pair[1], out.Name)
				}
				writers[out.Name] = id
			}
		}
	}
	return nil
}
