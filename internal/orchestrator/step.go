package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foragen/foragen-cli/internal/agents"
	"github.com/foragen/foragen-cli/pkg/models"
)

// runStep executes one step to a terminal state. It never returns an
// error: every failure, including a collaborator panic, becomes a failed
// StepResult.
func (x *execution) runStep(ctx context.Context, step *models.WorkflowStep) (result models.StepResult) {
	o := x.o
	result = models.StepResult{
		StepID:    step.ID,
		Status:    models.StepStatusRunning,
		StartTime: o.opts.clock(),
		AgentName: step.Agent,
	}
	x.emit(Event{Type: EventStepStart, StepID: step.ID, StepName: step.DisplayName(), AgentName: step.Agent})

	var stepErr error
	defer func() {
		if r := recover(); r != nil {
			stepErr = fmt.Errorf("%w: panic: %v", models.ErrStepFailed, r)
			result.Status = models.StepStatusFailed
			result.Error = stepErr.Error()
			result.Variables = nil
		}
		result.EndTime = o.opts.clock()
		result.Duration = result.EndTime.Sub(result.StartTime)

		ev := Event{
			Type:       EventStepEnd,
			StepID:     step.ID,
			StepName:   step.DisplayName(),
			AgentName:  result.AgentName,
			StepStatus: result.Status,
			Duration:   result.Duration,
			Error:      result.Error,
		}
		if result.Status == models.StepStatusFailed {
			o.opts.logger.Warn(stepErr, fmt.Sprintf("step %s failed after %s", step.DisplayName(), result.Duration))
		} else {
			o.opts.logger.Debugf("step %s %s in %s", step.ID, result.Status, result.Duration)
		}
		x.emit(ev)
	}()

	output, vars, attempts, err := x.execStep(ctx, step)
	result.Attempts = attempts
	if err != nil {
		stepErr = fmt.Errorf("%w: %w", models.ErrStepFailed, err)
		result.Status = models.StepStatusFailed
		result.Error = stepErr.Error()
		return result
	}

	result.Status = models.StepStatusCompleted
	result.Output = output
	result.Variables = vars
	return result
}

func (x *execution) execStep(ctx context.Context, step *models.WorkflowStep) (string, map[string]any, int, error) {
	for _, dep := range step.DependsOn {
		r := x.result(dep)
		if r == nil {
			return "", nil, 0, fmt.Errorf("%w: step %s requires %s, which has not run", models.ErrDependencyFailed, step.ID, dep)
		}
		if r.Status != models.StepStatusCompleted {
			return "", nil, 0, fmt.Errorf("%w: step %s requires %s, which is %s", models.ErrDependencyFailed, step.ID, dep, r.Status)
		}
	}

	snapshot := x.vars.Snapshot()
	task := Substitute(step.Task, snapshot)

	agent, err := x.o.agents.LoadAgent(step.Agent)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, 0, fmt.Errorf("%w: %s", models.ErrAgentNotFound, step.Agent)
		}
		return "", nil, 0, fmt.Errorf("load agent %s: %w", step.Agent, err)
	}
	if agent == nil {
		return "", nil, 0, fmt.Errorf("%w: %s", models.ErrAgentNotFound, step.Agent)
	}

	req := agents.NewRunRequest(agent, task, snapshot)
	output, attempts, err := x.runAgent(ctx, step, req)
	if err != nil {
		return "", nil, attempts, err
	}

	var extracted map[string]any
	if len(step.Outputs) > 0 {
		extracted = make(map[string]any, len(step.Outputs))
		for i, rule := range step.Outputs {
			value := Extract(x.plan.extractors[step.ID][i], output)
			extracted[rule.Name] = value
			x.vars.Set(rule.Name, value)
			x.emit(Event{Type: EventVariableUpdate, StepID: step.ID, Variable: rule.Name, Value: value})
		}
	}

	return output, extracted, attempts, nil
}

// runAgent runs the agent, applying the step timeout to each attempt and
// retrying failed attempts up to step.Retries extra times.
func (x *execution) runAgent(ctx context.Context, step *models.WorkflowStep, req agents.RunRequest) (string, int, error) {
	retry := x.o.opts.policy.Retry

	for attempt := 1; ; attempt++ {
		output, err := x.runAttempt(ctx, step, req)
		if err == nil {
			return output, attempt, nil
		}
		if ctx.Err() != nil {
			return "", attempt, fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		if attempt > step.Retries {
			return "", attempt, err
		}

		delay := retry.Delay(attempt)
		x.o.opts.logger.Debugf("step %s attempt %d failed (%v), retrying in %s", step.ID, attempt, err, delay)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", attempt, fmt.Errorf("%w: %w", models.ErrCancelled, err)
			case <-timer.C:
			}
		}
	}
}

func (x *execution) runAttempt(ctx context.Context, step *models.WorkflowStep, req agents.RunRequest) (string, error) {
	if step.Timeout <= 0 {
		return x.o.executor.Run(ctx, req)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(step.Timeout)*time.Second)
	defer cancel()

	output, err := x.o.executor.Run(attemptCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: step %s exceeded %ds", models.ErrTimeout, step.ID, step.Timeout)
	}
	return output, err
}
