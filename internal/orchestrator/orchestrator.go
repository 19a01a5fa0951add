package orchestrator

import (
	"context"
	"fmt"

	"github.com/foragen/foragen-cli/internal/agents"
	"github.com/foragen/foragen-cli/pkg/models"
)

// Orchestrator executes workflow definitions. It is safe for concurrent
// use; every Execute call gets its own execution state.
type Orchestrator struct {
	agents   agents.Store
	executor agents.Executor
	emitter  *EventEmitter
	opts     *orchestratorOptions
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.policy == nil {
		o.policy = defaultOptions().policy
	}
	if o.logger == nil {
		o.logger = defaultOptions().logger
	}

	return &Orchestrator{
		agents:   req.Agents,
		executor: req.Executor,
		emitter:  NewEventEmitter(o.logger),
		opts:     o,
	}
}

// On registers a listener for lifecycle events and returns a function
// that unregisters it. Listeners are called synchronously and must not
// block for long; they must not call back into the emitter.
func (o *Orchestrator) On(listener Listener) func() {
	return o.emitter.On(listener)
}

// Execute runs def to completion. Overrides are layered on top of the
// definition's variables. Step failures are reported in the result, never
// as a Go error; validation and dispatch failures yield a failed result
// with no step results and Error set.
func (o *Orchestrator) Execute(ctx context.Context, def *models.WorkflowDefinition, overrides map[string]any) (result *models.WorkflowResult) {
	runID := o.opts.newRunID()
	start := o.opts.clock()

	name := ""
	if def != nil {
		name = def.Name
	}
	fail := func(err error) *models.WorkflowResult {
		end := o.opts.clock()
		o.opts.logger.Error(err, fmt.Sprintf("workflow %s failed", name))
		return &models.WorkflowResult{
			RunID:        runID,
			WorkflowName: name,
			Status:       models.WorkflowStatusFailed,
			StepResults:  []models.StepResult{},
			Variables:    map[string]any{},
			StartTime:    start,
			EndTime:      end,
			Duration:     end.Sub(start),
			Error:        err.Error(),
		}
	}

	if o.agents == nil || o.executor == nil {
		return fail(fmt.Errorf("%w: orchestrator has no agent store or executor", models.ErrInvalidConfig))
	}

	p, err := compile(def.Clone(), o.opts.logger)
	if err != nil {
		return fail(err)
	}

	x := &execution{
		o:       o,
		plan:    p,
		runID:   runID,
		vars:    newVariableSet(p.def.Variables, overrides),
		results: make(map[string]*models.StepResult, len(p.def.Steps)),
	}

	o.opts.logger.Infof("workflow %s: run %s started (%s, %d steps)", name, runID, p.def.EffectiveMode(), len(p.def.Steps))
	x.emit(Event{Type: EventWorkflowStart, TotalSteps: len(p.def.Steps), Mode: p.def.EffectiveMode()})

	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Errorf("workflow dispatch panicked: %v", r))
			x.emitEnd(result)
		}
	}()

	if budget := p.def.TimeBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	if err := x.dispatch(ctx); err != nil {
		result = fail(err)
		x.emitEnd(result)
		return result
	}

	if ctx.Err() != nil && len(x.ordered) < len(p.def.Steps) {
		x.cancelled = true
	}

	end := o.opts.clock()
	result = &models.WorkflowResult{
		RunID:        runID,
		WorkflowName: name,
		StepResults:  x.ordered,
		Variables:    x.vars.Snapshot(),
		StartTime:    start,
		EndTime:      end,
		Duration:     end.Sub(start),
	}
	if result.StepResults == nil {
		result.StepResults = []models.StepResult{}
	}
	result.Status = aggregateStatus(result, x.cancelled)

	o.opts.logger.Infof("workflow %s: run %s %s in %s", name, runID, result.Status, result.Duration)
	x.emitEnd(result)
	return result
}

func (x *execution) emitEnd(result *models.WorkflowResult) {
	completed, failed, _ := result.Counts()
	x.emit(Event{
		Type:         EventWorkflowEnd,
		Status:       result.Status,
		Duration:     result.Duration,
		SuccessCount: completed,
		FailureCount: failed,
	})
}

// aggregateStatus folds step results into the workflow status.
func aggregateStatus(r *models.WorkflowResult, cancelled bool) models.WorkflowStatus {
	if cancelled {
		return models.WorkflowStatusCancelled
	}
	completed, failed, _ := r.Counts()
	switch {
	case failed == 0:
		return models.WorkflowStatusCompleted
	case completed > 0:
		return models.WorkflowStatusPartial
	default:
		return models.WorkflowStatusFailed
	}
}
