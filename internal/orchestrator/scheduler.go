package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/foragen/foragen-cli/pkg/models"
)

// execution is the mutable state of one Execute call.
type execution struct {
	o     *Orchestrator
	plan  *plan
	runID string
	vars  *variableSet

	mu      sync.Mutex
	results map[string]*models.StepResult
	// ordered holds terminal results in the order they were recorded.
	ordered []models.StepResult
	// cancelled is set when a scheduling checkpoint observed cancellation.
	cancelled bool
}

func (x *execution) emit(ev Event) {
	ev.RunID = x.runID
	ev.Workflow = x.plan.def.Name
	ev.Timestamp = x.o.opts.clock()
	x.o.emitter.Emit(ev)
}

func (x *execution) result(id string) *models.StepResult {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.results[id]
}

func (x *execution) record(r models.StepResult) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ordered = append(x.ordered, r)
	x.results[r.StepID] = &r
}

// checkpoint reports whether scheduling may continue.
func (x *execution) checkpoint(ctx context.Context) bool {
	if ctx.Err() != nil {
		x.mu.Lock()
		x.cancelled = true
		x.mu.Unlock()
		x.o.opts.logger.Infof("workflow %s: scheduling stopped: %v", x.plan.def.Name, ctx.Err())
		return false
	}
	return true
}

func (x *execution) dispatch(ctx context.Context) error {
	switch mode := x.plan.def.EffectiveMode(); mode {
	case models.ModeSequential:
		x.runSequential(ctx, false)
	case models.ModeConditional:
		x.runSequential(ctx, true)
	case models.ModeParallel:
		x.runParallel(ctx)
	default:
		return fmt.Errorf("%w: unknown execution mode %q", models.ErrInvalidConfig, mode)
	}
	return nil
}

// runSequential runs steps in declared order, one at a time. With
// conditions set, each step's condition gates it.
func (x *execution) runSequential(ctx context.Context, conditions bool) {
	def := x.plan.def
	for i := range def.Steps {
		step := &def.Steps[i]
		if !x.checkpoint(ctx) {
			return
		}

		if conditions {
			if ok, reason := x.evaluateCondition(step); !ok {
				x.skip(step, reason)
				continue
			}
		}

		r := x.runStep(ctx, step)
		x.record(r)
		if r.Status == models.StepStatusFailed && !def.ContinueOnError {
			x.o.opts.logger.Infof("workflow %s: halting after failed step %s", def.Name, step.ID)
			return
		}
	}
}

// runParallel runs each dependency level concurrently and waits for the
// whole level before starting the next.
func (x *execution) runParallel(ctx context.Context) {
	def := x.plan.def
	limit := x.o.opts.policy.Scheduling.MaxParallel

	for n, level := range x.plan.levels {
		if !x.checkpoint(ctx) {
			return
		}
		x.o.opts.logger.Debugf("workflow %s: level %d: %v", def.Name, n, level)

		results := make([]models.StepResult, len(level))
		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, id := range level {
			step := def.Step(id)
			g.Go(func() error {
				results[i] = x.runStep(ctx, step)
				return nil
			})
		}
		_ = g.Wait()

		failed := false
		for _, r := range results {
			x.record(r)
			if r.Status == models.StepStatusFailed {
				failed = true
			}
		}
		if failed && !def.ContinueOnError {
			x.o.opts.logger.Infof("workflow %s: halting after failure in level %d", def.Name, n)
			return
		}
	}
}

func (x *execution) skip(step *models.WorkflowStep, reason string) {
	now := x.o.opts.clock()
	x.record(models.StepResult{
		StepID:    step.ID,
		Status:    models.StepStatusSkipped,
		StartTime: now,
		EndTime:   now,
		AgentName: step.Agent,
	})
	x.o.opts.logger.Debugf("step %s skipped: %s", step.ID, reason)
	x.emit(Event{Type: EventStepSkip, StepID: step.ID, Reason: reason})
}
