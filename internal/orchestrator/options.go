package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/foragen/foragen-cli/internal/agents"
	"github.com/foragen/foragen-cli/internal/logging"
	"github.com/foragen/foragen-cli/internal/orchestrator/policy"
)

// RequiredConfig contains the collaborators an Orchestrator cannot run without.
type RequiredConfig struct {
	// Agents resolves the agent named by each step.
	Agents agents.Store
	// Executor runs a step's task with the resolved agent.
	Executor agents.Executor
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	policy   *policy.Config
	logger   *logging.Logger
	clock    func() time.Time
	newRunID func() string
}

// WithPolicy sets the execution policy.
func WithPolicy(p *policy.Config) Option {
	return func(o *orchestratorOptions) { o.policy = p }
}

// WithMaxParallel caps concurrent steps within a dependency level.
func WithMaxParallel(n int) Option {
	return func(o *orchestratorOptions) {
		p := *policy.Default()
		if o.policy != nil {
			p = *o.policy
		}
		p.Scheduling.MaxParallel = n
		o.policy = &p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithClock sets the time source used for step and run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.clock = now }
}

// WithRunIDGenerator sets the function generating run ids.
func WithRunIDGenerator(fn func() string) Option {
	return func(o *orchestratorOptions) { o.newRunID = fn }
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		policy:   policy.Default(),
		logger:   logging.NopLogger(),
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
}
