package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/foragen/foragen-cli/internal/agents"
	"github.com/foragen/foragen-cli/internal/api"
	"github.com/foragen/foragen-cli/internal/config"
	"github.com/foragen/foragen-cli/internal/history"
	"github.com/foragen/foragen-cli/internal/logging"
	"github.com/foragen/foragen-cli/internal/orchestrator"
	"github.com/foragen/foragen-cli/internal/store"
)

// app wires the configured collaborators for one command.
type app struct {
	cfg         *config.Config
	projectRoot string
	logger      *logging.Logger
}

func newApp(cfg *config.Config) *app {
	root := config.ProjectRoot()
	logger := logging.Global("foragen")
	if cfg.Logging.DebugFile {
		logger = logging.NewDebugLoggerForProject(root)
	}
	return &app{cfg: cfg, projectRoot: root, logger: logger}
}

// newStore opens the workflow store for the project and user levels.
func (a *app) newStore(opts ...store.Option) *store.Store {
	opts = append([]store.Option{store.WithLogger(a.logger.With("component", "store"))}, opts...)
	return store.New(store.Config{
		ProjectDir: store.ProjectDir(a.projectRoot),
		UserDir:    store.UserDir(config.UserConfigDir()),
		BuiltinDir: a.cfg.Workflows.BuiltinDir,
		CacheTTL:   a.cfg.Workflows.CacheTTL,
	}, opts...)
}

// newAgentStore resolves agents from the project and user levels, with the
// general-purpose agent always available.
func (a *app) newAgentStore() *agents.FileStore {
	s := agents.NewFileStore(
		agents.ProjectDir(a.projectRoot),
		agents.UserDir(config.UserConfigDir()),
	)
	s.Register(agents.DefaultAgent())
	return s
}

// newClient creates the Anthropic client from the credential settings.
func (a *app) newClient() (*api.Client, error) {
	cc := api.ClientConfig{
		Model:         anthropic.Model(a.cfg.Anthropic.Model),
		UseAWSBedrock: a.cfg.Anthropic.Bedrock,
		AWSRegion:     a.cfg.Anthropic.AWSRegion,
		AWSProfile:    a.cfg.Anthropic.AWSProfile,
	}
	if !cc.UseAWSBedrock {
		key, err := config.ResolveCredentials(a.cfg).RequireAPIKey()
		if err != nil {
			return nil, err
		}
		cc.APIKey = key
	}
	client, err := api.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// newOrchestrator builds an orchestrator that runs agents on client.
func (a *app) newOrchestrator(client *api.Client) *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.RequiredConfig{
			Agents:   a.newAgentStore(),
			Executor: api.NewAgentExecutor(client, a.logger.With("component", "agent")),
		},
		orchestrator.WithPolicy(a.cfg.Policy()),
		orchestrator.WithLogger(a.logger.With("component", "orchestrator")),
	)
}

// openHistory opens the run history database, or returns nil when history
// is disabled.
func (a *app) openHistory() (*history.DB, error) {
	if !a.cfg.History.Enabled {
		return nil, nil
	}
	path := a.cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}
