// Package graph provides a dependency graph for workflow step scheduling.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/foragen/foragen-cli/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among the steps.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents the "depends on" relationships between steps.
// It is built once from a definition and keeps an explicit adjacency and
// indegree representation so layering runs in O(steps + edges).
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the declared position of each step id.
	order map[string]int
	// ids holds step ids in declared order.
	ids []string
	// edges maps step id to the ids it depends on.
	edges map[string][]string
	// dependents maps step id to the ids that depend on it.
	dependents map[string][]string
	debugLog   func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		order:      make(map[string]int),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		debugLog:   func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from a slice of steps.
// Returns an error if a step id is duplicated or a dependency references an
// unknown step. Cycles are not an error here; Levels reports them.
func (g *DependencyGraph) Build(steps []models.WorkflowStep) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d steps", len(steps))

	for i, step := range steps {
		if _, dup := g.order[step.ID]; dup {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		g.order[step.ID] = i
		g.ids = append(g.ids, step.ID)
		g.edges[step.ID] = nil
	}

	for _, step := range steps {
		seen := make(map[string]bool, len(step.DependsOn))
		for _, depID := range step.DependsOn {
			if _, exists := g.order[depID]; !exists {
				return fmt.Errorf("step %s depends on unknown step %s", step.ID, depID)
			}
			if seen[depID] {
				continue
			}
			seen[depID] = true
			g.edges[step.ID] = append(g.edges[step.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], step.ID)
		}
	}

	g.debugLog("[graph.Build] edges: %v", g.edges)
	return nil
}

// Levels partitions the steps into dependency levels with Kahn's algorithm.
// Level 0 holds steps without dependencies; every step of level N+1 depends
// only on steps of levels 0..N. Steps within a level keep declared order.
// Returns ErrCycleDetected (naming the unresolved steps) if a cycle exists.
func (g *DependencyGraph) Levels() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.ids))
	var current []string
	for _, id := range g.ids {
		indegree[id] = len(g.edges[id])
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	assigned := 0
	for len(current) > 0 {
		levels = append(levels, current)
		assigned += len(current)

		var next []string
		for _, id := range current {
			for _, dep := range g.dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return g.order[next[i]] < g.order[next[j]] })
		current = next
	}

	if assigned < len(g.ids) {
		var unresolved []string
		for _, id := range g.ids {
			if indegree[id] > 0 {
				unresolved = append(unresolved, id)
			}
		}
		g.debugLog("[graph.Levels] cycle among %v", unresolved)
		return nil, fmt.Errorf("%w: steps %s", ErrCycleDetected, strings.Join(unresolved, ", "))
	}

	g.debugLog("[graph.Levels] %d levels: %v", len(levels), levels)
	return levels, nil
}
