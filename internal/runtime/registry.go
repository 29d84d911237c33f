// Package runtime implements the agent registry: spawn, shutdown, subagent
// lineage, and the process-wide global permission tier shared by every
// agent the registry manages.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/permission"
)

// ErrNotRunning is returned by lifecycle operations addressed at a
// session id with no currently running agent.
var ErrNotRunning = errors.New("runtime: not running")

// AgentFn is the body of a running agent — typically the standard agent
// loop (internal/agentloop), but any function conforming to this shape can
// be spawned, which is what makes the echo-agent test scenario possible
// without pulling in an LLM provider.
type AgentFn func(ctx context.Context, in *Internals)

// Internals is everything an AgentFn needs: its own handle, the three
// permission tiers (session rules live on the handle's owner, local rules
// are seeded at spawn time, global rules are shared process-wide), the
// evaluator, and a back-reference to the registry for subagent spawning.
type Internals struct {
	Handle          *agentchan.Handle
	SessionID       string
	ParentSessionID *string
	SessionRules    *permission.RuleSet
	LocalRules      *permission.RuleSet
	GlobalRules     *permission.RuleSet
	Evaluator       *permission.Evaluator
	Registry        *Registry
}

type runningAgent struct {
	handle     *agentchan.Handle
	localRules *permission.RuleSet
	cancel     context.CancelFunc
	done       chan struct{}
}

// Registry is the shared registry of session_id -> running agent, plus the
// process-wide global permission tier and evaluator every spawned agent
// shares. Grounded on go-opencode's agent.Registry (RWMutex-protected map)
// generalized from a config registry to a running-task registry, and on
// session.Processor's sessions map for the spawn/cleanup lifecycle.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*runningAgent

	globalRules *permission.RuleSet
	evaluator   *permission.Evaluator
}

// NewRegistry creates an empty registry sharing one evaluator and one
// global rule tier across every agent it spawns.
func NewRegistry(evaluator *permission.Evaluator) *Registry {
	return &Registry{
		agents:      make(map[string]*runningAgent),
		globalRules: permission.NewRuleSet(),
		evaluator:   evaluator,
	}
}

// GlobalRules returns the process-wide permission tier.
func (r *Registry) GlobalRules() *permission.RuleSet {
	return r.globalRules
}

// Evaluator returns the shared permission evaluator.
func (r *Registry) Evaluator() *permission.Evaluator {
	return r.evaluator
}

// Spawn creates channels for sessionID, stores the handle in the registry,
// and runs fn as an independent goroutine, auto-removing the entry when fn
// returns.
func (r *Registry) Spawn(sessionID string, fn AgentFn) *agentchan.Handle {
	return r.spawn(sessionID, permission.NewRuleSet(), nil, fn)
}

// SpawnWithLocalRules is Spawn with the local permission tier seeded from
// rules instead of starting empty.
func (r *Registry) SpawnWithLocalRules(sessionID string, rules *permission.RuleSet, fn AgentFn) *agentchan.Handle {
	if rules == nil {
		rules = permission.NewRuleSet()
	}
	return r.spawn(sessionID, rules, nil, fn)
}

// SpawnSubagent spawns childSessionID linked to parentHandle: the parent
// is notified via its own output channel with SubAgentSpawned before the
// child's goroutine starts.
func (r *Registry) SpawnSubagent(parentHandle *agentchan.Handle, parentSessionID, childSessionID, agentType string, fn AgentFn) *agentchan.Handle {
	parent := parentSessionID
	parentHandle.Broadcast().Publish(agentchan.SubAgentSpawned{SessionID: childSessionID, AgentType: agentType})
	return r.spawn(childSessionID, permission.NewRuleSet(), &parent, fn)
}

func (r *Registry) spawn(sessionID string, localRules *permission.RuleSet, parentSessionID *string, fn AgentFn) *agentchan.Handle {
	handle := agentchan.NewHandle(sessionID)
	ctx, cancel := context.WithCancel(context.Background())

	entry := &runningAgent{
		handle:     handle,
		localRules: localRules,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	r.agents[sessionID] = entry
	r.mu.Unlock()

	internals := &Internals{
		Handle:          handle,
		SessionID:       sessionID,
		ParentSessionID: parentSessionID,
		SessionRules:    permission.NewRuleSet(),
		LocalRules:      localRules,
		GlobalRules:     r.globalRules,
		Evaluator:       r.evaluator,
		Registry:        r,
	}

	go func() {
		defer func() {
			handle.StateCell().Set(agentchan.Done{})
			r.mu.Lock()
			delete(r.agents, sessionID)
			r.mu.Unlock()
			close(entry.done)
		}()
		fn(ctx, internals)
	}()

	return handle
}

// Get returns the handle for a running agent, if any.
func (r *Registry) Get(sessionID string) (*agentchan.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[sessionID]
	if !ok {
		return nil, false
	}
	return a.handle, true
}

// IsRunning reports whether sessionID currently has a running agent.
func (r *Registry) IsRunning(sessionID string) bool {
	_, ok := r.Get(sessionID)
	return ok
}

// ListRunning returns the session ids of every currently running agent.
func (r *Registry) ListRunning() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown enqueues a Shutdown message for sessionID and waits for its
// goroutine to exit.
func (r *Registry) Shutdown(ctx context.Context, sessionID string) error {
	handle, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, sessionID)
	}
	if err := handle.Shutdown(ctx); err != nil {
		return err
	}
	return r.WaitFor(ctx, sessionID)
}

// ShutdownAll shuts down every currently running agent.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	for _, id := range r.ListRunning() {
		if err := r.Shutdown(ctx, id); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}
	return nil
}

// WaitFor blocks until sessionID's agent terminates or ctx is done. If the
// agent is not currently running, it returns immediately (there is nothing
// to wait for).
func (r *Registry) WaitFor(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	a, ok := r.agents[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll blocks until every currently running agent terminates or ctx is
// done, waiting on all of them concurrently rather than one at a time.
func (r *Registry) WaitAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range r.ListRunning() {
		id := id
		g.Go(func() error {
			return r.WaitFor(gctx, id)
		})
	}
	return g.Wait()
}

// Interrupt requests best-effort cancellation of sessionID's current turn.
func (r *Registry) Interrupt(ctx context.Context, sessionID string) error {
	handle, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, sessionID)
	}
	return handle.Interrupt(ctx)
}
