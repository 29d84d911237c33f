// Package agentloop implements the standard agent turn: receive input,
// run pre-turn hooks and attachment expansion, call the LLM with caching
// hints, stream the response while honoring interrupts, dispatch tool
// calls, and loop until the assistant stops calling tools or the
// iteration cap is reached. Grounded on go-opencode's session.Processor
// runLoop, generalized from its single-provider, single-session shape to
// runtime.AgentFn's contract so it can run as any spawned agent, top-level
// or subagent.
package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/attachment"
	"github.com/vibeworks/agentcore/internal/hook"
	"github.com/vibeworks/agentcore/internal/llm"
	"github.com/vibeworks/agentcore/internal/metrics"
	"github.com/vibeworks/agentcore/internal/naming"
	"github.com/vibeworks/agentcore/internal/runtime"
	"github.com/vibeworks/agentcore/internal/session"
	"github.com/vibeworks/agentcore/internal/toolexec"
	"github.com/vibeworks/agentcore/pkg/content"
)

// go-opencode's MaxSteps/retry constants (loop.go), reused verbatim except
// where noted.
const (
	// DefaultMaxToolIterations is the per-turn tool-loop cap (step 6).
	// go-opencode's MaxSteps is 50, comfortably above a sensible floor for
	// an agent that should keep working across many tool calls.
	DefaultMaxToolIterations = 50

	retryInitialInterval    = time.Second
	retryMaxInterval        = 30 * time.Second
	retryMaxElapsedTime     = 2 * time.Minute
	retryRandomizationFactor = 0.5
	retryMultiplier         = 2.0
	retryMaxAttempts        = 3
)

// ContextInjector appends synthetic system-reminder content blocks to the
// message list sent to the LLM for one call, without altering what gets
// persisted to session history.
type ContextInjector func(ctx context.Context, history []content.Message) []content.Block

// Config is everything a Loop needs to run one kind of agent.
type Config struct {
	Provider llm.Provider
	Model    string

	SystemPrompt string
	Tools        []llm.ToolDefinition

	MaxTokens      int
	Temperature    float64
	ThinkingBudget int

	// MaxToolIterations caps step 6's loop-or-end decision. Zero means
	// DefaultMaxToolIterations.
	MaxToolIterations int

	// EnableCaching places cache breakpoints on outgoing requests.
	EnableCaching bool

	// EnableCompaction runs shouldCompact/compactMessages before each LLM
	// call, replacing the turn's in-memory history with the newly trimmed
	// history for the rest of that turn's requests. The session's persisted
	// history is not rewritten.
	EnableCompaction bool

	WorkDir string

	// ContextInjectors run in order after attachment expansion; their
	// combined output becomes one synthetic user message appended to the
	// copy of history sent to the LLM.
	ContextInjectors []ContextInjector

	// Namer generates a conversation title after the first turn completes,
	// if non-nil. AutoName additionally requires the session's title still be
	// empty or naming.DefaultTitle and the session not be a subsession
	// (naming.ShouldGenerate).
	Namer   *naming.Namer
	AutoName bool

	// Metrics and Tracer record agent activity when set; nil leaves this
	// Loop unmonitored.
	Metrics *metrics.Metrics
	Tracer  *metrics.Tracer
}

func (c Config) maxToolIterations() int {
	if c.MaxToolIterations > 0 {
		return c.MaxToolIterations
	}
	return DefaultMaxToolIterations
}

// Loop is the standard agent turn, bound to one session's storage and
// shared tool-execution machinery.
type Loop struct {
	store    *session.Store
	executor *toolexec.Executor
	hooks    *hook.Registry
	cfg      Config
}

// New builds a Loop. The same Loop value (and its Config) can back every
// agent an runtime.Registry spawns; per-session state lives in the
// session.Store and the runtime.Internals passed to Run, not in Loop.
func New(store *session.Store, executor *toolexec.Executor, hooks *hook.Registry, cfg Config) *Loop {
	return &Loop{store: store, executor: executor, hooks: hooks, cfg: cfg}
}

// Run is a runtime.AgentFn: the outer dispatch loop of step 1, handling
// one turn per UserInput message until Shutdown or ctx cancellation.
func (l *Loop) Run(ctx context.Context, in *runtime.Internals) {
	kind := agentKind(in)
	l.cfg.Metrics.AgentStarted(kind)
	defer l.cfg.Metrics.AgentStopped(kind, "exited")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in.Handle.InputReceive():
			if !ok {
				return
			}
			switch m := msg.(type) {
			case agentchan.UserInput:
				if l.runTurn(ctx, in, m.Text) {
					return
				}
			case agentchan.ShutdownMsg:
				return
			case agentchan.InterruptMsg:
				// Idle agent: nothing in flight to interrupt.
			default:
				// Response keyed to a request this loop isn't awaiting
				// right now (step 1's "drop" rule).
			}
		}
	}
}

// runTurn implements steps 2 through 7 of one turn. The returned bool
// reports whether a Shutdown arrived mid-turn (while waiting on the model
// or a tool's permission check) and was absorbed here rather than left on
// the input queue for Run's dispatch loop to see again — Run must treat a
// true return the same as an explicit ShutdownMsg and exit.
func (l *Loop) runTurn(ctx context.Context, in *runtime.Internals, userText string) bool {
	handle := in.Handle

	var endSpan func(error)
	ctx, endSpan = l.cfg.Tracer.TraceAgentTurn(ctx, agentKind(in), l.cfg.Model)
	defer func() { endSpan(nil) }()

	hookResult, err := l.hooks.Run(ctx, hook.UserPromptSubmit, "", hook.Payload{Message: userText})
	if err != nil {
		l.fail(handle, err.Error())
		return false
	}
	if hookResult.Denied() {
		msg := hookResult.Message
		if msg == "" {
			msg = "blocked by user-prompt-submit hook"
		}
		l.fail(handle, msg)
		return false
	}
	if hookResult.Message != "" {
		userText = hookResult.Message
	}

	userMsg := attachment.Expand(userText, l.cfg.WorkDir)
	if err := l.store.AppendMessage(ctx, in.SessionID, userMsg); err != nil {
		l.fail(handle, err.Error())
		return false
	}

	history, err := l.store.LoadMessages(ctx, in.SessionID)
	if err != nil {
		l.fail(handle, err.Error())
		return false
	}
	isFirstTurn := len(history) == 1

	handle.StateCell().Set(agentchan.Processing{})

	rules := toolexec.RuleTiers{Session: in.SessionRules, Local: in.LocalRules, Global: in.GlobalRules}

	for iteration := 0; ; iteration++ {
		if iteration >= l.cfg.maxToolIterations() {
			l.fail(handle, "max tool iterations reached")
			return false
		}

		if l.cfg.EnableCompaction && shouldCompact(history) {
			compacted, err := compactMessages(ctx, l.cfg.Provider, l.cfg.Model, history)
			if err == nil {
				history = compacted
				l.cfg.Metrics.RecordCompaction(agentKind(in))
			}
			// A failed compaction attempt is not fatal to the turn — the
			// request just goes out uncompacted, same as go-opencode's
			// runLoop swallowing the error and continuing.
		}

		assistantMsg, interrupted, shutdown, err := l.callModel(ctx, handle, history)
		if err != nil {
			l.fail(handle, err.Error())
			return false
		}

		if err := l.store.AppendMessage(ctx, in.SessionID, assistantMsg); err != nil {
			l.fail(handle, err.Error())
			return false
		}
		history = append(history, assistantMsg)

		if interrupted {
			handle.StateCell().Set(agentchan.Idle{})
			handle.Broadcast().Publish(agentchan.DoneChunk{})
			return shutdown
		}

		toolUses := assistantMsg.ToolUses()
		if len(toolUses) == 0 {
			handle.StateCell().Set(agentchan.Idle{})
			handle.Broadcast().Publish(agentchan.DoneChunk{})
			if isFirstTurn {
				l.maybeGenerateName(ctx, in, userMsg.PlainText())
			}
			return false
		}

		resultMsg, toolsInterrupted, toolsShutdown := l.runTools(ctx, handle, rules, toolUses)
		if err := l.store.AppendMessage(ctx, in.SessionID, resultMsg); err != nil {
			l.fail(handle, err.Error())
			return false
		}
		history = append(history, resultMsg)

		if toolsInterrupted {
			marker := content.NewTextMessage(content.RoleAssistant, content.InterruptMarkerText)
			l.store.AppendMessage(ctx, in.SessionID, marker)
			handle.StateCell().Set(agentchan.Idle{})
			handle.Broadcast().Publish(agentchan.DoneChunk{})
			return toolsShutdown
		}

		// Step 6: tools ran cleanly and the cap hasn't been hit — loop
		// back to step 3 with the updated history.
	}
}

// agentKind labels metrics/traces by whether an agent is top-level or a
// spawned subagent.
func agentKind(in *runtime.Internals) string {
	if in.ParentSessionID != nil {
		return "subagent"
	}
	return "top-level"
}

func (l *Loop) fail(handle *agentchan.Handle, message string) {
	handle.StateCell().Set(agentchan.ErrorState{Message: message})
	handle.Broadcast().Publish(agentchan.ErrorChunk{Message: message})
	handle.Broadcast().Publish(agentchan.DoneChunk{})
}

// maybeGenerateName runs the out-of-loop naming step (step 7): best-effort,
// never blocking or failing the turn that already completed.
func (l *Loop) maybeGenerateName(ctx context.Context, in *runtime.Internals, firstUserText string) {
	if !l.cfg.AutoName || l.cfg.Namer == nil {
		return
	}
	sess, err := l.store.Get(ctx, in.SessionID)
	if err != nil {
		return
	}
	if !naming.ShouldGenerate(sess.Title, sess.IsSubsession()) {
		return
	}
	title := l.cfg.Namer.Generate(ctx, firstUserText)
	if title == "" {
		return
	}
	in.Handle.SetConversationName(title)
	_ = l.store.RenameTitle(ctx, in.SessionID, title, time.Now().UnixMilli())
}

// callModel implements step 3 (build the request) and step 4 (consume the
// stream), retrying the whole attempt with go-opencode's exponential
// backoff (newRetryBackoff) on any non-interrupt error. A Shutdown arriving
// mid-stream is never retried — it's reported back via the shutdown return
// rather than as an error, since it's an orderly exit, not an API failure.
func (l *Loop) callModel(ctx context.Context, handle *agentchan.Handle, history []content.Message) (msg content.Message, interrupted, shutdown bool, err error) {
	start := time.Now()
	defer func() { l.cfg.Metrics.RecordLLMTurn(l.cfg.Model, time.Since(start)) }()

	op := func() error {
		var streamErr error
		msg, interrupted, shutdown, streamErr = l.streamTurn(ctx, handle, history)
		if shutdown {
			return backoff.Permanent(streamErr)
		}
		return streamErr
	}

	if retryErr := backoff.Retry(op, newRetryBackoff(ctx)); retryErr != nil && !shutdown {
		return content.Message{}, false, false, retryErr
	}
	if shutdown {
		return msg, interrupted, true, nil
	}
	return msg, interrupted, false, nil
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = retryRandomizationFactor
	b.Multiplier = retryMultiplier
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

type blockAccum struct {
	kind     llm.BlockKind
	text     string
	toolID   string
	toolName string
	toolArgs string
}

type streamResult struct {
	ev  llm.StreamEvent
	err error
}

// streamTurn makes one LLM call and consumes its stream, forwarding deltas
// and honoring a concurrent Interrupt/Shutdown arriving on the agent's own
// input queue — the non-blocking interrupt handling step 4 requires.
func (l *Loop) streamTurn(ctx context.Context, handle *agentchan.Handle, history []content.Message) (content.Message, bool, bool, error) {
	req := l.buildRequest(ctx, history)

	reader, err := l.cfg.Provider.Stream(ctx, req)
	if err != nil {
		return content.Message{}, false, false, err
	}
	defer reader.Close()

	events := make(chan streamResult)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			ev, err := reader.Next()
			select {
			case events <- streamResult{ev, err}:
			case <-stop:
				// streamTurn returned already (interrupt, shutdown, or
				// ctx cancellation) — nobody will ever read this value,
				// so stop instead of blocking forever on the send.
				return
			}
			if err != nil {
				return
			}
			if _, ok := ev.(llm.MessageStop); ok {
				return
			}
		}
	}()

	blocks := map[int]*blockAccum{}
	var order []int
	interrupted := false
	shutdown := false

loop:
	for {
		select {
		case <-ctx.Done():
			return content.Message{}, false, false, ctx.Err()
		case imsg := <-handle.InputReceive():
			switch imsg.(type) {
			case agentchan.InterruptMsg:
				interrupted = true
				break loop
			case agentchan.ShutdownMsg:
				interrupted = true
				shutdown = true
				break loop
			default:
				// Not awaited right now; drop.
			}
		case sr := <-events:
			if sr.err != nil {
				if sr.err == io.EOF {
					break loop
				}
				return content.Message{}, false, false, sr.err
			}
			switch ev := sr.ev.(type) {
			case llm.MessageStart:
			case llm.ContentBlockStart:
				blocks[ev.Index] = &blockAccum{kind: ev.Kind, toolID: ev.ToolUseID, toolName: ev.ToolName}
				order = append(order, ev.Index)
			case llm.TextDelta:
				blocks[ev.Index].text += ev.Text
				handle.Broadcast().Publish(agentchan.TextDelta{Text: ev.Text})
			case llm.ThinkingDelta:
				blocks[ev.Index].text += ev.Text
				handle.Broadcast().Publish(agentchan.ThinkingDelta{Text: ev.Text})
			case llm.InputJSONDelta:
				blocks[ev.Index].toolArgs += ev.PartialJSON
			case llm.SignatureDelta:
				// No adapter in this module ever emits one (see
				// StreamEvent's doc comment); nothing to accumulate.
			case llm.ContentBlockStop:
			case llm.MessageDelta:
			case llm.MessageStop:
				break loop
			case llm.Ping:
			case llm.StreamError:
				return content.Message{}, false, false, ev.Err
			}
		}
	}

	msg := buildMessage(blocks, order, interrupted)
	return msg, interrupted, shutdown, nil
}

func buildMessage(blocks map[int]*blockAccum, order []int, interrupted bool) content.Message {
	var out []content.Block
	for _, idx := range order {
		b := blocks[idx]
		switch b.kind {
		case llm.BlockText:
			if b.text != "" {
				out = append(out, content.Text{Text: b.text})
			}
		case llm.BlockThinking:
			// Interrupt discards any thinking block: this module never
			// observes a Signature (llm.SignatureDelta is never emitted),
			// so a thinking block can never be distinguished as "complete"
			// the way a signature check would require.
			if interrupted {
				continue
			}
			out = append(out, content.Thinking{Thinking: b.text})
		case llm.BlockToolUse:
			if interrupted {
				continue
			}
			args := b.toolArgs
			if args == "" {
				args = "{}"
			}
			out = append(out, content.ToolUse{ID: b.toolID, Name: b.toolName, Input: json.RawMessage(args)})
		}
	}
	if interrupted {
		out = append(out, content.Text{Text: content.InterruptMarkerText})
	}
	return content.Message{Role: content.RoleAssistant, Content: out}
}

// buildRequest implements step 3: assemble the provider request, applying
// the three cache breakpoints (last tool definition, system prompt, last
// content block of the last history message) when caching is enabled, and
// running context injectors over a copy of history that is never
// persisted back to the session.
func (l *Loop) buildRequest(ctx context.Context, history []content.Message) llm.Request {
	tools := l.cfg.Tools
	messages := append([]content.Message(nil), history...)

	if len(l.cfg.ContextInjectors) > 0 {
		var injected []content.Block
		for _, inject := range l.cfg.ContextInjectors {
			injected = append(injected, inject(ctx, history)...)
		}
		if len(injected) > 0 {
			messages = append(messages, content.Message{Role: content.RoleUser, Content: injected})
		}
	}

	if l.cfg.EnableCaching {
		// Tool-list caching has no per-ToolDefinition field to set (it's
		// expressed at the wire layer, not the content-block layer) — the
		// CacheTools flag on the returned Request is the signal.
		messages = markLastBlockCacheable(messages)
	}

	return llm.Request{
		Model:          l.cfg.Model,
		System:         l.cfg.SystemPrompt,
		Messages:       messages,
		Tools:          tools,
		MaxTokens:      l.cfg.MaxTokens,
		Temperature:    l.cfg.Temperature,
		ThinkingBudget: l.cfg.ThinkingBudget,
		CacheSystem:    l.cfg.EnableCaching,
		CacheTools:     l.cfg.EnableCaching,
	}
}

func markLastBlockCacheable(messages []content.Message) []content.Message {
	if len(messages) == 0 {
		return messages
	}
	last := messages[len(messages)-1]
	if len(last.Content) == 0 {
		return messages
	}
	newContent := append([]content.Block(nil), last.Content...)
	lastIdx := len(newContent) - 1
	switch b := newContent[lastIdx].(type) {
	case content.Text:
		b.CacheControl = content.EphemeralCache
		newContent[lastIdx] = b
	case content.ToolUse:
		b.CacheControl = content.EphemeralCache
		newContent[lastIdx] = b
	case content.ToolResult:
		b.CacheControl = content.EphemeralCache
		newContent[lastIdx] = b
	}
	messages = append([]content.Message(nil), messages...)
	messages[len(messages)-1] = content.Message{Role: last.Role, Content: newContent}
	return messages
}

// runTools implements step 5: run every tool-use block to completion in
// order, or until one is interrupted/shut down, in which case every
// remaining tool-use gets a synthetic Interrupted result without ever
// being dispatched.
func (l *Loop) runTools(ctx context.Context, handle *agentchan.Handle, rules toolexec.RuleTiers, uses []content.ToolUse) (msg content.Message, interrupted, shutdown bool) {
	results := make([]content.Block, 0, len(uses))
	nextUnfilled := len(uses)

	for i, use := range uses {
		result, err := l.executor.Execute(ctx, handle, rules, l.cfg.WorkDir, use)
		if err != nil {
			// ctx.Err() or toolexec.ErrShutdown: this tool never
			// completed, so it and everything after it are unstarted.
			interrupted = true
			shutdown = errors.Is(err, toolexec.ErrShutdown)
			nextUnfilled = i
			break
		}
		results = append(results, result)
		if isInterruptedResult(result) {
			interrupted = true
			nextUnfilled = i + 1
			break
		}
	}

	for j := nextUnfilled; j < len(uses); j++ {
		results = append(results, toolexec.InterruptedResult(uses[j].ID))
	}

	return content.Message{Role: content.RoleUser, Content: results}, interrupted, shutdown
}

func isInterruptedResult(r content.ToolResult) bool {
	if !r.IsError || len(r.Content) != 1 {
		return false
	}
	t, ok := r.Content[0].(content.Text)
	return ok && t.Text == "Interrupted"
}
