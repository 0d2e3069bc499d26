package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vincentdeneuf/agentine/llm"
)

// fanoutNotice marks an internal fan-out response appended to the history
// for the speaker. The marker keeps these turns out of user-facing output.
const fanoutNotice = "**%s agent** response (NOT VISIBLE TO USER):\n\n%s"

// Legion routes a conversation between agents. A selector agent picks, by
// name, which registered agents should respond. Exactly one pick delegates
// the whole request to that agent. Any other count fans out, folds the
// responses into the history as internal turns, and has a speaker agent
// compose the reply the user sees.
type Legion struct {
	Speaker  *Agent
	Selector *Agent
	Index    *Index

	logger zerolog.Logger
}

// LegionOption is a functional option for configuring a Legion.
type LegionOption func(*Legion)

// WithLegionLogger sets the logger used for routing decisions.
func WithLegionLogger(logger zerolog.Logger) LegionOption {
	return func(l *Legion) {
		l.logger = logger.With().Str("component", "legion").Logger()
	}
}

// NewLegion creates a legion from its three collaborators. The selector is
// expected to run in json_object mode and reply with a "selections" list of
// agent names.
func NewLegion(speaker, selector *Agent, index *Index, opts ...LegionOption) (*Legion, error) {
	if speaker == nil {
		return nil, llm.NewConfigurationError("legion requires a speaker agent")
	}
	if selector == nil {
		return nil, llm.NewConfigurationError("legion requires a selector agent")
	}
	if index == nil {
		return nil, llm.NewConfigurationError("legion requires an agent index")
	}
	l := &Legion{
		Speaker:  speaker,
		Selector: selector,
		Index:    index,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// selection is one routed agent with the name the selector used for it.
type selection struct {
	name  string
	agent *Agent
}

// prepare runs the selector and either returns the lone delegate, or fans out
// to every selected agent and returns the history augmented with their
// annotated responses. The caller's history slice is never modified.
func (l *Legion) prepare(ctx context.Context, query string, history []llm.Message) ([]llm.Message, *Agent, error) {
	working := make([]llm.Message, len(history))
	copy(working, history)

	selectorResult, err := l.Selector.Work(ctx, query, working, nil)
	if err != nil {
		return nil, nil, err
	}
	names, err := selectionNames(selectorResult)
	if err != nil {
		return nil, nil, err
	}

	selected := make([]selection, 0, len(names))
	for _, name := range names {
		if a, ok := l.Index.Get(name); ok {
			selected = append(selected, selection{name: name, agent: a})
		}
	}
	l.logger.Debug().
		Strs("selections", names).
		Int("resolved", len(selected)).
		Msg("Selector chose agents")

	if len(selected) == 1 {
		l.logger.Debug().Str("agent", selected[0].name).Msg("Routing to a single agent")
		return working, selected[0].agent, nil
	}

	agents := make([]*Agent, len(selected))
	for i, s := range selected {
		agents[i] = s.agent
	}
	results, err := NewGroup(agents...).Work(ctx, query, working, nil)
	if err != nil {
		return nil, nil, err
	}
	for i := range results {
		results[i].Content = fmt.Sprintf(fanoutNotice, selected[i].name, results[i].Content)
		results[i].Meta.RecordChange("content")
		working = append(working, results[i])
	}
	return working, nil, nil
}

// selectionNames extracts the list of agent names from a selector response.
func selectionNames(result *llm.Message) ([]string, error) {
	if result.Data == nil {
		return nil, llm.NewProtocolError("selector response missing data")
	}
	raw, ok := result.Data["selections"]
	if !ok {
		return nil, llm.NewProtocolError("selector data missing selections key")
	}
	switch list := raw.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		names := make([]string, 0, len(list))
		for _, v := range list {
			name, ok := v.(string)
			if !ok {
				return nil, llm.NewProtocolError("selector selection is not a string, got %T", v)
			}
			names = append(names, name)
		}
		return names, nil
	default:
		return nil, llm.NewProtocolError("selector selections is not a list, got %T", raw)
	}
}

// Work routes the query and returns the reply the user should see. A lone
// delegate answers the query directly; otherwise the speaker answers from
// the augmented history alone.
func (l *Legion) Work(ctx context.Context, query string, history []llm.Message) (*llm.Message, error) {
	working, delegate, err := l.prepare(ctx, query, history)
	if err != nil {
		return nil, err
	}
	if delegate != nil {
		return delegate.Work(ctx, query, working, nil)
	}
	return l.Speaker.Work(ctx, "", working, nil)
}

// Stream routes the query like Work and streams the terminal response. Only
// the lone delegate or the speaker ever streams; fan-out responses are
// always fully materialized first.
func (l *Legion) Stream(ctx context.Context, query string, history []llm.Message) (llm.Stream, error) {
	working, delegate, err := l.prepare(ctx, query, history)
	if err != nil {
		return nil, err
	}
	if delegate != nil {
		return delegate.Stream(ctx, query, working, nil)
	}
	return l.Speaker.Stream(ctx, "", working, nil)
}
