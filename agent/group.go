package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/vincentdeneuf/agentine/llm"
)

// Group fans a single request out to several agents at once.
type Group struct {
	Agents []*Agent
}

// NewGroup creates a group over the given agents.
func NewGroup(agents ...*Agent) *Group {
	return &Group{Agents: agents}
}

// Work sends the same query, history and data to every member concurrently
// and returns the responses in member order. The first failure cancels the
// remaining members and fails the whole call.
func (g *Group) Work(ctx context.Context, query string, history []llm.Message, data map[string]any) ([]llm.Message, error) {
	results := make([]llm.Message, len(g.Agents))
	if len(g.Agents) == 0 {
		return results, nil
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, member := range g.Agents {
		wg.Add(1)
		go func(i int, member *Agent) {
			defer wg.Done()
			result, err := member.Work(groupCtx, query, history, data)
			if err != nil {
				once.Do(func() {
					firstErr = fmt.Errorf("group member %d: %w", i, err)
				})
				cancel()
				return
			}
			results[i] = *result
		}(i, member)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
