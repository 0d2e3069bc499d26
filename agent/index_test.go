package agent

import (
	"testing"

	"github.com/vincentdeneuf/agentine/llm"
)

func newBareAgent(t *testing.T, name string) *Agent {
	t.Helper()
	return newTestAgent(t, name, &fakeClient{})
}

func TestIndexAddGetAndLen(t *testing.T) {
	idx := NewIndex()
	alpha := newBareAgent(t, "alpha")
	idx.Add("alpha", alpha, false)

	if got := idx.Len(); got != 1 {
		t.Errorf("Expected 1 agent, got %d", got)
	}
	got, ok := idx.Get("alpha")
	if !ok || got != alpha {
		t.Errorf("Expected to get alpha back, got %v (ok=%v)", got, ok)
	}
	if _, ok := idx.Get("ghost"); ok {
		t.Error("Expected ghost to be absent")
	}
	if _, ok := idx.Default(); ok {
		t.Error("Expected no default until one is set")
	}
}

func TestIndexLastAddWins(t *testing.T) {
	idx := NewIndex()
	first := newBareAgent(t, "alpha")
	second := newBareAgent(t, "alpha")
	idx.Add("alpha", first, true)
	idx.Add("alpha", second, false)

	got, _ := idx.Get("alpha")
	if got != second {
		t.Error("Expected the second add to replace the first")
	}
	def, ok := idx.Default()
	if !ok || def != second {
		t.Error("Expected the default to follow the name to the new agent")
	}
}

func TestIndexRemove(t *testing.T) {
	idx := NewIndex()
	idx.Add("alpha", newBareAgent(t, "alpha"), true)
	idx.Add("beta", newBareAgent(t, "beta"), false)

	if err := idx.Remove("ghost"); !llm.IsNotFound(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
	if err := idx.Remove("beta"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := idx.Default(); !ok {
		t.Error("Expected the default to survive removing a non-default entry")
	}
	if err := idx.Remove("alpha"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := idx.Default(); ok {
		t.Error("Expected removing the default to clear it")
	}
	if got := idx.Len(); got != 0 {
		t.Errorf("Expected an empty index, got %d entries", got)
	}
}

func TestIndexSetDefault(t *testing.T) {
	idx := NewIndex()
	beta := newBareAgent(t, "beta")
	idx.Add("alpha", newBareAgent(t, "alpha"), true)
	idx.Add("beta", beta, false)

	if err := idx.SetDefault("ghost"); !llm.IsNotFound(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
	if err := idx.SetDefault("beta"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	def, ok := idx.Default()
	if !ok || def != beta {
		t.Error("Expected beta to be the default")
	}
}

func TestIndexNamesSorted(t *testing.T) {
	idx := NewIndex()
	for _, name := range []string{"gamma", "alpha", "beta"} {
		idx.Add(name, newBareAgent(t, name), false)
	}

	names := idx.Names()
	expected := []string{"alpha", "beta", "gamma"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d names, got %d", len(expected), len(names))
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("Name %d: expected %q, got %q", i, want, names[i])
		}
	}
}

func TestIndexFind(t *testing.T) {
	idx := NewIndex()
	alpha := newBareAgent(t, "alpha")
	beta := newBareAgent(t, "beta")
	idx.Add("alpha", alpha, false)
	idx.Add("beta", beta, false)

	found := idx.Find([]string{"beta", "ghost", "alpha", "beta"})
	expected := []*Agent{beta, alpha, beta}
	if len(found) != len(expected) {
		t.Fatalf("Expected %d agents, got %d", len(expected), len(found))
	}
	for i, want := range expected {
		if found[i] != want {
			t.Errorf("Agent %d: expected %s, got %s", i, want.Name, found[i].Name)
		}
	}
}
