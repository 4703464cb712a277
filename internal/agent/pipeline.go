package agent

import (
	"context"

	"github.com/google/uuid"

	"briefsmith/internal/generation"
	"briefsmith/internal/logging"
	"briefsmith/internal/state"
	"briefsmith/internal/tasks"
)

// Pipeline wires the four stages to their external capabilities.
type Pipeline struct {
	searcher  tasks.Searcher
	llm       generation.Client
	corpusDir string
}

// New creates a pipeline over a retrieval engine, a generation client, and
// the corpus directory used by postprocess hooks.
func New(searcher tasks.Searcher, llm generation.Client, corpusDir string) *Pipeline {
	return &Pipeline{searcher: searcher, llm: llm, corpusDir: corpusDir}
}

// RunTask executes plan, research, draft, and verify over a fresh state
// and returns the terminal state. The pipeline always terminates with a
// well-formed state; stage errors degrade to sentinel values.
func (p *Pipeline) RunTask(ctx context.Context, taskText, taskKey string) *state.State {
	timer := logging.StartTimer(logging.CategoryAgent, "RunTask")
	defer timer.Stop()

	st := state.New(taskText, taskKey)
	st.Meta["run_id"] = uuid.NewString()

	logging.Agent("run %v: task_key=%q", st.Meta["run_id"], taskKey)

	p.plan(st)
	p.research(ctx, st)
	p.draft(ctx, st)
	p.verify(st)

	return st
}
