package eval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefsmith/internal/state"
)

type fixedRunner struct {
	output string
	calls  []string
}

func (f *fixedRunner) RunTask(_ context.Context, taskText, taskKey string) *state.State {
	f.calls = append(f.calls, taskKey)
	st := state.New(taskText, taskKey)
	st.FinalOutput = f.output
	return st
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	content := `{"id":"c1","task_key":"default","task_text":"summarize","must_contain":["Citations"]}

{"id":"c2","task_key":"compare_approaches","prompt":"compare","must_include":["Option A"],"must_not_include":["[1]"]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cases, err := LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "summarize", cases[0].Task())
	assert.Equal(t, []string{"Citations"}, cases[0].Required())

	// prompt is accepted as the task text spelling.
	assert.Equal(t, "compare", cases[1].Task())
	assert.Equal(t, []string{"Option A"}, cases[1].Required())
	assert.Equal(t, []string{"[1]"}, cases[1].Forbidden())
}

func TestLoadCases_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0644))

	_, err := LoadCases(path)
	require.Error(t, err)
}

func TestLoadCases_MissingFile(t *testing.T) {
	_, err := LoadCases(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}

func TestScore_CaseInsensitive(t *testing.T) {
	c := Case{
		ID:             "c1",
		MustContain:    []string{"option a"},
		MustNotContain: []string{"lorem"},
	}

	res := Score(c, "## Option A: 2-4 bullets")
	assert.True(t, res.Passed)
	assert.Empty(t, res.Failures)
}

func TestScore_Failures(t *testing.T) {
	c := Case{
		ID:             "c1",
		MustContain:    []string{"Citations"},
		MustNotContain: []string{"[1]"},
	}

	res := Score(c, "Some text with a numeric citation [1] and no list.")
	assert.False(t, res.Passed)
	require.Len(t, res.Failures, 2)
	assert.Contains(t, res.Failures[0], "Missing required text: Citations")
	assert.Contains(t, res.Failures[1], "Found forbidden text: [1]")
}

func TestRun_Summary(t *testing.T) {
	runner := &fixedRunner{output: "Final output with Citations (doc:a.md#chunk_0)"}

	cases := []Case{
		{ID: "pass", TaskKey: "default", TaskText: "t", MustContain: []string{"citations"}},
		{ID: "fail", TaskKey: "default", TaskText: "t", MustContain: []string{"absent text"}},
	}

	summary := Run(context.Background(), runner, cases)

	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, []string{"default", "default"}, runner.calls)
}

func TestOutputText_FallsBackToDraft(t *testing.T) {
	st := state.New("t", "")
	st.Draft = "draft only"
	assert.Equal(t, "draft only", outputText(st))

	st.FinalOutput = "final"
	assert.Equal(t, "final", outputText(st))

	assert.Equal(t, "", outputText(nil))
}
