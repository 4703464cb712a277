// Package eval scores pipeline output against line-delimited case files.
// A case passes iff every required substring is present in the output and
// no forbidden substring is, compared case-insensitively.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"briefsmith/internal/logging"
	"briefsmith/internal/state"
)

// Case is one eval case. The loader accepts both the task_text/prompt and
// must_contain/must_include field spellings.
type Case struct {
	ID             string   `json:"id"`
	TaskKey        string   `json:"task_key"`
	TaskText       string   `json:"task_text"`
	Prompt         string   `json:"prompt"`
	MustContain    []string `json:"must_contain"`
	MustInclude    []string `json:"must_include"`
	MustNotContain []string `json:"must_not_contain"`
	MustNotExist   []string `json:"must_not_include"`
}

// Task returns the case's task text, preferring task_text over prompt.
func (c Case) Task() string {
	if strings.TrimSpace(c.TaskText) != "" {
		return c.TaskText
	}
	return c.Prompt
}

// Required returns the merged required-substring list.
func (c Case) Required() []string {
	return append(append([]string(nil), c.MustContain...), c.MustInclude...)
}

// Forbidden returns the merged forbidden-substring list.
func (c Case) Forbidden() []string {
	return append(append([]string(nil), c.MustNotContain...), c.MustNotExist...)
}

// LoadCases reads a JSONL case file, skipping blank lines.
func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open eval cases: %w", err)
	}
	defer f.Close()

	var cases []Case
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("bad eval case on line %d: %w", lineNo, err)
		}
		cases = append(cases, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read eval cases: %w", err)
	}
	return cases, nil
}

// Runner executes one task invocation. The agent pipeline satisfies it.
type Runner interface {
	RunTask(ctx context.Context, taskText, taskKey string) *state.State
}

// Result is the scored outcome of one case.
type Result struct {
	Case     Case
	Passed   bool
	Failures []string
}

// Summary aggregates a full eval run.
type Summary struct {
	Results []Result
	Passed  int
	Failed  int
}

// Run executes every case against the runner and scores the outputs.
func Run(ctx context.Context, runner Runner, cases []Case) Summary {
	var summary Summary

	for _, c := range cases {
		st := runner.RunTask(ctx, c.Task(), c.TaskKey)
		res := Score(c, outputText(st))

		if res.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, res)

		logging.Get(logging.CategoryEval).Info("case %s (%s): passed=%v", c.ID, c.TaskKey, res.Passed)
	}

	return summary
}

// Score checks one output against a case's required and forbidden
// substrings, case-insensitively.
func Score(c Case, output string) Result {
	lowered := strings.ToLower(output)

	var failures []string
	for _, s := range c.Required() {
		if !strings.Contains(lowered, strings.ToLower(s)) {
			failures = append(failures, fmt.Sprintf("Missing required text: %s", s))
		}
	}
	for _, s := range c.Forbidden() {
		if strings.Contains(lowered, strings.ToLower(s)) {
			failures = append(failures, fmt.Sprintf("Found forbidden text: %s", s))
		}
	}

	return Result{Case: c, Passed: len(failures) == 0, Failures: failures}
}

// outputText prefers the final output, falling back to the draft.
func outputText(st *state.State) string {
	if st == nil {
		return ""
	}
	if strings.TrimSpace(st.FinalOutput) != "" {
		return st.FinalOutput
	}
	return st.Draft
}
