package tasks

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var examplesYAML []byte

// Example is a canned task request for a kind, used by the CLI to run a
// named task without typing the full request text.
type Example struct {
	Description string `yaml:"description"`
	Task        string `yaml:"task"`
}

// Examples returns the embedded example-task catalog keyed by task key.
func Examples() (map[string]Example, error) {
	out := make(map[string]Example)
	if err := yaml.Unmarshal(examplesYAML, &out); err != nil {
		return nil, fmt.Errorf("failed to parse embedded examples: %w", err)
	}
	return out, nil
}

// ExampleKeys returns the catalog's task keys in sorted order.
func ExampleKeys() ([]string, error) {
	examples, err := Examples()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
