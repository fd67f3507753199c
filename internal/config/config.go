package config

import "fmt"

// Scenario is the top-level structure of a mutik scenario YAML file: an
// initial document, a set of views rendered from it and a list of steps that
// write to it.
type Scenario struct {
	Name          string                 `yaml:"name"`
	SchemaVersion string                 `yaml:"schemaVersion"`
	Store         *StoreConfig           `yaml:"store,omitempty"`
	Host          *HostConfig            `yaml:"host,omitempty"`
	Initial       map[string]interface{} `yaml:"initial,omitempty"`
	Views         []View                 `yaml:"views"`
	Steps         []Step                 `yaml:"steps"`

	// FilePath is the source file, for context in logs and errors. It is not
	// parsed from the YAML.
	FilePath string `yaml:"-"`
}

// StoreConfig maps onto the store options of the same names.
type StoreConfig struct {
	Name           string `yaml:"name,omitempty"`
	PanicIsolation bool   `yaml:"panic_isolation,omitempty"`
	MaxReentrancy  *int   `yaml:"max_reentrancy,omitempty"`
}

// HostConfig maps onto the render root options.
type HostConfig struct {
	MaxPassRestarts *int `yaml:"max_pass_restarts,omitempty"`
	MaxRounds       *int `yaml:"max_rounds,omitempty"`
}

// View is a component rendering one selected slice of the document.
type View struct {
	Name string `yaml:"name"`
	// Select is a docpath into the document. Empty or "." selects the whole
	// document.
	Select string `yaml:"select,omitempty"`
	// Format is a fmt format with a single verb applied to the selected
	// value. Defaults to "%v".
	Format string `yaml:"format,omitempty"`
	// Equality decides when a new selection re-renders the view.
	Equality Equality `yaml:"equality,omitempty"`
}

// Step invokes one registered action.
type Step struct {
	Name   string                 `yaml:"name,omitempty"`
	Action string                 `yaml:"action"`
	Params map[string]interface{} `yaml:"params,omitempty"`
}

// DisplayName identifies a step in logs and errors.
func (s Step) DisplayName(index int) string {
	if s.Name != "" {
		return fmt.Sprintf("step %d ('%s')", index, s.Name)
	}
	return fmt.Sprintf("step %d (%s)", index, s.Action)
}

// WholeDocument reports whether the view selects the entire document.
func (v View) WholeDocument() bool {
	return v.Select == "" || v.Select == "."
}
