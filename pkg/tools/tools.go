// Package tools declares the action vocabulary the agent may invoke against
// the filesystem service, with per-action argument contracts.
package tools

import (
	"fmt"
	"sort"
)

// Kind identifies the JSON value kind an argument must carry.
type Kind string

const (
	// KindString requires a JSON string value.
	KindString Kind = "string"
)

// Arg declares a single named argument and its expected kind.
type Arg struct {
	Name string
	Kind Kind
}

// Spec declares a tool's argument contract. The wire method for every action
// is "tools/call"; the action name travels in the request params.
type Spec struct {
	Name        string
	Description string
	Required    []Arg
	Optional    []Arg
}

// Call is a single validated tool invocation: an action name plus its
// arguments. Calls are produced by the interpreter and consumed by the
// dispatcher; they are never mutated after creation.
type Call struct {
	Name      string
	Arguments map[string]any
}

// registry is the static action vocabulary. It mirrors the tool surface of
// the MCP filesystem server and is immutable after package init; extending
// the vocabulary means adding a Spec here, so every action's required
// argument set stays statically declared.
//
//nolint:gochecknoglobals // Static vocabulary, read-only after init
var registry = map[string]Spec{
	"write_file": {
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content",
		Required:    []Arg{{Name: "path", Kind: KindString}, {Name: "content", Kind: KindString}},
	},
	"read_file": {
		Name:        "read_file",
		Description: "Read the contents of a file",
		Required:    []Arg{{Name: "path", Kind: KindString}},
	},
	"create_directory": {
		Name:        "create_directory",
		Description: "Create a directory, including missing parents",
		Required:    []Arg{{Name: "path", Kind: KindString}},
	},
	"list_directory": {
		Name:        "list_directory",
		Description: "List the entries of a directory",
		Required:    []Arg{{Name: "path", Kind: KindString}},
	},
	"move_file": {
		Name:        "move_file",
		Description: "Move or rename a file",
		Required:    []Arg{{Name: "source", Kind: KindString}, {Name: "destination", Kind: KindString}},
	},
}

// Lookup returns the spec for an action name.
func Lookup(name string) (Spec, bool) {
	spec, ok := registry[name]
	return spec, ok
}

// Names returns the registered action names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the arguments against the spec's contract. It returns a
// human-readable reason for the first violation found, or "" if the
// arguments satisfy the contract. Unknown extra arguments are tolerated;
// the service is the authority on what it accepts beyond the declared set.
func (s Spec) Validate(args map[string]any) string {
	for _, arg := range s.Required {
		value, present := args[arg.Name]
		if !present {
			return fmt.Sprintf("missing required argument %q", arg.Name)
		}
		if reason := checkKind(arg, value); reason != "" {
			return reason
		}
	}
	for _, arg := range s.Optional {
		value, present := args[arg.Name]
		if !present {
			continue
		}
		if reason := checkKind(arg, value); reason != "" {
			return reason
		}
	}
	return ""
}

func checkKind(arg Arg, value any) string {
	switch arg.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("argument %q must be a string, got %T", arg.Name, value)
		}
	}
	return ""
}
