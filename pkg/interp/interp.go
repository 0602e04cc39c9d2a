// Package interp extracts validated tool calls from raw language-model
// completions.
//
// Model output is unreliable rather than malicious: completions wrap the
// structured payload in prose and chain-of-thought markup, and the payload
// itself may drift from the requested format. The interpreter is lenient
// about the surroundings (reasoning blocks are stripped, prose is skipped)
// and strict about the payload (shape and argument validation are fail-fast)
// so format drift is caught on the first iteration instead of producing
// half-executed batches.
package interp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"scribe/pkg/tools"
)

// ErrorKind classifies interpretation failures.
type ErrorKind int

const (
	// ErrNoStructuredPayload means no JSON object or array was found in the
	// completion after reasoning markup was stripped.
	ErrNoStructuredPayload ErrorKind = iota
	// ErrUnexpectedShape means a payload was found but its top-level shape is
	// not a tool-call object, a tool_calls/mcp_requests wrapper, or an array
	// of tool-call objects.
	ErrUnexpectedShape
	// ErrInvalidCall means an element of the batch failed validation. Index
	// and Reason identify the offending element.
	ErrInvalidCall
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrNoStructuredPayload:
		return "no_structured_payload"
	case ErrUnexpectedShape:
		return "unexpected_shape"
	case ErrInvalidCall:
		return "invalid_call"
	default:
		return "unknown"
	}
}

// Error is a typed interpretation failure.
type Error struct {
	Kind   ErrorKind
	Index  int // element index for ErrInvalidCall
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind == ErrInvalidCall {
		return fmt.Sprintf("interpret: invalid call at index %d: %s", e.Index, e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("interpret: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("interpret: %s", e.Kind)
}

// Wrapper keys that may carry the call batch inside an object payload.
// Exactly one may be present; two at once is ambiguous and rejected.
var wrapperKeys = []string{"tool_calls", "mcp_requests"} //nolint:gochecknoglobals // Static key list

// Reasoning markup patterns. Closed blocks are removed wherever they appear;
// an unterminated opening marker swallows the rest of the text, matching how
// truncated completions cut off mid-thought.
var (
	thinkBlockRegex = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`) //nolint:gochecknoglobals // Compiled once
	thinkOpenRegex  = regexp.MustCompile(`(?s)<think(?:ing)?>.*$`)                 //nolint:gochecknoglobals // Compiled once
)

// Interpreter turns completions into ordered, validated tool-call batches.
// It is stateless; Interpret is a pure function of its input.
type Interpreter struct{}

// NewInterpreter creates an interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Interpret extracts the tool-call batch from a completion.
//
// Processing stages, each independently testable:
//  1. strip reasoning markup
//  2. locate the first structured payload (object or array literal)
//  3. parse the payload against the accepted shapes
//  4. validate every element against the action vocabulary, fail-fast
//
// Source order of the calls is preserved: later calls may depend on the
// side effects of earlier ones.
func (i *Interpreter) Interpret(completion string) ([]tools.Call, error) {
	text := StripReasoning(completion)

	payload, found := ExtractPayload(text)
	if !found {
		return nil, &Error{Kind: ErrNoStructuredPayload, Reason: "completion contains no JSON object or array"}
	}

	elements, err := parseShape(payload)
	if err != nil {
		return nil, err
	}

	calls := make([]tools.Call, 0, len(elements))
	for idx, element := range elements {
		call, reason := validateElement(element)
		if reason != "" {
			return nil, &Error{Kind: ErrInvalidCall, Index: idx, Reason: reason}
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// StripReasoning removes delimited reasoning segments from a completion.
// Reasoning content is discarded outright; it is never inspected for tool
// calls.
func StripReasoning(text string) string {
	text = thinkBlockRegex.ReplaceAllString(text, "")
	text = thinkOpenRegex.ReplaceAllString(text, "")
	return text
}

// ExtractPayload locates the first top-level JSON object or array literal in
// the text and returns it. Candidate blocks are found with a string-aware
// bracket matcher; a balanced block that is not valid JSON is skipped and
// scanning resumes after its opening bracket.
func ExtractPayload(text string) (string, bool) {
	for start := 0; start < len(text); start++ {
		open := text[start]
		if open != '{' && open != '[' {
			continue
		}
		end, ok := matchBracket(text, start)
		if !ok {
			// Unbalanced opener; a balanced block may still start inside it.
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBracket returns the index of the bracket closing the one at start,
// skipping bracket characters inside JSON string literals.
func matchBracket(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for pos := start; pos < len(text); pos++ {
		ch := text[pos]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return pos, true
			}
		}
	}
	return 0, false
}

// parseShape interprets the payload's top-level structure and returns the
// raw batch elements in source order.
func parseShape(payload string) ([]any, error) {
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		// ExtractPayload only returns valid JSON; this is a safety net.
		return nil, &Error{Kind: ErrUnexpectedShape, Reason: err.Error()}
	}

	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any:
		var present []string
		for _, key := range wrapperKeys {
			if _, ok := v[key]; ok {
				present = append(present, key)
			}
		}
		switch len(present) {
		case 0:
			if _, ok := v["name"]; ok {
				// Single tool-call object.
				return []any{v}, nil
			}
			return nil, &Error{Kind: ErrUnexpectedShape, Reason: fmt.Sprintf("object has none of %s and no name field", strings.Join(wrapperKeys, "/"))}
		case 1:
			batch, ok := v[present[0]].([]any)
			if !ok {
				return nil, &Error{Kind: ErrUnexpectedShape, Reason: fmt.Sprintf("%s must hold an array", present[0])}
			}
			return batch, nil
		default:
			return nil, &Error{Kind: ErrUnexpectedShape, Reason: fmt.Sprintf("object carries both %s", strings.Join(present, " and "))}
		}
	default:
		return nil, &Error{Kind: ErrUnexpectedShape, Reason: fmt.Sprintf("top-level value is %T, want object or array", value)}
	}
}

// validateElement checks one batch element against the action vocabulary.
// It returns the validated call, or a reason string on failure.
func validateElement(element any) (tools.Call, string) {
	obj, ok := element.(map[string]any)
	if !ok {
		return tools.Call{}, fmt.Sprintf("element is %T, want object", element)
	}

	nameValue, present := obj["name"]
	if !present {
		return tools.Call{}, "missing name field"
	}
	name, ok := nameValue.(string)
	if !ok || name == "" {
		return tools.Call{}, "name must be a non-empty string"
	}

	spec, known := tools.Lookup(name)
	if !known {
		return tools.Call{}, fmt.Sprintf("unrecognized action %q", name)
	}

	args := map[string]any{}
	if rawArgs, hasArgs := obj["arguments"]; hasArgs {
		args, ok = rawArgs.(map[string]any)
		if !ok {
			return tools.Call{}, "arguments must be an object"
		}
	}

	if reason := spec.Validate(args); reason != "" {
		return tools.Call{}, reason
	}

	return tools.Call{Name: name, Arguments: args}, ""
}
