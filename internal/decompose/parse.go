package decompose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Outcome is the result of parsing planner text. It is either Parsed or
// Malformed.
type Outcome interface {
	outcome()
}

// Parsed carries the raw elements of the list found in the response.
type Parsed struct {
	Items []json.RawMessage
}

// Malformed carries the response that could not be parsed and why.
type Malformed struct {
	Raw    string
	Reason error
}

func (Parsed) outcome()    {}
func (Malformed) outcome() {}

// listKeys are the object keys that may wrap the list of items.
var listKeys = []string{"tasks", "overview_tasks", "steps", "subtasks", "items"}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)```")

// Parse extracts a list of JSON elements from planner text. The text may
// wrap the JSON in a fenced code block or surround it with prose. A bare
// list is accepted, as is an object holding the list under a known key.
// Every '[' or '{' is tried as a start in order, so brackets in prose ahead
// of the JSON are skipped. An object that decodes but is rejected is skipped
// whole; lists nested inside it are not considered.
func Parse(raw string) Outcome {
	text := stripFences(raw)

	var reason error
	for pos := 0; pos < len(text); {
		off := strings.IndexAny(text[pos:], "[{")
		if off == -1 {
			break
		}
		start := pos + off

		var value json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		if err := dec.Decode(&value); err != nil {
			if reason == nil {
				reason = fmt.Errorf("decode response: %w", err)
			}
			pos = start + 1
			continue
		}

		items, err := acceptValue(bytes.TrimSpace(value))
		if err == nil {
			return Parsed{Items: items}
		}
		if reason == nil {
			reason = err
		}
		pos = start + int(dec.InputOffset())
	}

	if reason == nil {
		reason = errors.New("no JSON value found in response")
	}
	return Malformed{Raw: raw, Reason: fmt.Errorf("%w: %w", ErrMalformedOutput, reason)}
}

// acceptValue returns the items of a list, or of the list held under one of
// listKeys when value is an object.
func acceptValue(value json.RawMessage) ([]json.RawMessage, error) {
	if value[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	for _, key := range listKeys {
		field, ok := obj[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(field, &items); err != nil {
			return nil, fmt.Errorf("field %q is not a list", key)
		}
		return items, nil
	}
	return nil, fmt.Errorf("object has none of the keys %s", strings.Join(listKeys, ", "))
}

// stripFences returns the body of the first fenced code block, or text
// unchanged when there is none.
func stripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
