package decompose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// overviewItem is one element of an overview planning response.
type overviewItem struct {
	Description string `json:"description"`
	Title       string `json:"title"`
}

// subtaskItem is one element of a subtask planning response. Tool and
// Params are accepted as aliases.
type subtaskItem struct {
	Operation   string          `json:"operation"`
	Tool        string          `json:"tool"`
	Parameters  json.RawMessage `json:"parameters"`
	Params      json.RawMessage `json:"params"`
	Explanation string          `json:"explanation"`
}

// validateOverview turns parsed items into task descriptions. Every element
// must carry a description, or a title standing in for one, and the list
// must not be empty.
func validateOverview(items []json.RawMessage) ([]string, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty task list returned", ErrMalformedOutput)
	}

	descriptions := make([]string, 0, len(items))
	for i, raw := range items {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("%w: task %d has an empty description", ErrMalformedOutput, i)
			}
			descriptions = append(descriptions, strings.TrimSpace(s))
			continue
		}

		var item overviewItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: task %d: %v", ErrMalformedOutput, i, err)
		}
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			desc = strings.TrimSpace(item.Title)
		}
		if desc == "" {
			return nil, fmt.Errorf("%w: task %d has no description", ErrMalformedOutput, i)
		}
		descriptions = append(descriptions, desc)
	}
	return descriptions, nil
}

// validateSubtasks keeps the well-formed entries, up to limit. It fails
// only when no entry is usable.
func validateSubtasks(items []json.RawMessage, limit int) ([]models.Subtask, []string, error) {
	var (
		subtasks []models.Subtask
		rejected []string
	)
	for i, raw := range items {
		st, err := toSubtask(raw)
		if err != nil {
			rejected = append(rejected, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		subtasks = append(subtasks, st)
	}

	if len(subtasks) == 0 {
		return nil, rejected, fmt.Errorf("%w: no valid subtasks in response", ErrMalformedOutput)
	}
	if limit > 0 && len(subtasks) > limit {
		subtasks = subtasks[:limit]
	}
	return subtasks, rejected, nil
}

func toSubtask(raw json.RawMessage) (models.Subtask, error) {
	var item subtaskItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.Subtask{}, fmt.Errorf("not an object")
	}

	op := strings.TrimSpace(item.Operation)
	if op == "" {
		op = strings.TrimSpace(item.Tool)
	}
	if op == "" {
		return models.Subtask{}, fmt.Errorf("missing operation")
	}

	params := item.Parameters
	if len(params) == 0 {
		params = item.Params
	}
	params = bytes.TrimSpace(params)
	if len(params) == 0 || params[0] != '{' {
		return models.Subtask{}, fmt.Errorf("parameters must be an object")
	}

	explanation := strings.TrimSpace(item.Explanation)
	if explanation == "" {
		return models.Subtask{}, fmt.Errorf("missing explanation")
	}

	return models.Subtask{
		Operation:   op,
		Parameters:  append(json.RawMessage(nil), params...),
		Explanation: explanation,
		Status:      models.SubtaskStatusPending,
	}, nil
}
