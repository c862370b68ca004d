package tools

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// FormatAction returns a short human-readable description of an operation
// call, used in tool step messages.
func FormatAction(name string, params json.RawMessage) string {
	var p struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
		Command string `json:"command"`
	}
	_ = json.Unmarshal(params, &p)

	switch name {
	case "read_file":
		return "Reading " + filepath.Base(p.Path)
	case "write_file":
		return "Writing " + filepath.Base(p.Path)
	case "edit_file":
		return "Editing " + filepath.Base(p.Path)
	case "list_dir":
		if p.Path == "" {
			return "Listing directory"
		}
		return "Listing " + p.Path
	case "find_files":
		return "Searching " + p.Pattern
	case "search_code":
		pat := p.Pattern
		if len(pat) > 15 {
			pat = pat[:12] + "..."
		}
		return "Grep " + pat
	case "run_command":
		cmd := strings.Split(p.Command, " ")[0]
		if len(cmd) > 20 {
			cmd = cmd[:17] + "..."
		}
		return "Running " + cmd
	default:
		return name
	}
}
