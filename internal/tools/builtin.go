package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jimmy24599/kairo-sub000/internal/protect"
)

const (
	maxOutput          = 30000
	defaultCommandTime = 120 * time.Second
)

// Workspace implements the built-in operations against one root directory.
// Paths are resolved relative to the root and may not escape it.
type Workspace struct {
	root  string
	guard *protect.Guard
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithGuard sets the guard consulted before every write. The default
// guard protects the patterns in protect.DefaultPatterns.
func WithGuard(g *protect.Guard) WorkspaceOption {
	return func(w *Workspace) {
		if g != nil {
			w.guard = g
		}
	}
}

// NewWorkspace creates a Workspace rooted at root.
func NewWorkspace(root string, opts ...WorkspaceOption) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	w := &Workspace{root: abs, guard: protect.New()}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Handlers returns the built-in handlers keyed by operation name.
func (w *Workspace) Handlers() map[string]Handler {
	return map[string]Handler{
		"read_file":   w.readFile,
		"write_file":  w.writeFile,
		"edit_file":   w.editFile,
		"list_dir":    w.listDir,
		"find_files":  w.findFiles,
		"search_code": w.searchCode,
		"run_command": w.runCommand,
	}
}

// NewBuiltinRegistry returns a registry holding every operation of the
// embedded catalogue, backed by a Workspace at root. It fails if the
// catalogue names an operation without a handler.
func NewBuiltinRegistry(root string, opts ...WorkspaceOption) (*Registry, *Catalogue, error) {
	cat, err := LoadCatalogue()
	if err != nil {
		return nil, nil, err
	}
	ws, err := NewWorkspace(root, opts...)
	if err != nil {
		return nil, nil, err
	}

	handlers := ws.Handlers()
	reg := NewRegistry()
	for _, name := range cat.Names() {
		h, ok := handlers[name]
		if !ok {
			return nil, nil, fmt.Errorf("catalogue operation %q has no handler", name)
		}
		if err := reg.Register(name, h); err != nil {
			return nil, nil, err
		}
	}
	return reg, cat, nil
}

func decodeParams(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid parameters: %v", err)
	}
	return nil
}

func (w *Workspace) readFile(_ context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("invalid parameters: path is required")
	}

	path, err := w.resolvePath(params.Path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	lines := strings.Split(string(content), "\n")

	start := 0
	if params.Offset > 0 {
		start = params.Offset - 1
		if start >= len(lines) {
			return "", fmt.Errorf("invalid parameters: offset beyond end of file")
		}
	}

	end := len(lines)
	if params.Limit > 0 {
		end = min(start+params.Limit, len(lines))
	}

	var result strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&result, "%6d\t%s\n", i+1, lines[i])
	}
	return truncate(result.String()), nil
}

func (w *Workspace) writeFile(_ context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("invalid parameters: path is required")
	}

	path, err := w.resolveWritable(params.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path), nil
}

func (w *Workspace) editFile(_ context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path       string `json:"path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if params.Path == "" || params.OldString == "" {
		return "", fmt.Errorf("invalid parameters: path and old_string are required")
	}

	path, err := w.resolveWritable(params.Path)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	contentStr := string(content)

	count := strings.Count(contentStr, params.OldString)
	if count == 0 {
		return "", fmt.Errorf("old_string not found in %s", params.Path)
	}
	if !params.ReplaceAll && count > 1 {
		return "", fmt.Errorf("invalid parameters: old_string found %d times; must be unique or use replace_all", count)
	}

	var newContent string
	if params.ReplaceAll {
		newContent = strings.ReplaceAll(contentStr, params.OldString, params.NewString)
	} else {
		newContent = strings.Replace(contentStr, params.OldString, params.NewString, 1)
	}

	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if params.ReplaceAll {
		return fmt.Sprintf("Replaced %d occurrences in %s", count, params.Path), nil
	}
	return fmt.Sprintf("Edited %s", params.Path), nil
}

func (w *Workspace) listDir(_ context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if params.Path == "" {
		params.Path = "."
	}

	path, err := w.resolvePath(params.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	var result strings.Builder
	for _, entry := range entries {
		info, _ := entry.Info()
		switch {
		case info == nil:
			fmt.Fprintf(&result, "? %s\n", entry.Name())
		case entry.IsDir():
			fmt.Fprintf(&result, "d %s/\n", entry.Name())
		default:
			fmt.Fprintf(&result, "- %s (%d bytes)\n", entry.Name(), info.Size())
		}
	}
	return truncate(result.String()), nil
}

func (w *Workspace) findFiles(_ context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if params.Pattern == "" {
		return "", fmt.Errorf("invalid parameters: pattern is required")
	}
	if _, err := filepath.Match(filepath.Base(params.Pattern), ""); err != nil {
		return "", fmt.Errorf("invalid parameters: %v", err)
	}

	searchPath := w.root
	if params.Path != "" {
		var err error
		if searchPath, err = w.resolvePath(params.Path); err != nil {
			return "", err
		}
	}

	var matches []string
	err := filepath.WalkDir(searchPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != searchPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if matched, _ := filepath.Match(filepath.Base(params.Pattern), d.Name()); matched {
			rel, _ := filepath.Rel(w.root, path)
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("find files: %w", err)
	}

	if len(matches) == 0 {
		return "No files matched the pattern", nil
	}
	return truncate(strings.Join(matches, "\n")), nil
}

func (w *Workspace) searchCode(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	re, err := regexp.Compile(params.Pattern)
	if err != nil || params.Pattern == "" {
		return "", fmt.Errorf("invalid parameters: bad pattern %q", params.Pattern)
	}

	searchPath := w.root
	if params.Path != "" {
		if searchPath, err = w.resolvePath(params.Path); err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(searchPath); err != nil {
		return "", fmt.Errorf("search code: %w", err)
	}

	var result strings.Builder
	err = filepath.WalkDir(searchPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != searchPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if params.Glob != "" {
			if matched, _ := filepath.Match(params.Glob, d.Name()); !matched {
				return nil
			}
		}
		if result.Len() > maxOutput {
			return filepath.SkipAll
		}
		grepFile(path, w.root, re, &result)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search code: %w", err)
	}

	if result.Len() == 0 {
		return "No matches found", nil
	}
	return truncate(result.String()), nil
}

func grepFile(path, root string, re *regexp.Regexp, out *strings.Builder) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	rel, _ := filepath.Rel(root, path)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.IndexByte(text, 0) >= 0 {
			return // binary
		}
		if re.MatchString(text) {
			fmt.Fprintf(out, "%s:%d:%s\n", rel, line, text)
		}
	}
}

func (w *Workspace) runCommand(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Command   string `json:"command"`
		TimeoutMS int    `json:"timeout_ms"`
	}
	if err := decodeParams(input, &params); err != nil {
		return "", err
	}
	if strings.TrimSpace(params.Command) == "" {
		return "", fmt.Errorf("invalid parameters: command is required")
	}

	timeout := defaultCommandTime
	if params.TimeoutMS > 0 {
		timeout = time.Duration(params.TimeoutMS) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", params.Command)
	cmd.Dir = w.root

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return truncate(string(output)), fmt.Errorf("command timed out after %v", timeout)
		}
		return truncate(string(output)), fmt.Errorf("command failed: %w", err)
	}
	return truncate(string(output)), nil
}

// resolvePath maps a workspace-relative (or absolute) path to an absolute
// path inside the root.
func (w *Workspace) resolvePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("permission denied: %s is outside the workspace", path)
	}
	return path, nil
}

// resolveWritable is resolvePath for operations that modify the file.
func (w *Workspace) resolveWritable(path string) (string, error) {
	abs, err := w.resolvePath(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", fmt.Errorf("permission denied: %s", path)
	}
	if err := w.guard.Check(rel); err != nil {
		return "", err
	}
	return abs, nil
}

func truncate(s string) string {
	if len(s) > maxOutput {
		return s[:maxOutput] + "\n... (output truncated)"
	}
	return s
}
