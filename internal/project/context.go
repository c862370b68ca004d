// Package project detects what kind of repository a run operates on, so that
// planning prompts and fallback subtasks can refer to real files.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Language is the primary language of a project.
type Language string

const (
	LanguageGo      Language = "go"
	LanguageNode    Language = "node"
	LanguageRust    Language = "rust"
	LanguagePython  Language = "python"
	LanguageUnknown Language = "unknown"
)

// Context is a snapshot of a project handed to the decomposer.
type Context struct {
	// Root is the absolute project directory.
	Root string `json:"root"`
	// Language is the detected primary language.
	Language Language `json:"language"`
	// Framework is the most prominent framework found in the manifest, or
	// empty.
	Framework string `json:"framework,omitempty"`
	// KeyFiles are workspace-relative paths of notable files, most
	// important first.
	KeyFiles []string `json:"key_files"`
	// TestCommand is how the project runs its tests, if known.
	TestCommand []string `json:"test_command,omitempty"`
	// PriorSummary is the last agent summary in the chat. It is not cached.
	PriorSummary string `json:"-"`
}

// Describe renders the context as prompt text.
func (c *Context) Describe() string {
	if c == nil {
		return "No project information available."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\n", c.Language)
	if c.Framework != "" {
		fmt.Fprintf(&sb, "Framework: %s\n", c.Framework)
	}
	if len(c.KeyFiles) > 0 {
		fmt.Fprintf(&sb, "Key files: %s\n", strings.Join(c.KeyFiles, ", "))
	}
	if len(c.TestCommand) > 0 {
		fmt.Fprintf(&sb, "Test command: %s\n", strings.Join(c.TestCommand, " "))
	}
	if c.PriorSummary != "" {
		fmt.Fprintf(&sb, "Previous run summary: %s\n", c.PriorSummary)
	}
	return sb.String()
}

// frameworkMarkers maps a manifest substring to a framework name, per
// language, in priority order.
var frameworkMarkers = map[Language][]struct{ marker, name string }{
	LanguageGo: {
		{"github.com/gin-gonic/gin", "gin"},
		{"github.com/labstack/echo", "echo"},
		{"github.com/gofiber/fiber", "fiber"},
		{"github.com/go-chi/chi", "chi"},
		{"github.com/charmbracelet/bubbletea", "bubbletea"},
		{"github.com/spf13/cobra", "cobra"},
	},
	LanguageNode: {
		{`"next"`, "next"},
		{`"react"`, "react"},
		{`"vue"`, "vue"},
		{`"svelte"`, "svelte"},
		{`"@nestjs/core"`, "nestjs"},
		{`"express"`, "express"},
	},
	LanguagePython: {
		{"django", "django"},
		{"fastapi", "fastapi"},
		{"flask", "flask"},
	},
	LanguageRust: {
		{"actix-web", "actix"},
		{"axum", "axum"},
		{"tokio", "tokio"},
	},
}

// candidateKeyFiles lists files worth pointing the planner at, most
// important first.
var candidateKeyFiles = []string{
	"README.md",
	"go.mod",
	"main.go",
	"package.json",
	"tsconfig.json",
	"src/index.ts",
	"src/index.js",
	"src/main.ts",
	"src/App.tsx",
	"Cargo.toml",
	"src/main.rs",
	"src/lib.rs",
	"pyproject.toml",
	"requirements.txt",
	"setup.py",
	"main.py",
	"app.py",
	"manage.py",
	"Makefile",
	"Dockerfile",
}

// maxKeyFiles caps the key file list.
const maxKeyFiles = 12

// Detect analyzes root and returns its context. It never fails: unknown
// projects yield LanguageUnknown and whatever key files exist.
func Detect(root string) *Context {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	ctx := &Context{Root: abs, Language: detectLanguage(abs)}

	switch ctx.Language {
	case LanguageGo:
		ctx.TestCommand = []string{"go", "test", "./..."}
	case LanguageRust:
		ctx.TestCommand = []string{"cargo", "test"}
	case LanguagePython:
		if dirExists(filepath.Join(abs, "tests")) {
			ctx.TestCommand = []string{"python", "-m", "pytest"}
		}
	case LanguageNode:
		if pkg, err := os.ReadFile(filepath.Join(abs, "package.json")); err == nil && containsScript(string(pkg), "test") {
			ctx.TestCommand = []string{"npm", "test"}
		}
	}

	ctx.Framework = detectFramework(abs, ctx.Language)
	ctx.KeyFiles = detectKeyFiles(abs)
	return ctx
}

func detectLanguage(root string) Language {
	switch {
	case fileExists(filepath.Join(root, "go.mod")):
		return LanguageGo
	case fileExists(filepath.Join(root, "Cargo.toml")):
		return LanguageRust
	case fileExists(filepath.Join(root, "pyproject.toml")),
		fileExists(filepath.Join(root, "setup.py")),
		fileExists(filepath.Join(root, "requirements.txt")):
		return LanguagePython
	case fileExists(filepath.Join(root, "package.json")):
		return LanguageNode
	default:
		return LanguageUnknown
	}
}

func detectFramework(root string, lang Language) string {
	var manifests []string
	switch lang {
	case LanguageGo:
		manifests = []string{"go.mod"}
	case LanguageNode:
		manifests = []string{"package.json"}
	case LanguagePython:
		manifests = []string{"pyproject.toml", "requirements.txt", "setup.py"}
	case LanguageRust:
		manifests = []string{"Cargo.toml"}
	default:
		return ""
	}

	var content strings.Builder
	for _, m := range manifests {
		if data, err := os.ReadFile(filepath.Join(root, m)); err == nil {
			content.Write(data)
			content.WriteByte('\n')
		}
	}
	text := strings.ToLower(content.String())

	for _, fm := range frameworkMarkers[lang] {
		if strings.Contains(text, strings.ToLower(fm.marker)) {
			return fm.name
		}
	}
	return ""
}

func detectKeyFiles(root string) []string {
	var files []string
	for _, f := range candidateKeyFiles {
		if fileExists(filepath.Join(root, filepath.FromSlash(f))) {
			files = append(files, f)
		}
	}

	// cmd/<name>/main.go entry points
	if matches, _ := filepath.Glob(filepath.Join(root, "cmd", "*", "main.go")); len(matches) > 0 {
		for _, m := range matches {
			if rel, err := filepath.Rel(root, m); err == nil {
				files = append(files, filepath.ToSlash(rel))
			}
		}
	}

	if len(files) > maxKeyFiles {
		files = files[:maxKeyFiles]
	}
	return files
}

// containsScript reports whether package.json content defines scriptName
// after its "scripts" key.
func containsScript(content, scriptName string) bool {
	idx := strings.Index(content, `"scripts"`)
	if idx == -1 {
		return false
	}
	return strings.Contains(content[idx:], `"`+scriptName+`"`)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
