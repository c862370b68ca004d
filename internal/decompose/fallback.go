package decompose

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/jimmy24599/kairo-sub000/internal/project"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

// DefaultFallbackFile is targeted when nothing better matches.
const DefaultFallbackFile = "README.md"

// keywordFiles maps description keywords to the file most likely involved,
// in priority order.
var keywordFiles = []struct {
	keywords []string
	file     string
}{
	{[]string{"dependency", "dependencies", "module", "go.mod"}, "go.mod"},
	{[]string{"package", "npm", "script", "scripts"}, "package.json"},
	{[]string{"docker", "container", "image"}, "Dockerfile"},
	{[]string{"build", "make", "makefile", "target"}, "Makefile"},
	{[]string{"typescript", "tsconfig", "compiler"}, "tsconfig.json"},
	{[]string{"component", "page", "ui", "form", "view", "frontend"}, "src/App.tsx"},
	{[]string{"route", "routes", "endpoint", "server", "api", "handler"}, "main.go"},
	{[]string{"cargo", "crate"}, "Cargo.toml"},
	{[]string{"python", "pip", "requirements"}, "requirements.txt"},
	{[]string{"readme", "docs", "documentation", "overview"}, "README.md"},
}

// guessFile picks the file a fallback subtask should look at. Project key
// files whose names share a word with the description win; then the
// keyword table is consulted, preferring files the project actually has.
func guessFile(description string, pctx *project.Context) string {
	words := tokenize(description)
	if len(words) == 0 {
		return defaultFile(pctx)
	}

	var keyFiles []string
	if pctx != nil {
		keyFiles = pctx.KeyFiles
	}

	for _, f := range keyFiles {
		for part := range tokenize(strings.TrimSuffix(path.Base(f), path.Ext(f))) {
			if len(part) > 2 && words[part] {
				return f
			}
		}
	}

	var firstMatch string
	for _, entry := range keywordFiles {
		if !anyWord(words, entry.keywords) {
			continue
		}
		if contains(keyFiles, entry.file) {
			return entry.file
		}
		if firstMatch == "" {
			firstMatch = entry.file
		}
	}
	if firstMatch != "" && len(keyFiles) == 0 {
		return firstMatch
	}
	return defaultFile(pctx)
}

func defaultFile(pctx *project.Context) string {
	if pctx != nil && len(pctx.KeyFiles) > 0 {
		return pctx.KeyFiles[0]
	}
	return DefaultFallbackFile
}

// fallbackSubtask synthesizes the single subtask used when planning fails.
func fallbackSubtask(operation string, task *models.OverviewTask, pctx *project.Context) models.Subtask {
	file := guessFile(task.Description, pctx)
	params, _ := json.Marshal(map[string]string{"path": file})
	return models.Subtask{
		Operation:   operation,
		Parameters:  params,
		Explanation: fmt.Sprintf("Inspect %s to gather context for: %s", file, task.Description),
		Status:      models.SubtaskStatusPending,
		Fallback:    true,
	}
}

func tokenize(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	}) {
		w = strings.Trim(w, ".")
		if w != "" {
			words[w] = true
		}
	}
	return words
}

func anyWord(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
