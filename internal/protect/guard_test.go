package protect

import (
	"strings"
	"testing"
)

func TestMatchGlobPattern(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		pattern  string
		expected bool
	}{
		{"double star matches deep path", "a/b/c/d/file.go", "**/c/**", true},
		{"double star at start", "internal/secrets/db.go", "**/secrets/**", true},
		{"double star matches zero segments", "secrets/db.go", "**/secrets/**", true},
		{"double star at end", "migrations/001_init.sql", "migrations/**", true},
		{"literal match", "config/settings.yaml", "config/settings.yaml", true},
		{"single star in segment", "internal/auth_handler.go", "internal/auth*", true},
		{"no match - different path", "api/handler.go", "**/secrets/**", false},
		{"star does not cross segments", "internal/x/auth.go", "internal/*.go", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := matchGlobPattern(tc.path, tc.pattern)
			if result != tc.expected {
				t.Errorf("matchGlobPattern(%q, %q) = %v, expected %v", tc.path, tc.pattern, result, tc.expected)
			}
		})
	}
}

func TestGuard_Defaults(t *testing.T) {
	g := New()

	tests := []struct {
		path      string
		protected bool
	}{
		{".git/config", true},
		{".kairo/state.db", true},
		{"home/.ssh/id_rsa", true},
		{".env", true},
		{"config/prod.env", true},
		{"certs/server.PEM", true},
		{"src/components/ContactForm.tsx", false},
		{"README.md", false},
		{"./src/../.git/HEAD", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := g.IsProtected(tt.path); got != tt.protected {
				t.Errorf("IsProtected(%q) = %v, want %v", tt.path, got, tt.protected)
			}
		})
	}
}

func TestGuard_Extra(t *testing.T) {
	g := New("migrations/**", ".sql", "  ")

	if !g.IsProtected("migrations/001_init.go") {
		t.Error("extra pattern should protect migrations/")
	}
	if !g.IsProtected("db/schema.SQL") {
		t.Error("extra file type should protect .sql files")
	}
	if g.IsProtected("src/app.go") {
		t.Error("src/app.go should not be protected")
	}
}

func TestGuard_CheckMessage(t *testing.T) {
	err := New().Check(".git/HEAD")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "permission denied") {
		t.Errorf("error should start with permission denied: %v", err)
	}
}

func TestGuard_Nil(t *testing.T) {
	var g *Guard
	if g.IsProtected(".git/HEAD") {
		t.Error("nil guard protects nothing")
	}
}
