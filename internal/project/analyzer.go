package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	// CacheFileName is the project context cache, relative to the root.
	CacheFileName = ".kairo/project_cache.json"
	// CacheMaxAge is how long a cached context stays valid.
	CacheMaxAge = 24 * time.Hour
)

// Analyzer produces project contexts for one root, caching detection
// results on disk.
type Analyzer struct {
	root   string
	maxAge time.Duration
}

// NewAnalyzer creates an Analyzer for root.
func NewAnalyzer(root string) *Analyzer {
	return &Analyzer{root: root, maxAge: CacheMaxAge}
}

// Analyze returns the project context with priorSummary attached.
func (a *Analyzer) Analyze(priorSummary string) *Context {
	ctx, ok := a.loadCache()
	if !ok {
		ctx = Detect(a.root)
		// Caching is best effort.
		_ = a.saveCache(ctx)
	}
	ctx.PriorSummary = priorSummary
	return ctx
}

// Invalidate removes the cache so the next Analyze re-detects.
func (a *Analyzer) Invalidate() error {
	err := os.Remove(filepath.Join(a.root, CacheFileName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

type cachedContext struct {
	Context
	Timestamp int64 `json:"timestamp"`
}

func (a *Analyzer) loadCache() (*Context, bool) {
	cachePath := filepath.Join(a.root, CacheFileName)

	info, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > a.maxAge {
		return nil, false
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}

	var cached cachedContext
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	ctx := cached.Context
	return &ctx, true
}

func (a *Analyzer) saveCache(ctx *Context) error {
	cachePath := filepath.Join(a.root, CacheFileName)
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cachedContext{Context: *ctx, Timestamp: time.Now().Unix()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cachePath, data, 0644)
}
