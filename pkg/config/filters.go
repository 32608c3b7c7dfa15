package config

import (
	"fmt"

	"github.com/gobwas/glob"
)

// FilterConfig restricts archival by location display name. Patterns use
// glob syntax (*, ?, [abc], {a,b}).
type FilterConfig struct {
	// Include, when non-empty, limits archival to names matching any pattern
	Include []string `yaml:"include" json:"include"`

	// Exclude skips names matching any pattern; it wins over Include
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// NameFilter is a compiled FilterConfig.
type NameFilter struct {
	include []namedGlob
	exclude []namedGlob
}

type namedGlob struct {
	pattern string
	glob    glob.Glob
}

// Compile compiles every pattern.
func (c FilterConfig) Compile() (*NameFilter, error) {
	include, err := compileAll("filters.include", c.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll("filters.exclude", c.Exclude)
	if err != nil {
		return nil, err
	}
	return &NameFilter{include: include, exclude: exclude}, nil
}

func compileAll(field string, patterns []string) ([]namedGlob, error) {
	out := make([]namedGlob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid pattern %q: %w", field, p, err)
		}
		out = append(out, namedGlob{pattern: p, glob: g})
	}
	return out, nil
}

// Active reports whether any pattern is configured.
func (f *NameFilter) Active() bool {
	return f != nil && (len(f.include) > 0 || len(f.exclude) > 0)
}

// Allows reports whether name may be archived. When it may not, reason
// names the deciding rule. A nil filter allows everything.
//
// An empty name never satisfies an include list.
func (f *NameFilter) Allows(name string) (ok bool, reason string) {
	if f == nil {
		return true, ""
	}
	for _, g := range f.exclude {
		if g.glob.Match(name) {
			return false, fmt.Sprintf("matches exclude pattern %q", g.pattern)
		}
	}
	if len(f.include) == 0 {
		return true, ""
	}
	for _, g := range f.include {
		if name != "" && g.glob.Match(name) {
			return true, ""
		}
	}
	return false, "matches no include pattern"
}
