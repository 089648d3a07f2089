package diff

import (
	"path/filepath"
	"strings"
)

// rule is one parsed .gitignore line.
type rule struct {
	pattern string
	negate  bool
	dirOnly bool
}

// matcher is the rule set from a single .gitignore file.
type matcher struct {
	rules []rule
}

func parseGitignore(data []byte) *matcher {
	var rules []rule
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		negate := false
		if strings.HasPrefix(trimmed, "!") {
			negate = true
			trimmed = trimmed[1:]
		}
		dirOnly := false
		if strings.HasSuffix(trimmed, "/") {
			dirOnly = true
			trimmed = strings.TrimSuffix(trimmed, "/")
		}
		rules = append(rules, rule{pattern: trimmed, negate: negate, dirOnly: dirOnly})
	}
	return &matcher{rules: rules}
}

// match reports whether name matched any rule in this file, and if so
// whether the last matching rule (later rules override earlier ones,
// per gitignore precedence) says to ignore it.
func (m *matcher) match(name string) (matched, ignore bool) {
	for _, r := range m.rules {
		if ok, _ := filepath.Match(r.pattern, name); ok {
			matched = true
			ignore = !r.negate
		}
	}
	return matched, ignore
}

// ignoreStack is the per-walk stack of .gitignore matchers pushed on
// directory entry (spec §4.8 "Ignore stacks"). Innermost (most
// recently pushed) matcher wins, matching real gitignore precedence
// where a deeper .gitignore can override an ancestor's rule.
type ignoreStack struct {
	levels []*matcher
}

func newIgnoreStack() *ignoreStack {
	return &ignoreStack{}
}

func (s *ignoreStack) push(m *matcher) *ignoreStack {
	levels := make([]*matcher, len(s.levels), len(s.levels)+1)
	copy(levels, s.levels)
	levels = append(levels, m)
	return &ignoreStack{levels: levels}
}

func (s *ignoreStack) matches(name string) bool {
	for i := len(s.levels) - 1; i >= 0; i-- {
		if matched, ignore := s.levels[i].match(name); matched {
			return ignore
		}
	}
	return false
}
