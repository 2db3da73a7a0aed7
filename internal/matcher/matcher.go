// Package matcher matches event names against glob and regex patterns.
package matcher

import (
	"path"
	"regexp"
	"strings"

	"github.com/agentstation/pushcenter/pkg/errors"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto detects the pattern type from its metacharacters.
	Auto
)

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Matcher reports whether an input matches a compiled pattern.
type Matcher interface {
	Match(input string) bool
	Pattern() string
	Type() PatternType
}

// Options configures matching.
type Options struct {
	// CaseInsensitive folds case before matching
	CaseInsensitive bool
	// Anchored adds ^ and $ to regex patterns if not present
	Anchored bool
}

type matcher struct {
	pattern     string
	patternType PatternType
	glob        string
	re          *regexp.Regexp
	fold        bool
}

// New compiles pattern. Invalid patterns return a ValidationError.
func New(patternType PatternType, pattern string, opts Options) (Matcher, error) {
	if patternType == Auto {
		patternType = detectPatternType(pattern)
	}
	m := &matcher{pattern: pattern, patternType: patternType, fold: opts.CaseInsensitive}

	switch patternType {
	case Glob:
		m.glob = pattern
		if m.fold {
			m.glob = strings.ToLower(m.glob)
		}
		if _, err := path.Match(m.glob, ""); err != nil {
			return nil, errors.WrapValidation("pattern", err)
		}
	case Regex:
		expr := pattern
		if opts.Anchored {
			if !strings.HasPrefix(expr, "^") {
				expr = "^" + expr
			}
			if !strings.HasSuffix(expr, "$") {
				expr += "$"
			}
		}
		if m.fold && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.WrapValidation("pattern", err)
		}
		m.re = re
	default:
		return nil, errors.NewValidationError("pattern type", patternType, "unsupported")
	}
	return m, nil
}

func (m *matcher) Match(input string) bool {
	if m.re != nil {
		return m.re.MatchString(input)
	}
	if m.fold {
		input = strings.ToLower(input)
	}
	ok, _ := path.Match(m.glob, input)
	return ok
}

func (m *matcher) Pattern() string   { return m.pattern }
func (m *matcher) Type() PatternType { return m.patternType }

// detectPatternType treats a pattern as regex when it carries regex-only
// metacharacters, and as glob otherwise.
func detectPatternType(pattern string) PatternType {
	indicators := []string{
		"^", "$", `\d`, `\w`, `\s`, `\D`, `\W`, `\S`,
		"(?", "{", "}", "+", "|", "(", ")",
	}
	for _, indicator := range indicators {
		if strings.Contains(pattern, indicator) {
			return Regex
		}
	}
	return Glob
}

// Set matches when any of its patterns does. An empty set matches
// everything.
type Set struct {
	matchers []Matcher
}

// NewSet compiles patterns with Auto detection. Empty patterns are skipped.
func NewSet(patterns []string, opts Options) (*Set, error) {
	s := &Set{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		m, err := New(Auto, p, opts)
		if err != nil {
			return nil, err
		}
		s.matchers = append(s.matchers, m)
	}
	return s, nil
}

// Match returns true if any pattern matches input.
func (s *Set) Match(input string) bool {
	if len(s.matchers) == 0 {
		return true
	}
	for _, m := range s.matchers {
		if m.Match(input) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	return len(s.matchers)
}

// Patterns returns the source patterns in order.
func (s *Set) Patterns() []string {
	out := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.Pattern()
	}
	return out
}
