package llm

import (
	"github.com/bmatcuk/doublestar/v4"
)

// FilterToolDefinitions narrows defs down to the ones allowed by rules, a
// map from a tool-name pattern to allow (true) or deny (false). A tool
// with no matching pattern is allowed by default. Patterns are matched
// with doublestar, so both plain names ("bash") and globs
// ("mcp__filesystem__*") work, the same wildcard matching go-opencode's
// internal/agent.matchWildcard applies to its own per-agent tool
// allow-lists.
//
// When more than one pattern matches a tool name, the most specific match
// wins: a pattern with no wildcard characters beats a glob, and among
// globs a longer pattern (fewer wildcard expansions, so a tighter match)
// beats a shorter one.
func FilterToolDefinitions(defs []ToolDefinition, rules map[string]bool) []ToolDefinition {
	if len(rules) == 0 {
		return defs
	}

	out := make([]ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if toolAllowed(d.Name, rules) {
			out = append(out, d)
		}
	}
	return out
}

func toolAllowed(name string, rules map[string]bool) bool {
	allowed := true
	bestSpecificity := -1

	for pattern, allow := range rules {
		matched, specificity := matchToolPattern(pattern, name)
		if !matched {
			continue
		}
		if specificity > bestSpecificity {
			bestSpecificity = specificity
			allowed = allow
		}
	}
	return allowed
}

// matchToolPattern reports whether pattern matches name, plus a
// specificity score used to break ties between multiple matching
// patterns (exact match > glob match, longer pattern > shorter).
func matchToolPattern(pattern, name string) (matched bool, specificity int) {
	if pattern == name {
		return true, len(pattern) + 1000
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil || !ok {
		return false, 0
	}
	return true, len(pattern)
}
