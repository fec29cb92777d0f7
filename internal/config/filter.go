package config

import (
	"path"
	"strings"
)

// IncludeMethod reports whether the test method with the given
// qualified name ("Namespace.Type::Method") should be analyzed.
//
// Logic:
//  1. If include patterns are set, the name must match at least one.
//  2. If the name matches any exclude pattern, it is excluded.
//  3. Otherwise, the method is included.
func (c *Config) IncludeMethod(qualified string) bool {
	if len(c.Methods.Include) > 0 {
		matched := false
		for _, pattern := range c.Methods.Include {
			if matchGlob(pattern, qualified) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range c.Methods.Exclude {
		if matchGlob(pattern, qualified) {
			return false
		}
	}
	return true
}

// matchGlob matches a qualified method name against a glob pattern. It
// supports simple glob syntax (path.Match) and double-star namespace
// prefixes like "Calc.Tests.**", which match every method of every type
// under that namespace.
func matchGlob(pattern, qualified string) bool {
	if strings.HasSuffix(pattern, ".**") {
		prefix := strings.TrimSuffix(pattern, ".**")
		return strings.HasPrefix(qualified, prefix+".")
	}

	matched, err := path.Match(pattern, qualified)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a type part match the method name alone
	// ("*_Slow" matches any method ending in _Slow).
	if !strings.Contains(pattern, "::") {
		_, method, ok := strings.Cut(qualified, "::")
		if !ok {
			return false
		}
		matched, err = path.Match(pattern, method)
		if err != nil {
			return false
		}
		return matched
	}
	return false
}
