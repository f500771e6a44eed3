// Package template implements Ralph's two-pass prompt template processor:
// recursive @path file includes, then {{name}} variable substitution.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxIncludeDepth caps recursive include resolution.
const MaxIncludeDepth = 10

// ErrorKind distinguishes template processing failures for exit-code
// mapping at the CLI boundary (spec: FileNotFound -> 2, IoError -> 3,
// everything else -> 1).
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindFileNotFound
	KindIoError
	KindCycle
	KindMaxDepth
)

// Error is returned by ExpandIncludes (and Process) when include resolution
// fails.
type Error struct {
	Kind  ErrorKind
	Path  string   // the resolved path that triggered the failure
	Chain []string // the include chain at the point of failure
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileNotFound:
		return fmt.Sprintf("include not found: %s (chain: %s)", e.Path, strings.Join(e.Chain, " -> "))
	case KindIoError:
		return fmt.Sprintf("error reading include: %s", e.Path)
	case KindCycle:
		return fmt.Sprintf("circular include: %s (chain: %s)", e.Path, strings.Join(e.Chain, " -> "))
	case KindMaxDepth:
		return fmt.Sprintf("include depth exceeded %d: %s (chain: %s)", MaxIncludeDepth, e.Path, strings.Join(e.Chain, " -> "))
	default:
		return fmt.Sprintf("template error: %s", e.Path)
	}
}

// ExitCode maps an Error's Kind to the process exit code the spec requires.
func ExitCode(err error) int {
	te, ok := err.(*Error)
	if !ok {
		return 1
	}
	switch te.Kind {
	case KindFileNotFound:
		return 2
	case KindIoError:
		return 3
	default:
		return 1
	}
}

// includePattern matches @path, @'path', and @"path" — the quote pair (if
// any) must match; the path token itself is unquoted text up to the
// closing quote or, unquoted, up to the next whitespace.
var includePattern = regexp.MustCompile(`@(?:'([^']+)'|"([^"]+)"|(\S+))`)

// ExpandIncludes resolves @path includes in content, whose own location is
// baseDir, returning the fully expanded text.
func ExpandIncludes(content string, baseDir string) (string, error) {
	return expandIncludes(content, baseDir, nil, 0)
}

func expandIncludes(content, baseDir string, stack []string, depth int) (string, error) {
	var resolveErr error
	out := includePattern.ReplaceAllStringFunc(content, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := includePattern.FindStringSubmatch(match)
		raw := firstNonEmpty(sub[1], sub[2], sub[3])

		path := raw
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		path = filepath.Clean(path)

		if depth+1 > MaxIncludeDepth {
			resolveErr = &Error{Kind: KindMaxDepth, Path: path, Chain: append(append([]string{}, stack...), path)}
			return match
		}
		for _, seen := range stack {
			if seen == path {
				resolveErr = &Error{Kind: KindCycle, Path: path, Chain: append(append([]string{}, stack...), path)}
				return match
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				resolveErr = &Error{Kind: KindFileNotFound, Path: path, Chain: append(append([]string{}, stack...), path)}
			} else {
				resolveErr = &Error{Kind: KindIoError, Path: path, Chain: append(append([]string{}, stack...), path)}
			}
			return match
		}

		// Snapshot the stack per recursion branch: siblings may both
		// include the same leaf; only a true ancestor cycle is an error.
		branchStack := append(append([]string{}, stack...), path)
		expanded, err := expandIncludes(string(data), filepath.Dir(path), branchStack, depth+1)
		if err != nil {
			resolveErr = err
			return match
		}
		return expanded
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// variablePattern matches {{name}}, trimming surrounding whitespace.
var variablePattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// WarnFunc receives one warning per unsubstituted variable occurrence.
type WarnFunc func(name string)

// Substitute applies {{name}} substitution. vars supplies config.variables;
// specials is consulted first for execute_path/assignment_path-style
// context variables. Missing names are left as the literal "{{name}}" and
// reported once per occurrence via warn (warn may be nil).
func Substitute(content string, specials, vars map[string]string, warn WarnFunc) string {
	return variablePattern.ReplaceAllStringFunc(content, func(match string) string {
		sub := variablePattern.FindStringSubmatch(match)
		name := sub[1]
		if v, ok := specials[name]; ok {
			return v
		}
		if v, ok := vars[name]; ok {
			return v
		}
		if warn != nil {
			warn(name)
		}
		return match
	})
}

// ExtractVariableNames returns the distinct {{name}} identifiers referenced
// in content, in first-occurrence order.
func ExtractVariableNames(content string) []string {
	matches := variablePattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var names []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// HasUnsubstituted reports whether content still contains a {{name}} token.
func HasUnsubstituted(content string) bool {
	return variablePattern.MatchString(content)
}

// ValidationResult is returned by Validate.
type ValidationResult struct {
	Valid   bool
	Missing []string
}

// Validate checks which of content's referenced variables are absent from
// specials and vars, without performing substitution.
func Validate(content string, specials, vars map[string]string) ValidationResult {
	var missing []string
	for _, name := range ExtractVariableNames(content) {
		if _, ok := specials[name]; ok {
			continue
		}
		if _, ok := vars[name]; ok {
			continue
		}
		missing = append(missing, name)
	}
	return ValidationResult{Valid: len(missing) == 0, Missing: missing}
}

// Process runs the full two-pass pipeline: include expansion, then variable
// substitution.
func Process(content, baseDir string, specials, vars map[string]string, warn WarnFunc) (string, error) {
	expanded, err := ExpandIncludes(content, baseDir)
	if err != nil {
		return "", err
	}
	return Substitute(expanded, specials, vars, warn), nil
}
