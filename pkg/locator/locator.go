// Package locator finds version markers in the files of the GitOps repository.
//
// Each Rule pairs a glob with an ordered list of independent patterns. Every
// match of every pattern yields one TrackedFile, so a single file can carry
// several markers.
//
// The version text of a match is the group named "version" when the pattern
// has one, else its first capture group, else the whole match. Groups stand
// in for lookaround assertions, which Go regular expressions do not support:
//
//	image: registry/app:(?P<version>v[\d.]+)
package locator

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/logging"
)

// Rule describes where to look for a version marker and how to recognize it.
type Rule struct {
	Glob        string
	Ignore      string
	Patterns    []*regexp.Regexp
	ShaPatterns []*regexp.Regexp
	PathID      string
}

// TrackedFile is one version marker found in one file.
type TrackedFile struct {
	AbsolutePath string         `json:"absolutePath"`
	Path         string         `json:"path"`
	Content      string         `json:"-"`
	Pattern      *regexp.Regexp `json:"-"`
	ShaPattern   *regexp.Regexp `json:"-"`
	PathID       string         `json:"pathId,omitempty"`
	Version      string         `json:"version"`
	VersionSha   string         `json:"versionSha,omitempty"`
}

// NewRule compiles the patterns of a rule. Patterns run in multiline mode.
func NewRule(glob, ignore string, patterns, shaPatterns []string, pathID string) (Rule, error) {
	rule := Rule{Glob: glob, Ignore: ignore, PathID: pathID}
	if !doublestar.ValidatePattern(filepath.ToSlash(glob)) {
		return Rule{}, errors.NewValidationError("path", glob, "invalid glob pattern")
	}
	if ignore != "" && !doublestar.ValidatePattern(filepath.ToSlash(ignore)) {
		return Rule{}, errors.NewValidationError("ignore", ignore, "invalid glob pattern")
	}
	for _, expr := range patterns {
		re, err := compile(expr)
		if err != nil {
			return Rule{}, err
		}
		rule.Patterns = append(rule.Patterns, re)
	}
	for _, expr := range shaPatterns {
		re, err := compile(expr)
		if err != nil {
			return Rule{}, err
		}
		rule.ShaPatterns = append(rule.ShaPatterns, re)
	}
	return rule, nil
}

func compile(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?m)" + expr)
	if err != nil {
		return nil, errors.WrapParse("regex", expr, err)
	}
	return re, nil
}

// Locate expands every rule under root and returns the markers found, in rule,
// file and match order. A file that cannot be read fails the whole call.
func Locate(ctx context.Context, root string, rules []Rule) ([]TrackedFile, error) {
	logger := logging.FromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapIO("resolve", root, err)
	}

	var found []TrackedFile
	seen := make(map[string]bool)
	for _, rule := range rules {
		paths, err := expand(absRoot, rule)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			logger.Warn().Str("path", rule.Glob).Msg("No files matched release file pattern")
		}

		for _, abs := range paths {
			data, err := os.ReadFile(abs)
			if err != nil {
				return nil, errors.WrapIO("read", abs, err)
			}
			content := string(data)
			rel := relative(absRoot, abs)
			sha, shaPattern := findSha(content, rule.ShaPatterns)

			for _, pattern := range rule.Patterns {
				for _, span := range Spans(pattern, content) {
					version := content[span[0]:span[1]]
					key := rel + "\x00" + pattern.String() + "\x00" + version
					if seen[key] {
						continue
					}
					seen[key] = true

					tracked := TrackedFile{
						AbsolutePath: abs,
						Path:         rel,
						Content:      content,
						Pattern:      pattern,
						ShaPattern:   shaPattern,
						PathID:       rule.PathID,
						Version:      version,
						VersionSha:   sha,
					}
					if len(rule.ShaPatterns) == 0 {
						tracked.VersionSha = version
					}
					logger.Debug().
						Str("path", rel).
						Str("version", version).
						Str("sha", tracked.VersionSha).
						Str("path_id", rule.PathID).
						Msg("Found version")
					found = append(found, tracked)
				}
			}
		}
	}
	return found, nil
}

// expand returns the regular files matching the rule glob, minus ignored ones, sorted.
func expand(absRoot string, rule Rule) ([]string, error) {
	var matches []string
	if filepath.IsAbs(rule.Glob) {
		found, err := doublestar.FilepathGlob(rule.Glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.WrapIO("glob", rule.Glob, err)
		}
		matches = found
	} else {
		// Relative globs run against the root as a filesystem so glob
		// metacharacters in the root path itself are never interpreted.
		pattern := strings.TrimPrefix(filepath.ToSlash(rule.Glob), "./")
		found, err := doublestar.Glob(os.DirFS(absRoot), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.WrapIO("glob", rule.Glob, err)
		}
		for _, m := range found {
			matches = append(matches, filepath.Join(absRoot, filepath.FromSlash(m)))
		}
	}

	ignore := strings.TrimPrefix(filepath.ToSlash(rule.Ignore), "./")
	var paths []string
	for _, match := range matches {
		if ignore != "" {
			if ok, _ := doublestar.Match(ignore, relative(absRoot, match)); ok {
				continue
			}
		}
		paths = append(paths, match)
	}
	sort.Strings(paths)
	return paths, nil
}

// findSha returns the first match of the sha patterns over the whole content.
func findSha(content string, patterns []*regexp.Regexp) (string, *regexp.Regexp) {
	for _, re := range patterns {
		if spans := Spans(re, content); len(spans) > 0 {
			return content[spans[0][0]:spans[0][1]], re
		}
	}
	return "", nil
}

// versionGroup returns the submatch index holding the version text.
func versionGroup(re *regexp.Regexp) int {
	if i := re.SubexpIndex("version"); i > 0 {
		return i
	}
	if re.NumSubexp() > 0 {
		return 1
	}
	return 0
}

// Spans returns the byte offsets of the version text of every match of re in
// content, with surrounding whitespace excluded. Empty matches are skipped.
func Spans(re *regexp.Regexp, content string) [][2]int {
	group := versionGroup(re)
	var spans [][2]int
	for _, loc := range re.FindAllStringSubmatchIndex(content, -1) {
		start, end := loc[2*group], loc[2*group+1]
		if start < 0 {
			continue
		}
		text := content[start:end]
		trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
		start += len(text) - len(trimmed)
		end = start + len(strings.TrimRightFunc(trimmed, unicode.IsSpace))
		if start == end {
			continue
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

// Replace substitutes replacement for the version text of every match of re in content.
func Replace(re *regexp.Regexp, content, replacement string) string {
	spans := Spans(re, content)
	if len(spans) == 0 {
		return content
	}
	var sb strings.Builder
	last := 0
	for _, span := range spans {
		sb.WriteString(content[last:span[0]])
		sb.WriteString(replacement)
		last = span[1]
	}
	sb.WriteString(content[last:])
	return sb.String()
}

// relative converts an absolute path to a repository-relative, forward-slash path.
func relative(absRoot, abs string) string {
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil {
		rel = abs
	}
	return strings.TrimPrefix(filepath.ToSlash(rel), "/")
}
