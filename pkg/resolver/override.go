package resolver

import (
	"strings"

	"github.com/agentstation/automator/pkg/logging"
)

// Override forces the version of a source repository, or of the files of one
// path id within it.
type Override struct {
	Repo    string `json:"repo"`
	PathID  string `json:"pathId,omitempty"`
	Version string `json:"version"`
	Sha     string `json:"sha,omitempty"`
}

// Matches reports whether the override applies to a tracked file of repo.
// An override without a path id applies to every file of the repository.
func (o Override) Matches(repo, pathID string) bool {
	if o.Repo != repo {
		return false
	}
	return o.PathID == "" || o.PathID == pathID
}

// ParseOverrides parses the textual override list
//
//	owner/repo[:pathId]=version[,sha];owner/repo2=version2,sha2
//
// Entries that do not have exactly one "=" or that lack a repository or a
// version are skipped with a warning.
func ParseOverrides(text string) []Override {
	var overrides []Override
	for _, entry := range strings.Split(text, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		target, value, ok := strings.Cut(entry, "=")
		if !ok || strings.Contains(value, "=") {
			logging.Warn().Str("entry", entry).Msg("Skipping malformed version override")
			continue
		}
		repo, pathID, _ := strings.Cut(strings.TrimSpace(target), ":")
		version, sha, _ := strings.Cut(strings.TrimSpace(value), ",")

		o := Override{
			Repo:    strings.TrimSpace(repo),
			PathID:  strings.TrimSpace(pathID),
			Version: strings.TrimSpace(version),
			Sha:     strings.TrimSpace(sha),
		}
		if o.Repo == "" || o.Version == "" {
			logging.Warn().Str("entry", entry).Msg("Skipping version override without repository or version")
			continue
		}
		overrides = append(overrides, o)
	}
	return overrides
}
