package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/platform"
)

// Scheme selects how the new version of a source repository is derived from its head.
type Scheme string

// Versioning schemes.
const (
	// SchemeShaOnly uses the head commit sha as the version.
	SchemeShaOnly Scheme = "commit-sha-only"
	// SchemeTagsOrSha prefers a matching tag at head and falls back to the sha.
	SchemeTagsOrSha Scheme = "commit-tags-or-sha"
	// SchemeTagsOnly requires a matching tag at head; without one the repository is skipped.
	SchemeTagsOnly Scheme = "commit-tags-only"
)

// ParseScheme parses a scheme name. The empty string selects SchemeShaOnly and
// the "commit-" prefix may be omitted.
func ParseScheme(s string) (Scheme, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return SchemeShaOnly, nil
	}
	if !strings.HasPrefix(name, "commit-") {
		name = "commit-" + name
	}
	switch scheme := Scheme(name); scheme {
	case SchemeShaOnly, SchemeTagsOrSha, SchemeTagsOnly:
		return scheme, nil
	}
	return "", fmt.Errorf("unknown versioning scheme %q (want %s, %s or %s)", s, SchemeShaOnly, SchemeTagsOrSha, SchemeTagsOnly)
}

// UsesTags reports whether tags are consulted under the scheme.
func (s Scheme) UsesTags() bool {
	return s == SchemeTagsOrSha || s == SchemeTagsOnly
}

// Policy is a versioning scheme plus the pattern a tag ref must match.
type Policy struct {
	Scheme     Scheme
	TagPattern *regexp.Regexp
}

// NewPolicy builds a Policy. An empty tag pattern selects the default
// refs/tags/vX.Y.Z pattern.
func NewPolicy(scheme, tagPattern string) (Policy, error) {
	s, err := ParseScheme(scheme)
	if err != nil {
		return Policy{}, errors.NewValidationError("versioning.scheme", scheme, err.Error())
	}
	if tagPattern == "" {
		tagPattern = constants.DefaultTagPattern
	}
	re, err := regexp.Compile(tagPattern)
	if err != nil {
		return Policy{}, errors.WrapParse("regex", tagPattern, err)
	}
	return Policy{Scheme: s, TagPattern: re}, nil
}

// TagsAt returns the names of the tags that point at sha and match the
// policy pattern, in the order given. The refs/tags/ prefix is stripped.
func (p Policy) TagsAt(refs []platform.Ref, sha string) []string {
	var tags []string
	for _, ref := range refs {
		if ref.Sha != sha {
			continue
		}
		if p.TagPattern != nil && !p.TagPattern.MatchString(ref.Ref) {
			continue
		}
		tags = append(tags, strings.TrimPrefix(ref.Ref, "refs/tags/"))
	}
	return tags
}
