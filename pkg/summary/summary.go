// Package summary renders the changes of a cycle as a markdown description
// and a JSON document, and writes them as artifact files.
package summary

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/constants"
)

// Title is the top level heading of the markdown summary.
const Title = "Summary of Changes"

// issueRef matches a bare issue or pull request reference.
var issueRef = regexp.MustCompile(`(^|[^\w/])#(\d+)\b`)

// Options tunes the markdown output.
type Options struct {
	// IncludeOwner writes references as owner/repo#N instead of repo#N.
	IncludeOwner bool
	// ServerURL is the web root links point at; empty means github.com.
	ServerURL string
}

func (o Options) serverURL() string {
	if o.ServerURL == "" {
		return constants.GitHubURL
	}
	return strings.TrimSuffix(o.ServerURL, "/")
}

// Markdown renders result as the pull request description.
func Markdown(result *changes.Result, opts Options) (string, error) {
	var sb strings.Builder
	doc := md.NewMarkdown(&sb).H1(Title).LF()

	for _, rc := range result.Repos {
		doc.H2(rc.SourceRepo).LF()
		doc.H3("Version").LF()
		doc.PlainText(versionLine(rc)).LF()

		if len(rc.Commits) == 0 {
			continue
		}
		doc.H3("Commits").LF()
		items := make([]string, 0, len(rc.Commits))
		for _, c := range rc.Commits {
			items = append(items, commitLine(rc.SourceRepo, c, opts))
		}
		doc.BulletList(items...).LF()
	}

	if err := doc.Build(); err != nil {
		return "", fmt.Errorf("rendering summary: %w", err)
	}
	return sb.String(), nil
}

// versionLine renders "`old`, `old2` -> `new`".
func versionLine(rc changes.RepoChanges) string {
	quote := func(versions []string) string {
		quoted := make([]string, len(versions))
		for i, v := range versions {
			quoted[i] = md.Code(v)
		}
		return strings.Join(quoted, ", ")
	}
	newVersions := rc.NewVersions()
	if len(newVersions) == 0 {
		newVersions = []string{rc.CurrentVersion}
	}
	return quote(rc.ExistingVersions()) + " -> " + quote(newVersions)
}

func commitLine(repo string, c changes.Commit, opts Options) string {
	short := c.Sha
	if len(short) > constants.ShortShaLength {
		short = short[:constants.ShortShaLength]
	}
	message, _, _ := strings.Cut(c.Message, "\n")
	line := md.Link(md.Code(short), c.HTMLURL) + " " + ResolveRefs(strings.TrimSpace(message), repo, opts)
	switch {
	case c.AuthorLogin != "":
		line += " by @" + c.AuthorLogin
	case c.AuthorName != "":
		line += " by " + c.AuthorName
	}
	return line
}

// ResolveRefs rewrites bare #N references in text into links to the pull
// requests of the source repository, so they do not point into the GitOps
// repository once rendered there.
func ResolveRefs(text, repo string, opts Options) string {
	label := repo
	if !opts.IncludeOwner {
		if _, name, ok := strings.Cut(repo, "/"); ok {
			label = name
		}
	}
	base := opts.serverURL() + "/" + repo + "/pull/"
	return issueRef.ReplaceAllStringFunc(text, func(match string) string {
		sub := issueRef.FindStringSubmatch(match)
		return sub[1] + md.Link(label+"#"+sub[2], base+sub[2])
	})
}

// JSON renders result as indented JSON.
func JSON(result *changes.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return append(data, '\n'), nil
}
