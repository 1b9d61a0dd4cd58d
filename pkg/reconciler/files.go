package reconciler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/locator"
	"github.com/agentstation/automator/pkg/logging"
	"github.com/agentstation/automator/pkg/resolver"
)

// fileWrite is the new content of one path together with the blob it replaces.
type fileWrite struct {
	path    string
	content string // base64
	sha     string // current blob sha on the comparison ref, empty when absent
}

// render applies every transition to the original content of its file,
// producing one blob per unique path. Paths keep first-seen order and
// substitutions apply in transition order, so a later transition wins where
// two rewrite the same text.
func render(transitions []resolver.Transition) (paths []string, contents map[string]string) {
	contents = make(map[string]string)
	for _, t := range transitions {
		content, ok := contents[t.File.Path]
		if !ok {
			paths = append(paths, t.File.Path)
			content = t.File.Content
		}
		content = locator.Replace(t.File.Pattern, content, t.NewVersion)
		if t.File.ShaPattern != nil && t.NewSha != "" {
			content = locator.Replace(t.File.ShaPattern, content, t.NewSha)
		}
		contents[t.File.Path] = content
	}
	return paths, contents
}

// plan compares the rendered files with their content on ref and returns the
// writes needed. Files that already match are reported as skipped.
func (r *reconciler) plan(ctx context.Context, ref string, transitions []resolver.Transition) (writes []fileWrite, skipped []string, err error) {
	logger := logging.FromContext(ctx)
	paths, contents := render(transitions)

	for _, path := range paths {
		encoded := base64.StdEncoding.EncodeToString([]byte(contents[path]))

		existing, err := r.platform.GetFileContent(ctx, r.repo, path, ref)
		switch {
		case err == nil:
		case errors.IsNotFound(err) || errors.IsConflict(err):
			existing = nil
		default:
			return nil, nil, err
		}

		if existing != nil && sameContent(existing.Content, encoded) {
			logger.Debug().Str("path", path).Str("ref", ref).Msg("File is up to date")
			skipped = append(skipped, path)
			continue
		}

		w := fileWrite{path: path, content: encoded}
		if existing != nil {
			w.sha = existing.Sha
		}
		writes = append(writes, w)
	}
	return writes, skipped, nil
}

// apply writes the planned files to branch.
func (r *reconciler) apply(ctx context.Context, branch string, writes []fileWrite) ([]string, error) {
	logger := logging.FromContext(ctx)
	written := make([]string, 0, len(writes))
	for _, w := range writes {
		update := r.fileUpdate(branch, w)
		if err := r.platform.PutFileContent(ctx, r.repo, update); err != nil {
			return written, err
		}
		logger.Info().Str("path", w.path).Str("branch", branch).Msg("Updated file")
		written = append(written, w.path)
	}
	return written, nil
}

// sameContent compares a base64 blob from the platform, which may be
// wrapped, with freshly encoded content. Decoded contents that differ only in
// trailing newlines are equal.
func sameContent(existing, encoded string) bool {
	normalized := strings.NewReplacer("\n", "", "\r", "").Replace(existing)
	if normalized == encoded {
		return true
	}
	current, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return false
	}
	proposed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return bytes.Equal(bytes.TrimRight(current, "\r\n"), bytes.TrimRight(proposed, "\r\n"))
}

func commitMessage(title, path string) string {
	return fmt.Sprintf("%s: %s", title, path)
}
