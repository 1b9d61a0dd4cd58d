package summary

import (
	"context"
	"os"
	"path/filepath"

	"github.com/agentstation/automator/pkg/changes"
	"github.com/agentstation/automator/pkg/config"
	"github.com/agentstation/automator/pkg/constants"
	"github.com/agentstation/automator/pkg/errors"
	"github.com/agentstation/automator/pkg/logging"
)

// WriteArtifacts writes the configured summary files. Relative paths are
// resolved against root and parent directories are created. It returns the
// paths written.
func WriteArtifacts(ctx context.Context, root string, artifacts config.Artifacts, result *changes.Result, opts Options) ([]string, error) {
	var written []string

	if artifacts.SummaryMarkdownAs != "" {
		content, err := Markdown(result, opts)
		if err != nil {
			return written, err
		}
		path, err := write(root, artifacts.SummaryMarkdownAs, []byte(content))
		if err != nil {
			return written, err
		}
		logging.FromContext(ctx).Info().Str("path", path).Msg("Wrote summary markdown")
		written = append(written, path)
	}

	if artifacts.SummaryJSONAs != "" {
		content, err := JSON(result)
		if err != nil {
			return written, err
		}
		path, err := write(root, artifacts.SummaryJSONAs, content)
		if err != nil {
			return written, err
		}
		logging.FromContext(ctx).Info().Str("path", path).Msg("Wrote summary json")
		written = append(written, path)
	}

	return written, nil
}

func write(root, name string, data []byte) (string, error) {
	path := filepath.FromSlash(name)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return "", errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return "", errors.WrapIO("write", path, err)
	}
	return path, nil
}
